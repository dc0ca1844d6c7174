package domain

import "time"

// CacheKey is a fixed-width hex digest identifying one fully determined build
// of one unit. Equal keys imply byte-identical artifacts.
type CacheKey string

// BuildMetadata is the sidecar record stored next to a cached artifact.
type BuildMetadata struct {
	UnitName      string    `yaml:"unit_name"`
	Target        string    `yaml:"target"`
	Profile       string    `yaml:"profile"`
	KonancVersion string    `yaml:"konanc_version"`
	BuiltAt       time.Time `yaml:"built_at"`
	Diagnostics   string    `yaml:"diagnostics,omitempty"`
}

// ArtifactEntry describes a committed store entry: where the artifact lives
// on disk and the metadata recorded when it was built.
type ArtifactEntry struct {
	Key      CacheKey
	Path     string
	Metadata BuildMetadata
}
