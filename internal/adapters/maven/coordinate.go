// Package maven handles Maven coordinates and artifact fetching.
package maven

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/zerr"
)

// Central is the Maven Central repository URL.
const Central = "https://repo1.maven.org/maven2"

// Coordinate identifies a single Maven artifact.
type Coordinate struct {
	// GroupID is the Maven group identifier, e.g. "org.jetbrains.kotlinx".
	GroupID string
	// ArtifactID is the Maven artifact identifier.
	ArtifactID string
	// Version is the artifact version, e.g. "1.8.0".
	Version string
	// Packaging is the file extension, defaulting to "jar".
	Packaging string
}

// ParseCoordinate parses "group:artifact:version" with an optional fourth
// ":packaging" part.
func ParseCoordinate(coord string) (Coordinate, error) {
	parts := strings.Split(coord, ":")
	if len(parts) < 3 || len(parts) > 4 {
		err := zerr.With(zerr.New("invalid maven coordinate"), "coordinate", coord)
		return Coordinate{}, zerr.With(err, "reason", fmt.Sprintf("expected 3 or 4 colon-separated parts, got %d", len(parts)))
	}
	for i, part := range parts {
		if part == "" {
			labels := []string{"group_id", "artifact_id", "version", "packaging"}
			err := zerr.With(zerr.New("invalid maven coordinate"), "coordinate", coord)
			return Coordinate{}, zerr.With(err, "reason", labels[i]+" is empty")
		}
	}

	c := Coordinate{
		GroupID:    parts[0],
		ArtifactID: parts[1],
		Version:    parts[2],
		Packaging:  "jar",
	}
	if len(parts) == 4 {
		c.Packaging = parts[3]
	}
	return c, nil
}

// ExpandTemplate substitutes {version} and {target} placeholders in a
// coordinate template and parses the result.
func ExpandTemplate(template, version string, target domain.Target) (Coordinate, error) {
	expanded := strings.ReplaceAll(template, "{version}", version)
	expanded = strings.ReplaceAll(expanded, "{target}", target.MavenSuffix())
	return ParseCoordinate(expanded)
}

// Filename returns "{artifact_id}-{version}.{packaging}".
func (c Coordinate) Filename() string {
	return fmt.Sprintf("%s-%s.%s", c.ArtifactID, c.Version, c.Packaging)
}

// RepositoryPath returns the repository-relative path of the artifact, with
// dots in the group replaced by slashes.
func (c Coordinate) RepositoryPath() string {
	groupPath := strings.ReplaceAll(c.GroupID, ".", "/")
	return fmt.Sprintf("%s/%s/%s/%s", groupPath, c.ArtifactID, c.Version, c.Filename())
}

// URL builds the full download URL against the given registry.
func (c Coordinate) URL(registry string) string {
	return strings.TrimSuffix(registry, "/") + "/" + c.RepositoryPath()
}

// CachePath returns the local cache location for the artifact, mirroring the
// repository layout under cacheRoot.
func (c Coordinate) CachePath(cacheRoot string) string {
	groupPath := strings.ReplaceAll(c.GroupID, ".", "/")
	return filepath.Join(cacheRoot, filepath.FromSlash(groupPath), c.ArtifactID, c.Version, c.Filename())
}

// String returns the canonical colon-separated form.
func (c Coordinate) String() string {
	if c.Packaging != "" && c.Packaging != "jar" {
		return fmt.Sprintf("%s:%s:%s:%s", c.GroupID, c.ArtifactID, c.Version, c.Packaging)
	}
	return fmt.Sprintf("%s:%s:%s", c.GroupID, c.ArtifactID, c.Version)
}
