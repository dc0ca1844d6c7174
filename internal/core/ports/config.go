package ports

import "go.trai.ch/kiln/internal/core/domain"

// ManifestLoader reads and validates project manifests.
//
//go:generate mockgen -source=config.go -destination=mocks/mock_config.go -package=mocks
type ManifestLoader interface {
	// Load reads the manifest in dir, applies defaults, and validates it.
	// Returns domain.ErrDependencyNotFound if no manifest exists in dir.
	Load(dir string) (*domain.Manifest, error)
}

// LockfileStore reads and writes the project lockfile.
type LockfileStore interface {
	// Read loads the lockfile in dir. Returns an empty lockfile if none exists.
	Read(dir string) (*domain.Lockfile, error)

	// Write persists the lockfile atomically via temp file and rename.
	Write(dir string, lf *domain.Lockfile) error

	// Exists reports whether dir contains a lockfile.
	Exists(dir string) bool
}
