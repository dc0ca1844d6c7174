package ports

import "go.trai.ch/kiln/internal/core/domain"

// ArtifactStore is the content-addressed cache of build outputs. Entries are
// immutable once committed; equal keys imply byte-identical artifacts.
//
//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type ArtifactStore interface {
	// Lookup returns the entry for key. Returns nil, nil if not found.
	Lookup(key domain.CacheKey) (*domain.ArtifactEntry, error)

	// Stage creates a fresh staging directory for a pending commit.
	Stage(key domain.CacheKey) (string, error)

	// Commit moves the staged directory into the store under key and writes
	// the metadata sidecar. Committing an already present key keeps the
	// existing entry and discards the staged copy.
	Commit(key domain.CacheKey, stagedDir string, meta domain.BuildMetadata) (*domain.ArtifactEntry, error)

	// Materialize places the entry's artifact at destPath, hardlinking when
	// the filesystem allows it and copying otherwise.
	Materialize(entry *domain.ArtifactEntry, destPath string) error

	// Clean removes every entry from the store.
	Clean() error
}
