// Package cas implements the content-addressed artifact store.
package cas

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

const metadataName = "metadata.yaml"

var _ ports.ArtifactStore = (*Store)(nil)

// Store keeps one immutable directory per cache key. Commits go through a
// staging directory and a single rename, so concurrent builds of the same key
// race safely: the first rename wins and later commits adopt the winner.
type Store struct {
	root string
}

// NewStore creates a store rooted at the given directory.
func NewStore(root string) (*Store, error) {
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to create artifact store"), "root", root)
	}
	return &Store{root: root}, nil
}

// DefaultRoot returns the per-user artifact store location, shared by every
// project the user builds.
func DefaultRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", zerr.Wrap(err, "failed to locate home directory")
	}
	return filepath.Join(home, ".kiln", "cache", "artifacts"), nil
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) entryDir(key domain.CacheKey) string {
	return filepath.Join(s.root, string(key))
}

// Lookup returns the entry for key, or nil if not present.
func (s *Store) Lookup(key domain.CacheKey) (*domain.ArtifactEntry, error) {
	dir := s.entryDir(key)
	metaPath := filepath.Join(dir, metadataName)

	data, err := os.ReadFile(metaPath) //nolint:gosec // Path derived from store root
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.With(zerr.Wrap(domain.ErrCacheFailure, err.Error()), "key", string(key))
	}

	var meta domain.BuildMetadata
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrCacheFailure, "corrupt metadata"), "key", string(key))
	}

	artifact, err := s.findArtifact(dir)
	if err != nil {
		return nil, err
	}

	return &domain.ArtifactEntry{
		Key:      key,
		Path:     artifact,
		Metadata: meta,
	}, nil
}

// findArtifact returns the single non-metadata file in an entry directory.
func (s *Store) findArtifact(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", zerr.With(zerr.Wrap(domain.ErrCacheFailure, err.Error()), "dir", dir)
	}
	for _, e := range entries {
		if !e.IsDir() && e.Name() != metadataName {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", zerr.With(zerr.Wrap(domain.ErrCacheFailure, "entry has no artifact"), "dir", dir)
}

// Stage creates a fresh staging directory for a pending commit. Each call
// gets its own directory, so concurrent builders of the same key never see
// each other's staged files.
func (s *Store) Stage(key domain.CacheKey) (string, error) {
	staged, err := os.MkdirTemp(s.root, ".tmp-"+string(key)+"-")
	if err != nil {
		return "", zerr.With(zerr.Wrap(domain.ErrCacheFailure, err.Error()), "key", string(key))
	}
	return staged, nil
}

// Commit publishes the staged directory under key. If another build already
// committed the key, the staged copy is discarded and the winner returned.
func (s *Store) Commit(key domain.CacheKey, stagedDir string, meta domain.BuildMetadata) (*domain.ArtifactEntry, error) {
	data, err := yaml.Marshal(&meta)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to serialize metadata")
	}
	if err := os.WriteFile(filepath.Join(stagedDir, metadataName), data, 0o644); err != nil { //nolint:gosec // Store content is world-readable
		return nil, zerr.With(zerr.Wrap(domain.ErrCacheFailure, err.Error()), "key", string(key))
	}

	dir := s.entryDir(key)
	if err := os.Rename(stagedDir, dir); err != nil {
		// A concurrent commit won the rename. Adopt its entry.
		if existing, lookupErr := s.Lookup(key); lookupErr == nil && existing != nil {
			_ = os.RemoveAll(stagedDir)
			return existing, nil
		}
		_ = os.RemoveAll(stagedDir)
		return nil, zerr.With(zerr.Wrap(domain.ErrCacheFailure, err.Error()), "key", string(key))
	}

	return s.Lookup(key)
}

// Materialize places the entry's artifact at destPath. A hardlink is tried
// first; filesystems that refuse cross-device links get a copy instead.
func (s *Store) Materialize(entry *domain.ArtifactEntry, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o750); err != nil {
		return zerr.With(zerr.Wrap(domain.ErrCacheFailure, err.Error()), "path", destPath)
	}
	if err := os.Remove(destPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return zerr.With(zerr.Wrap(domain.ErrCacheFailure, err.Error()), "path", destPath)
	}

	if err := os.Link(entry.Path, destPath); err == nil {
		return nil
	}
	return s.copyFile(entry.Path, destPath)
}

func (s *Store) copyFile(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // Path derived from store root
	if err != nil {
		return zerr.With(zerr.Wrap(domain.ErrCacheFailure, err.Error()), "path", src)
	}
	defer in.Close() //nolint:errcheck // Best effort close in defer

	info, err := in.Stat()
	if err != nil {
		return zerr.With(zerr.Wrap(domain.ErrCacheFailure, err.Error()), "path", src)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm()) //nolint:gosec // Destination chosen by caller
	if err != nil {
		return zerr.With(zerr.Wrap(domain.ErrCacheFailure, err.Error()), "path", dst)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return zerr.With(zerr.Wrap(domain.ErrCacheFailure, err.Error()), "path", dst)
	}
	if err := out.Close(); err != nil {
		return zerr.With(zerr.Wrap(domain.ErrCacheFailure, err.Error()), "path", dst)
	}
	return nil
}

// Clean removes every entry and abandoned staging directory from the store.
func (s *Store) Clean() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return zerr.With(zerr.Wrap(domain.ErrCacheFailure, err.Error()), "root", s.root)
	}
	for _, e := range entries {
		if !e.IsDir() && !strings.HasPrefix(e.Name(), ".tmp-") {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.root, e.Name())); err != nil {
			return zerr.With(zerr.Wrap(domain.ErrCacheFailure, err.Error()), "entry", e.Name())
		}
	}
	return nil
}
