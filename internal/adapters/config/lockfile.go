package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// LockfileName is the lockfile written next to the manifest.
const LockfileName = "kiln.lock"

const lockfileHeader = "# Generated by kiln. Do not edit by hand.\n"

var _ ports.LockfileStore = (*LockfileStore)(nil)

// LockfileStore implements ports.LockfileStore on the local filesystem.
type LockfileStore struct{}

// NewLockfileStore creates a new LockfileStore.
func NewLockfileStore() *LockfileStore {
	return &LockfileStore{}
}

// Read loads the lockfile in dir, returning an empty lockfile if none exists.
func (s *LockfileStore) Read(dir string) (*domain.Lockfile, error) {
	path := filepath.Join(dir, LockfileName)
	data, err := os.ReadFile(path) //nolint:gosec // path is provided by user
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &domain.Lockfile{}, nil
		}
		return nil, zerr.With(zerr.Wrap(err, "failed to read lockfile"), "path", path)
	}

	var lf domain.Lockfile
	if err := yaml.Unmarshal(data, &lf); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to parse lockfile"), "path", path)
	}
	return &lf, nil
}

// Write persists the lockfile atomically. Entries are sorted by name so the
// serialized form is stable regardless of resolution order.
func (s *LockfileStore) Write(dir string, lf *domain.Lockfile) error {
	sort.Slice(lf.Dependencies, func(i, j int) bool {
		return lf.Dependencies[i].Name < lf.Dependencies[j].Name
	})
	sort.Slice(lf.Plugins, func(i, j int) bool {
		if lf.Plugins[i].Name != lf.Plugins[j].Name {
			return lf.Plugins[i].Name < lf.Plugins[j].Name
		}
		return lf.Plugins[i].Artifact < lf.Plugins[j].Artifact
	})

	data, err := yaml.Marshal(lf)
	if err != nil {
		return zerr.Wrap(err, "failed to serialize lockfile")
	}

	path := filepath.Join(dir, LockfileName)
	tmp := path + fmt.Sprintf(".tmp-%d", os.Getpid())
	content := append([]byte(lockfileHeader), data...)
	if err := os.WriteFile(tmp, content, 0o644); err != nil { //nolint:gosec // lockfile is world-readable
		return zerr.With(zerr.Wrap(err, "failed to write lockfile"), "path", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return zerr.With(zerr.Wrap(err, "failed to replace lockfile"), "path", path)
	}
	return nil
}

// Exists reports whether dir contains a lockfile.
func (s *LockfileStore) Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, LockfileName))
	return err == nil
}
