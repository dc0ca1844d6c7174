package fs

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.TreeHasher = (*Hasher)(nil)

// Hasher fingerprints source trees and single files with xxhash.
type Hasher struct {
	walker *Walker
}

// NewHasher creates a new Hasher.
func NewHasher(walker *Walker) *Hasher {
	return &Hasher{walker: walker}
}

// HashFile computes the XXHash of a file's content.
func (h *Hasher) HashFile(path string) (string, error) {
	sum, err := h.hashFileContent(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", sum), nil
}

func (h *Hasher) hashFileContent(path string) (uint64, error) {
	f, err := os.Open(path) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return 0, zerr.With(zerr.Wrap(err, "failed to open file"), "path", path)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	hasher := xxhash.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return 0, zerr.With(zerr.Wrap(err, "failed to hash file content"), "path", path)
	}

	return hasher.Sum64(), nil
}

// HashTree digests the source tree under root. The digest covers the sorted
// sequence of (relative path, content hash) pairs, so renaming a file changes
// it even when the bytes stay identical.
func (h *Hasher) HashTree(root string, includeTests bool) (string, []string, error) {
	sources, err := h.walker.CollectSources(root, includeTests)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return "", nil, domain.WithDetail(domain.ErrNoSources, "dir", filepath.Join(root, "src"))
		}
		return "", nil, zerr.With(zerr.Wrap(err, "failed to walk source tree"), "root", root)
	}
	if len(sources) == 0 {
		return "", nil, domain.WithDetail(domain.ErrNoSources, "dir", filepath.Join(root, "src"))
	}

	hasher := xxhash.New()
	for _, src := range sources {
		rel, err := filepath.Rel(root, src)
		if err != nil {
			rel = src
		}
		_, _ = hasher.WriteString(filepath.ToSlash(rel))
		_, _ = hasher.Write([]byte{0})

		sum, err := h.hashFileContent(src)
		if err != nil {
			return "", nil, err
		}
		if err := binary.Write(hasher, binary.LittleEndian, sum); err != nil {
			return "", nil, zerr.Wrap(err, "failed to write hash to digest")
		}
	}

	return fmt.Sprintf("%016x", hasher.Sum64()), sources, nil
}
