// Package fs provides file system adapters for walking and hashing source trees.
package fs

import (
	"io/fs"
	"iter"
	"path/filepath"
	"sort"
)

// Walker provides file walking functionality.
type Walker struct{}

// NewWalker creates a new Walker.
func NewWalker() *Walker {
	return &Walker{}
}

// WalkFiles yields all files under root, skipping VCS and build directories.
func (w *Walker) WalkFiles(root string, ignores []string) iter.Seq[string] {
	return func(yield func(string) bool) {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if skipAction := w.shouldSkipDir(d, ignores); skipAction != nil {
				return skipAction
			}

			if d.IsDir() {
				return nil
			}

			if !yield(path) {
				return filepath.SkipAll
			}

			return nil
		})
	}
}

// CollectSources returns every .kt file under root/src in sorted order.
// Files under root/src/test are excluded unless includeTests is set.
func (w *Walker) CollectSources(root string, includeTests bool) ([]string, error) {
	srcDir := filepath.Join(root, "src")
	testDir := filepath.Join(srcDir, "test")

	var sources []string
	walkErr := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == testDir && !includeTests {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) == ".kt" {
			sources = append(sources, path)
		}
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	sort.Strings(sources)
	return sources, nil
}

// shouldSkipDir checks if a directory should be skipped based on ignore patterns.
func (w *Walker) shouldSkipDir(d fs.DirEntry, ignores []string) error {
	name := d.Name()

	// Always skip VCS metadata and the output directory
	if d.IsDir() && (name == ".git" || name == ".jj" || name == "build") {
		return filepath.SkipDir
	}

	for _, ignore := range ignores {
		matched, _ := filepath.Match(ignore, name)
		if matched {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
	}

	return nil
}
