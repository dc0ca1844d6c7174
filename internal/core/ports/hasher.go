package ports

// TreeHasher computes fingerprints of source trees.
//
//go:generate mockgen -destination=mocks/hasher_mock.go -package=mocks -source=hasher.go
type TreeHasher interface {
	// HashTree walks the source tree under root and returns a single digest
	// over the sorted (relative path, content hash) pairs, plus the file
	// list in that order. Hidden files and build output are excluded;
	// test sources are included only when includeTests is set.
	HashTree(root string, includeTests bool) (digest string, files []string, err error)

	// HashFile returns the content hash of a single file.
	HashFile(path string) (string, error)
}
