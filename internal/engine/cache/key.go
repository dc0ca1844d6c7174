// Package cache computes content-addressed cache keys for build artifacts.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"runtime"

	"go.trai.ch/kiln/internal/core/domain"
)

// Inputs is everything that contributes to a cache key. Any change to any
// field produces a different key; nothing outside these fields may influence
// the produced artifact.
type Inputs struct {
	// ManifestContent is the normalized manifest of the unit.
	ManifestContent string
	// LockfileContent is the serialized lockfile of the invocation root.
	LockfileContent string
	// KonancVersion is the compiler version string.
	KonancVersion string
	// KonancFingerprint is the content hash of the compiler binary.
	KonancFingerprint string
	// Target is the compilation target triple.
	Target string
	// Profile is the build profile name.
	Profile string
	// SourceHash is the digest of the unit's source tree.
	SourceHash string
	// OS is the host operating system identifier.
	OS string
	// Arch is the host architecture identifier.
	Arch string
	// DependencyHashes are the cache keys of dependency artifacts, in
	// dependency order. Empty for leaf units.
	DependencyHashes []string
}

// WithPlatformDefaults fills OS and Arch from the current platform when no
// explicit target is set. A target triple already pins the platform, and
// folding host identifiers on top would make keys host-specific for builds
// that are not.
func (in Inputs) WithPlatformDefaults() Inputs {
	if in.Target != "" {
		return in
	}
	in.OS = runtime.GOOS
	in.Arch = runtime.GOARCH
	return in
}

// Key computes the cache key: a SHA-256 over all input fields in a fixed
// order, NUL-separated so field boundaries cannot collide.
func Key(in Inputs) domain.CacheKey {
	parts := []string{
		in.ManifestContent,
		in.LockfileContent,
		in.KonancVersion,
		in.KonancFingerprint,
		in.Target,
		in.Profile,
		in.SourceHash,
		in.OS,
		in.Arch,
	}
	parts = append(parts, in.DependencyHashes...)

	h := sha256.New()
	for _, part := range parts {
		_, _ = h.Write([]byte(part))
		_, _ = h.Write([]byte{0})
	}
	return domain.CacheKey(hex.EncodeToString(h.Sum(nil)))
}
