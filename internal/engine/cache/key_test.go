package cache_test

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/kiln/internal/engine/cache"
)

func baseInputs() cache.Inputs {
	return cache.Inputs{
		ManifestContent:   "package.name=app\n",
		LockfileContent:   "",
		KonancVersion:     "2.1.0",
		KonancFingerprint: "abc123",
		Target:            "linux_x64",
		Profile:           "debug",
		SourceHash:        "feedface00000000",
		OS:                "linux",
		Arch:              "amd64",
	}
}

func TestKey_Deterministic(t *testing.T) {
	a := cache.Key(baseInputs())
	b := cache.Key(baseInputs())
	assert.Equal(t, a, b)
	assert.Len(t, string(a), 64)
}

func TestKey_FieldSensitivity(t *testing.T) {
	base := cache.Key(baseInputs())

	tests := []struct {
		name   string
		mutate func(in *cache.Inputs)
	}{
		{"manifest content", func(in *cache.Inputs) { in.ManifestContent = "package.name=other\n" }},
		{"lockfile content", func(in *cache.Inputs) { in.LockfileContent = "toolchain:\n" }},
		{"konanc version", func(in *cache.Inputs) { in.KonancVersion = "2.1.1" }},
		{"konanc fingerprint", func(in *cache.Inputs) { in.KonancFingerprint = "def456" }},
		{"target", func(in *cache.Inputs) { in.Target = "linux_arm64" }},
		{"profile", func(in *cache.Inputs) { in.Profile = "release" }},
		{"source hash", func(in *cache.Inputs) { in.SourceHash = "feedface00000001" }},
		{"os", func(in *cache.Inputs) { in.OS = "darwin" }},
		{"arch", func(in *cache.Inputs) { in.Arch = "arm64" }},
		{"dependency hashes", func(in *cache.Inputs) { in.DependencyHashes = []string{"dep1"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := baseInputs()
			tt.mutate(&in)
			assert.NotEqual(t, base, cache.Key(in), "field change must change the key")
		})
	}
}

func TestWithPlatformDefaults_TargetOverridesHost(t *testing.T) {
	// A target triple pins the platform; the host must not leak into the key.
	in := baseInputs()
	in.OS = ""
	in.Arch = ""
	got := in.WithPlatformDefaults()
	assert.Empty(t, got.OS)
	assert.Empty(t, got.Arch)
	assert.Equal(t, cache.Key(in), cache.Key(got))
}

func TestWithPlatformDefaults_FillsHostWithoutTarget(t *testing.T) {
	in := cache.Inputs{SourceHash: "feedface"}
	got := in.WithPlatformDefaults()
	assert.Equal(t, runtime.GOOS, got.OS)
	assert.Equal(t, runtime.GOARCH, got.Arch)
}

func TestKey_DependencyOrderMatters(t *testing.T) {
	a := baseInputs()
	a.DependencyHashes = []string{"aaa", "bbb"}
	b := baseInputs()
	b.DependencyHashes = []string{"bbb", "aaa"}
	assert.NotEqual(t, cache.Key(a), cache.Key(b))
}

func TestKey_NoFieldBoundaryCollision(t *testing.T) {
	// Shifting a byte across a field boundary must not produce the same key.
	a := baseInputs()
	a.KonancVersion = "2.1.0x"
	b := baseInputs()
	b.KonancVersion = "2.1.0"
	b.KonancFingerprint = "x" + b.KonancFingerprint
	assert.NotEqual(t, cache.Key(a), cache.Key(b))
}
