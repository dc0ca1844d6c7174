package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/core/domain"
)

func TestParseTarget(t *testing.T) {
	for _, name := range domain.KnownTargets() {
		tgt, err := domain.ParseTarget(name)
		require.NoError(t, err)
		assert.Equal(t, name, tgt.String())
	}

	_, err := domain.ParseTarget("windows_x64")
	assert.Error(t, err)
}

func TestTarget_MavenSuffix(t *testing.T) {
	tgt, err := domain.ParseTarget("linux_x64")
	require.NoError(t, err)
	assert.Equal(t, "linuxx64", tgt.MavenSuffix())

	tgt, err = domain.ParseTarget("macos_arm64")
	require.NoError(t, err)
	assert.Equal(t, "macosarm64", tgt.MavenSuffix())
}

func TestParseProfile(t *testing.T) {
	tests := []struct {
		input     string
		isTest    bool
		isRelease bool
	}{
		{"debug", false, false},
		{"release", false, true},
		{"debug-test", true, false},
		{"release-test", true, true},
	}

	for _, tt := range tests {
		p, err := domain.ParseProfile(tt.input)
		require.NoError(t, err, "profile %q", tt.input)
		assert.Equal(t, tt.isTest, p.IsTest())
		assert.Equal(t, tt.isRelease, p.IsRelease())
	}

	_, err := domain.ParseProfile("profiling")
	assert.Error(t, err)
}

func TestDigestFields_Deterministic(t *testing.T) {
	a := domain.DigestFields(map[string]string{"x": "1", "y": "2"})
	b := domain.DigestFields(map[string]string{"y": "2", "x": "1"})
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	c := domain.DigestFields(map[string]string{"x": "1", "y": "3"})
	assert.NotEqual(t, a, c)
}
