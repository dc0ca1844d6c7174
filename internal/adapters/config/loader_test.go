package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/config"
	"go.trai.ch/kiln/internal/core/domain"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ManifestName), []byte(content), 0o644))
}

func TestLoader_Load_Minimal(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
package:
  name: app
toolchain:
  kotlin: 2.1.0
`)

	m, err := config.NewLoader().Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "app", m.Package.Name)
	assert.Equal(t, domain.KindBin, m.Package.Kind)
	assert.Equal(t, domain.DefaultEntrypoint, m.Package.Entrypoint)
	assert.Equal(t, "2.1.0", m.Toolchain.Kotlin)
}

func TestLoader_Load_Full(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
package:
  name: mylib
  kind: lib
  version: 0.3.0
  entrypoint: src/lib.kt
toolchain:
  kotlin: 2.1.0
  detekt: 1.23.7
dependencies:
  core:
    path: ../core
  kotlinx-datetime: 0.6.1
  kotlinx-io:
    version: 0.5.4
plugins:
  serialization:
    version: 2.1.0
    modules: [json]
`)

	m, err := config.NewLoader().Load(dir)
	require.NoError(t, err)
	assert.Equal(t, domain.KindLib, m.Package.Kind)
	assert.Equal(t, "src/lib.kt", m.Package.Entrypoint)
	assert.Equal(t, "1.23.7", m.Toolchain.Detekt)

	require.Len(t, m.Dependencies, 3)
	assert.Equal(t, "../core", m.Dependencies["core"].Path)
	assert.Equal(t, "0.6.1", m.Dependencies["kotlinx-datetime"].Version)
	assert.Equal(t, "0.5.4", m.Dependencies["kotlinx-io"].Version)

	require.Len(t, m.Plugins, 1)
	assert.Equal(t, "2.1.0", m.Plugins["serialization"].Version)
	assert.Equal(t, []string{"json"}, m.Plugins["serialization"].Modules)
}

func TestLoader_Load_Missing(t *testing.T) {
	dir := t.TempDir()
	_, err := config.NewLoader().Load(dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDependencyNotFound))
}

func TestLoader_Load_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
	}{
		{"missing name", "package:\n  kind: bin\ntoolchain:\n  kotlin: 2.1.0\n"},
		{"bad kind", "package:\n  name: app\n  kind: dylib\ntoolchain:\n  kotlin: 2.1.0\n"},
		{"missing toolchain", "package:\n  name: app\n"},
		{"dep with both path and version", `
package:
  name: app
toolchain:
  kotlin: 2.1.0
dependencies:
  core:
    path: ../core
    version: 1.0.0
`},
		{"not yaml", "{{{"},
		{"unknown top-level key", "package:\n  name: app\ntoolchain:\n  kotlin: 2.1.0\ndependancies:\n  core:\n    path: ../core\n"},
		{"unknown package key", "package:\n  name: app\n  flavour: vanilla\ntoolchain:\n  kotlin: 2.1.0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeManifest(t, dir, tt.manifest)
			_, err := config.NewLoader().Load(dir)
			assert.Error(t, err)
		})
	}
}

func TestLockfileStore_ReadMissing(t *testing.T) {
	dir := t.TempDir()
	store := config.NewLockfileStore()

	assert.False(t, store.Exists(dir))
	lf, err := store.Read(dir)
	require.NoError(t, err)
	assert.Empty(t, lf.Dependencies)
	assert.Nil(t, lf.Toolchain)
}

func TestLockfileStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := config.NewLockfileStore()

	lf := &domain.Lockfile{
		Toolchain: &domain.ToolchainLock{
			KonancVersion:       "2.1.0",
			KonancTarballSHA256: "abc123",
		},
		Dependencies: []domain.DependencyLock{
			{
				Name:            "kotlinx-io",
				SourceType:      domain.SourceMaven,
				Version:         "0.5.4",
				MavenCoordinate: "org.jetbrains.kotlinx:kotlinx-io-core-{target}:0.5.4",
				Targets:         map[string]string{"linux_x64": "deadbeef"},
				SourceHash:      "feedface",
			},
			{
				Name:       "core",
				SourceType: domain.SourcePath,
				Path:       "../core",
				SourceHash: "cafe",
			},
		},
		Plugins: []domain.PluginLock{
			{Name: "serialization", Artifact: "serialization", Kind: domain.PluginArtifactCompiler, Version: "2.1.0", SHA256: "aa", URL: "https://example.test/p.jar"},
		},
	}
	require.NoError(t, store.Write(dir, lf))
	assert.True(t, store.Exists(dir))

	got, err := store.Read(dir)
	require.NoError(t, err)
	require.Len(t, got.Dependencies, 2)
	// Entries come back sorted by name.
	assert.Equal(t, "core", got.Dependencies[0].Name)
	assert.Equal(t, "kotlinx-io", got.Dependencies[1].Name)
	assert.Equal(t, "deadbeef", got.Dependencies[1].Targets["linux_x64"])
	require.NotNil(t, got.Toolchain)
	assert.Equal(t, "2.1.0", got.Toolchain.KonancVersion)
	require.Len(t, got.Plugins, 1)
	assert.Equal(t, domain.PluginArtifactCompiler, got.Plugins[0].Kind)
}

func TestLockfileStore_WriteStable(t *testing.T) {
	dir := t.TempDir()
	store := config.NewLockfileStore()

	lf := &domain.Lockfile{
		Dependencies: []domain.DependencyLock{
			{Name: "b", SourceType: domain.SourcePath, Path: "../b", SourceHash: "1"},
			{Name: "a", SourceType: domain.SourcePath, Path: "../a", SourceHash: "2"},
		},
	}
	require.NoError(t, store.Write(dir, lf))
	first, err := os.ReadFile(filepath.Join(dir, config.LockfileName))
	require.NoError(t, err)

	// Writing the same content in a different order produces identical bytes.
	lf2 := &domain.Lockfile{
		Dependencies: []domain.DependencyLock{
			{Name: "a", SourceType: domain.SourcePath, Path: "../a", SourceHash: "2"},
			{Name: "b", SourceType: domain.SourcePath, Path: "../b", SourceHash: "1"},
		},
	}
	require.NoError(t, store.Write(dir, lf2))
	second, err := os.ReadFile(filepath.Join(dir, config.LockfileName))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
