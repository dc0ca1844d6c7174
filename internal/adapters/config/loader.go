// Package config loads project manifests and persists lockfiles.
package config

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// ManifestName is the manifest file name looked up in every project root.
const ManifestName = "kiln.yaml"

var _ ports.ManifestLoader = (*Loader)(nil)

// Loader implements ports.ManifestLoader for kiln.yaml files.
type Loader struct{}

// NewLoader creates a new Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and validates the manifest in dir, applying defaults.
func (l *Loader) Load(dir string) (*domain.Manifest, error) {
	path := filepath.Join(dir, ManifestName)
	data, err := os.ReadFile(path) //nolint:gosec // path is provided by user
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.WithDetail(domain.ErrDependencyNotFound, "path", path)
		}
		return nil, zerr.With(zerr.Wrap(err, "failed to read manifest"), "path", path)
	}

	// Unknown keys are rejected so manifest typos fail loudly instead of
	// silently dropping configuration.
	var file manifestFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to parse manifest"), "path", path)
	}

	m := &domain.Manifest{
		Package: domain.Package{
			Name:       file.Package.Name,
			Kind:       domain.PackageKind(file.Package.Kind),
			Version:    file.Package.Version,
			Entrypoint: file.Package.Entrypoint,
		},
		Toolchain: domain.Toolchain{
			Kotlin: file.Toolchain.Kotlin,
			Detekt: file.Toolchain.Detekt,
		},
	}

	// Defaults before validation, so a minimal manifest passes.
	if m.Package.Kind == "" {
		m.Package.Kind = domain.KindBin
	}
	if m.Package.Entrypoint == "" {
		m.Package.Entrypoint = domain.DefaultEntrypoint
	}

	if len(file.Dependencies) > 0 {
		m.Dependencies = make(map[string]domain.DependencySpec, len(file.Dependencies))
		for name, dto := range file.Dependencies {
			m.Dependencies[name] = domain.DependencySpec{
				Path:    dto.Path,
				Version: dto.Version,
			}
		}
	}

	if len(file.Plugins) > 0 {
		m.Plugins = make(map[string]domain.PluginSpec, len(file.Plugins))
		for name, dto := range file.Plugins {
			m.Plugins[name] = domain.PluginSpec{
				Version: dto.Version,
				Modules: dto.Modules,
			}
		}
	}

	if err := m.Validate(path); err != nil {
		return nil, err
	}

	return m, nil
}
