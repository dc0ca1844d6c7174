// Package domain contains the core domain models for the build orchestrator:
// manifests, lockfiles, the dependency graph, and build reporting.
package domain

import (
	"sort"
	"strings"

	"go.trai.ch/zerr"
)

// PackageKind distinguishes executables from libraries.
type PackageKind string

const (
	// KindBin is an executable package.
	KindBin PackageKind = "bin"
	// KindLib is a library package usable as a path dependency.
	KindLib PackageKind = "lib"
)

// DefaultEntrypoint is used when the manifest omits package.entrypoint.
const DefaultEntrypoint = "src/main.kt"

// Package identifies a single buildable project.
type Package struct {
	Name       string
	Kind       PackageKind
	Version    string
	Entrypoint string
}

// Toolchain declares the compiler version a project builds with,
// plus an optional linter version.
type Toolchain struct {
	Kotlin string
	Detekt string
}

// DependencySpec is a declared dependency before resolution.
// Exactly one of Path (path dependency) or Version (external, Maven-resolved)
// must be set.
type DependencySpec struct {
	Path    string
	Version string
}

// IsPath reports whether the spec declares a path dependency.
func (s DependencySpec) IsPath() bool { return s.Path != "" }

// IsExternal reports whether the spec declares an external (versioned) dependency.
func (s DependencySpec) IsExternal() bool { return s.Version != "" }

// Validate checks the exactly-one-of {path, version} invariant.
func (s DependencySpec) Validate(name string) error {
	if s.IsPath() == s.IsExternal() {
		return WithDetail(ErrAmbiguousDependencySource, "dependency", name)
	}
	return nil
}

// PluginSpec is a declared compiler plugin.
type PluginSpec struct {
	Version string
	Modules []string
}

// Manifest is the typed, validated representation of a kiln.yaml file.
// It is immutable for the duration of a build invocation.
type Manifest struct {
	Package      Package
	Toolchain    Toolchain
	Dependencies map[string]DependencySpec
	Plugins      map[string]PluginSpec
}

func isValidName(name string) bool {
	if name == "" {
		return false
	}
	for _, c := range name {
		ok := c == '-' || c == '_' ||
			(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
		if !ok {
			return false
		}
	}
	return true
}

// Validate checks structural invariants common to every manifest.
// The path argument is attached to errors so the user knows which file is broken.
func (m *Manifest) Validate(path string) error {
	if m.Package.Name == "" {
		return zerr.With(WithDetail(ErrManifestInvalid, "field", "package.name"), "path", path)
	}
	if !isValidName(m.Package.Name) {
		err := WithDetail(ErrManifestInvalid, "field", "package.name")
		err = zerr.With(err, "name", m.Package.Name)
		return zerr.With(err, "path", path)
	}
	switch m.Package.Kind {
	case KindBin, KindLib:
	default:
		err := WithDetail(ErrManifestInvalid, "field", "package.kind")
		err = zerr.With(err, "kind", string(m.Package.Kind))
		return zerr.With(err, "path", path)
	}
	if !strings.HasSuffix(m.Package.Entrypoint, ".kt") {
		err := WithDetail(ErrManifestInvalid, "field", "package.entrypoint")
		err = zerr.With(err, "entrypoint", m.Package.Entrypoint)
		return zerr.With(err, "path", path)
	}
	if m.Toolchain.Kotlin == "" {
		return zerr.With(WithDetail(ErrManifestInvalid, "field", "toolchain.kotlin"), "path", path)
	}
	for name, spec := range m.Dependencies {
		if err := spec.Validate(name); err != nil {
			return zerr.With(err, "path", path)
		}
	}
	return nil
}

// SortedDependencyNames returns the declared dependency names in sorted order.
// Map iteration order must never leak into build behavior.
func (m *Manifest) SortedDependencyNames() []string {
	names := make([]string, 0, len(m.Dependencies))
	for name := range m.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SortedPluginNames returns the declared plugin names in sorted order.
func (m *Manifest) SortedPluginNames() []string {
	names := make([]string, 0, len(m.Plugins))
	for name := range m.Plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Normalize renders the manifest as a canonical text form: fixed field order,
// dependencies and plugins sorted by name, no insignificant whitespace.
// Two manifests that differ only in declaration order or formatting normalize
// to the same string, which keeps cache keys stable across cosmetic edits.
func (m *Manifest) Normalize() string {
	var b strings.Builder
	b.WriteString("package.name=")
	b.WriteString(m.Package.Name)
	b.WriteString("\npackage.kind=")
	b.WriteString(string(m.Package.Kind))
	b.WriteString("\npackage.version=")
	b.WriteString(m.Package.Version)
	b.WriteString("\npackage.entrypoint=")
	b.WriteString(m.Package.Entrypoint)
	b.WriteString("\ntoolchain.kotlin=")
	b.WriteString(m.Toolchain.Kotlin)
	if m.Toolchain.Detekt != "" {
		b.WriteString("\ntoolchain.detekt=")
		b.WriteString(m.Toolchain.Detekt)
	}
	for _, name := range m.SortedDependencyNames() {
		spec := m.Dependencies[name]
		b.WriteString("\ndependency.")
		b.WriteString(name)
		if spec.IsPath() {
			b.WriteString(".path=")
			b.WriteString(spec.Path)
		} else {
			b.WriteString(".version=")
			b.WriteString(spec.Version)
		}
	}
	for _, name := range m.SortedPluginNames() {
		spec := m.Plugins[name]
		b.WriteString("\nplugin.")
		b.WriteString(name)
		b.WriteString(".version=")
		b.WriteString(spec.Version)
		modules := make([]string, len(spec.Modules))
		copy(modules, spec.Modules)
		sort.Strings(modules)
		for _, mod := range modules {
			b.WriteString("\nplugin.")
			b.WriteString(name)
			b.WriteString(".module=")
			b.WriteString(mod)
		}
	}
	b.WriteString("\n")
	return b.String()
}
