// Package resolver maintains the lockfile: it resolves external dependencies
// and compiler plugins against a curated index of Maven coordinate templates,
// pins content hashes, and fetches locked artifacts into the local cache.
package resolver

import (
	"bytes"
	"embed"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"go.trai.ch/kiln/internal/adapters/maven" //nolint:depguard // Coordinate handling shared with the fetch path
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/zerr"
)

//go:embed descriptors/libraries/*.yaml
var libraryDescriptors embed.FS

//go:embed descriptors/plugins/*.yaml
var pluginDescriptors embed.FS

// LibraryDescriptor maps a short library name to a Maven coordinate template.
// Templates carry {version} and {target} placeholders substituted at
// resolution time.
type LibraryDescriptor struct {
	Name  string `yaml:"name"`
	Maven string `yaml:"maven"`
}

// ModuleSpec is one runtime module of a plugin. Always-included modules ship
// whenever the plugin is enabled; depends_on pulls modules in transitively.
type ModuleSpec struct {
	Maven     string   `yaml:"maven"`
	Always    bool     `yaml:"always"`
	DependsOn []string `yaml:"depends_on"`
}

// PluginDescriptor describes a compiler plugin and its runtime modules. The
// compiler_plugin template may carry a {kotlin_version} placeholder since
// compiler plugins version with the compiler, not the runtime.
type PluginDescriptor struct {
	Name           string                `yaml:"name"`
	CompilerPlugin string                `yaml:"compiler_plugin"`
	Modules        map[string]ModuleSpec `yaml:"modules"`
}

// Index is the compiled-in catalog of resolvable libraries and plugins.
type Index struct {
	libraries map[string]LibraryDescriptor
	plugins   map[string]PluginDescriptor
}

// LoadIndex parses every embedded descriptor. Descriptors are shipped with the
// binary, so a parse failure is a packaging bug, not a user error.
func LoadIndex() (*Index, error) {
	ix := &Index{
		libraries: make(map[string]LibraryDescriptor),
		plugins:   make(map[string]PluginDescriptor),
	}

	libEntries, err := libraryDescriptors.ReadDir("descriptors/libraries")
	if err != nil {
		return nil, zerr.Wrap(err, "reading embedded library descriptors")
	}
	for _, entry := range libEntries {
		raw, err := libraryDescriptors.ReadFile("descriptors/libraries/" + entry.Name())
		if err != nil {
			return nil, zerr.Wrap(err, "reading embedded library descriptor")
		}
		var d LibraryDescriptor
		if err := strictUnmarshal(raw, &d); err != nil {
			return nil, zerr.With(zerr.Wrap(err, "parsing library descriptor"), "file", entry.Name())
		}
		ix.libraries[d.Name] = d
	}

	plugEntries, err := pluginDescriptors.ReadDir("descriptors/plugins")
	if err != nil {
		return nil, zerr.Wrap(err, "reading embedded plugin descriptors")
	}
	for _, entry := range plugEntries {
		raw, err := pluginDescriptors.ReadFile("descriptors/plugins/" + entry.Name())
		if err != nil {
			return nil, zerr.Wrap(err, "reading embedded plugin descriptor")
		}
		var d PluginDescriptor
		if err := strictUnmarshal(raw, &d); err != nil {
			return nil, zerr.With(zerr.Wrap(err, "parsing plugin descriptor"), "file", entry.Name())
		}
		ix.plugins[d.Name] = d
	}

	return ix, nil
}

// strictUnmarshal rejects unknown fields so typos in descriptors fail loudly.
func strictUnmarshal(raw []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	return dec.Decode(out)
}

// Library looks up a library descriptor by short name.
func (ix *Index) Library(name string) (LibraryDescriptor, error) {
	d, ok := ix.libraries[name]
	if !ok {
		err := domain.WithDetail(domain.ErrUnknownLibrary, "library", name)
		return LibraryDescriptor{}, zerr.With(err, "available", strings.Join(ix.LibraryNames(), ", "))
	}
	return d, nil
}

// Plugin looks up a plugin descriptor by name.
func (ix *Index) Plugin(name string) (PluginDescriptor, error) {
	d, ok := ix.plugins[name]
	if !ok {
		err := domain.WithDetail(domain.ErrUnknownPlugin, "plugin", name)
		return PluginDescriptor{}, zerr.With(err, "available", strings.Join(ix.PluginNames(), ", "))
	}
	return d, nil
}

// LibraryNames returns the sorted short names of all indexed libraries.
func (ix *Index) LibraryNames() []string {
	names := make([]string, 0, len(ix.libraries))
	for name := range ix.libraries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PluginNames returns the sorted names of all indexed plugins.
func (ix *Index) PluginNames() []string {
	names := make([]string, 0, len(ix.plugins))
	for name := range ix.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// moduleNames returns the sorted module names of a plugin descriptor.
func (d PluginDescriptor) moduleNames() []string {
	names := make([]string, 0, len(d.Modules))
	for name := range d.Modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resolveModuleSet expands the selected module names to a fixpoint: always
// modules, user-selected modules, and everything reachable via depends_on.
// The result is sorted so downstream artifact lists are deterministic.
func resolveModuleSet(d PluginDescriptor, selected []string) ([]string, error) {
	for _, name := range selected {
		if _, ok := d.Modules[name]; !ok {
			err := domain.WithDetail(domain.ErrUnknownModule, "plugin", d.Name)
			err = zerr.With(err, "module", name)
			return nil, zerr.With(err, "available", strings.Join(d.moduleNames(), ", "))
		}
	}

	set := make(map[string]bool)
	for name, spec := range d.Modules {
		if spec.Always {
			set[name] = true
		}
	}
	for _, name := range selected {
		set[name] = true
	}

	for {
		added := false
		for name := range set {
			for _, dep := range d.Modules[name].DependsOn {
				if !set[dep] {
					set[dep] = true
					added = true
				}
			}
		}
		if !added {
			break
		}
	}

	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// substituteTemplate fills {kotlin_version}, {version}, and {target} in a
// coordinate template.
func substituteTemplate(template, kotlinVersion, pluginVersion string, target domain.Target) string {
	out := strings.ReplaceAll(template, "{kotlin_version}", kotlinVersion)
	out = strings.ReplaceAll(out, "{version}", pluginVersion)
	return strings.ReplaceAll(out, "{target}", target.MavenSuffix())
}

// PluginArtifact is one resolved plugin artifact ready to fetch: either the
// compiler plugin JAR or a runtime module klib.
type PluginArtifact struct {
	PluginName   string
	ArtifactName string
	Kind         string
	Coordinate   maven.Coordinate
	URL          string
	CachePath    string
}

// resolvePluginArtifacts expands every plugin declared in the manifest into
// concrete artifacts. The compiler plugin JAR comes first, followed by runtime
// modules in sorted order.
func (ix *Index) resolvePluginArtifacts(
	manifest *domain.Manifest,
	target domain.Target,
	cacheRoot string,
) ([]PluginArtifact, error) {
	var artifacts []PluginArtifact

	for _, pluginName := range manifest.SortedPluginNames() {
		spec := manifest.Plugins[pluginName]
		if spec.Version == "" {
			return nil, domain.WithDetail(domain.ErrEmptyPluginVersion, "plugin", pluginName)
		}

		descriptor, err := ix.Plugin(pluginName)
		if err != nil {
			return nil, err
		}

		compilerCoord, err := maven.ParseCoordinate(
			substituteTemplate(descriptor.CompilerPlugin, manifest.Toolchain.Kotlin, spec.Version, target),
		)
		if err != nil {
			return nil, zerr.With(err, "plugin", pluginName)
		}
		artifacts = append(artifacts, PluginArtifact{
			PluginName:   pluginName,
			ArtifactName: "compiler-plugin",
			Kind:         domain.PluginArtifactCompiler,
			Coordinate:   compilerCoord,
			URL:          compilerCoord.URL(maven.Central),
			CachePath:    compilerCoord.CachePath(cacheRoot),
		})

		modules, err := resolveModuleSet(descriptor, spec.Modules)
		if err != nil {
			return nil, err
		}
		for _, module := range modules {
			coord, err := maven.ParseCoordinate(
				substituteTemplate(descriptor.Modules[module].Maven, manifest.Toolchain.Kotlin, spec.Version, target),
			)
			if err != nil {
				err = zerr.With(err, "plugin", pluginName)
				return nil, zerr.With(err, "module", module)
			}
			// Runtime modules always ship as klibs.
			coord.Packaging = "klib"
			artifacts = append(artifacts, PluginArtifact{
				PluginName:   pluginName,
				ArtifactName: module,
				Kind:         domain.PluginArtifactRuntime,
				Coordinate:   coord,
				URL:          coord.URL(maven.Central),
				CachePath:    coord.CachePath(cacheRoot),
			})
		}
	}

	return artifacts, nil
}
