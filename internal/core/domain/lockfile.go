package domain

// Source type discriminators for lockfile dependency entries.
const (
	// SourcePath marks a dependency resolved from a local path.
	SourcePath = "path"
	// SourceMaven marks a dependency resolved from a Maven repository.
	SourceMaven = "maven"
)

// Plugin artifact kinds recorded in the lockfile.
const (
	// PluginArtifactCompiler is a compiler plugin JAR.
	PluginArtifactCompiler = "compiler-plugin"
	// PluginArtifactRuntime is a runtime library shipped by a plugin module.
	PluginArtifactRuntime = "runtime"
)

// ToolchainLock pins the resolved toolchain in the lockfile.
type ToolchainLock struct {
	KonancVersion       string `yaml:"konanc_version"`
	KonancTarballSHA256 string `yaml:"konanc_tarball_sha256,omitempty"`
	JRETarballSHA256    string `yaml:"jre_tarball_sha256,omitempty"`
	DetektVersion       string `yaml:"detekt_version,omitempty"`
	DetektJarSHA256     string `yaml:"detekt_jar_sha256,omitempty"`
}

// DependencyLock is a single resolved dependency entry.
//
// Path entries carry Path and SourceHash. Maven entries carry Version, the
// coordinate template with the {target} placeholder intact, and one content
// hash per supported target.
type DependencyLock struct {
	Name            string            `yaml:"name"`
	SourceType      string            `yaml:"source_type"`
	Path            string            `yaml:"path,omitempty"`
	Version         string            `yaml:"version,omitempty"`
	MavenCoordinate string            `yaml:"maven_coordinate,omitempty"`
	Targets         map[string]string `yaml:"targets,omitempty"`
	SourceHash      string            `yaml:"source_hash"`
}

// PluginLock is one locked plugin artifact. A plugin with N runtime modules
// produces N+1 entries: the compiler plugin JAR plus one per module.
type PluginLock struct {
	Name     string `yaml:"name"`
	Artifact string `yaml:"artifact"`
	Kind     string `yaml:"kind"`
	Version  string `yaml:"version"`
	SHA256   string `yaml:"sha256"`
	URL      string `yaml:"url"`
}

// Lockfile is the persisted record of resolved toolchain, dependency, and
// plugin state. It is mutated only by the dependency resolver and written
// atomically.
type Lockfile struct {
	Toolchain    *ToolchainLock   `yaml:"toolchain,omitempty"`
	Dependencies []DependencyLock `yaml:"dependencies,omitempty"`
	Plugins      []PluginLock     `yaml:"plugins,omitempty"`
}

// FindDependency returns the entry for name, or nil if absent.
func (l *Lockfile) FindDependency(name string) *DependencyLock {
	for i := range l.Dependencies {
		if l.Dependencies[i].Name == name {
			return &l.Dependencies[i]
		}
	}
	return nil
}

// PluginEntries returns all locked artifacts belonging to the named plugin.
func (l *Lockfile) PluginEntries(name string) []PluginLock {
	var entries []PluginLock
	for _, p := range l.Plugins {
		if p.Name == name {
			entries = append(entries, p)
		}
	}
	return entries
}

// HasPlugin reports whether any artifact of the named plugin is locked at the
// given version.
func (l *Lockfile) HasPlugin(name, version string) bool {
	for _, p := range l.Plugins {
		if p.Name == name && p.Version == version {
			return true
		}
	}
	return false
}
