package domain

// BuildUnit is one compilable node of the dependency graph: a single project
// identified by its canonical root directory. Dependency edges reference
// other units by arena index, so diamond-shaped graphs share one node.
type BuildUnit struct {
	// Name is the package name from the unit's manifest.
	Name InternedString

	// Root is the canonical path of the directory containing the manifest.
	Root string

	// Manifest is the parsed, validated manifest of this unit.
	Manifest *Manifest

	// Deps holds arena indices of the unit's direct path dependencies.
	Deps []int

	// SourceHash is the fingerprint of the unit's source tree, computed by
	// the graph builder and recorded in the lockfile for drift detection.
	SourceHash string
}

// IsBinary reports whether the unit produces an executable.
func (u *BuildUnit) IsBinary() bool {
	return u.Manifest.Package.Kind == KindBin
}

// OutputName returns the artifact file name for this unit: name.kexe for
// binaries, name.klib for libraries.
func (u *BuildUnit) OutputName() string {
	if u.IsBinary() {
		return u.Name.String() + ".kexe"
	}
	return u.Name.String() + ".klib"
}
