package domain

import "go.trai.ch/zerr"

var (
	// ErrManifestInvalid is returned when a manifest fails validation.
	ErrManifestInvalid = zerr.New("invalid manifest")

	// ErrUnitAlreadyExists is returned when attempting to add a build unit for a project root already in the graph.
	ErrUnitAlreadyExists = zerr.New("build unit already exists")

	// ErrCycleDetected is returned when the path-dependency walk revisits a project on the traversal stack.
	ErrCycleDetected = zerr.New("dependency cycle detected")

	// ErrDependencyNotFound is returned when a declared path dependency has no manifest on disk.
	ErrDependencyNotFound = zerr.New("dependency not found")

	// ErrDependencyNotLib is returned when a path dependency is not a library project.
	ErrDependencyNotLib = zerr.New("dependency must be a library")

	// ErrToolchainMismatch is returned when a dependency pins a different compiler version than the root project.
	ErrToolchainMismatch = zerr.New("dependency toolchain version mismatch")

	// ErrPathEscape is returned when a path dependency resolves outside the project tree.
	ErrPathEscape = zerr.New("dependency path escapes the project tree")

	// ErrAmbiguousDependencySource is returned when a dependency declares both or neither of path and version.
	ErrAmbiguousDependencySource = zerr.New("dependency must declare exactly one of path or version")

	// ErrUnknownLibrary is returned when an external dependency name is not in the curated index.
	ErrUnknownLibrary = zerr.New("unknown library")

	// ErrUnknownPlugin is returned when a plugin name is not in the curated index.
	ErrUnknownPlugin = zerr.New("unknown plugin")

	// ErrUnknownModule is returned when a declared plugin module is not in the plugin's module set.
	ErrUnknownModule = zerr.New("unknown plugin module")

	// ErrEmptyPluginVersion is returned when a plugin declares an empty version string.
	ErrEmptyPluginVersion = zerr.New("plugin version must not be empty")

	// ErrLockedModeViolation is returned when a locked build finds a declared dependency missing from the lockfile.
	ErrLockedModeViolation = zerr.New("lockfile is incomplete; run `kiln update` to resolve dependencies")

	// ErrSourceHashMismatch is returned in locked mode when a path dependency's sources drifted from the lockfile.
	ErrSourceHashMismatch = zerr.New("dependency sources changed since lockfile was written")

	// ErrCacheFailure is returned when the artifact store cannot be read or written.
	ErrCacheFailure = zerr.New("artifact store failure")

	// ErrCompilationFailed is returned when the compiler driver reports an error for a unit.
	ErrCompilationFailed = zerr.New("compilation failed")

	// ErrFetchFailed is returned when a network fetch of an external artifact fails.
	ErrFetchFailed = zerr.New("artifact fetch failed")

	// ErrArtifactHashMismatch is returned when a fetched artifact does not match its locked SHA-256.
	ErrArtifactHashMismatch = zerr.New("artifact hash mismatch")

	// ErrUnsupportedTarget is returned for target strings outside the known target set.
	ErrUnsupportedTarget = zerr.New("unsupported target")

	// ErrUnsupportedHost is returned when the host platform maps to no known target.
	ErrUnsupportedHost = zerr.New("unsupported host platform")

	// ErrNoSources is returned when a unit's source root contains no source files.
	ErrNoSources = zerr.New("no source files found")

	// ErrBuildFailed is the terminal error when one or more units failed to build.
	ErrBuildFailed = zerr.New("build failed")
)

// WithDetail attaches a key-value pair to a sentinel while keeping errors.Is
// intact. zerr.With on a bare sentinel returns a detached copy with no cause,
// so the sentinel must be wrapped before metadata is added.
func WithDetail(sentinel error, key string, value any) error {
	return zerr.With(zerr.Wrap(sentinel, ""), key, value)
}
