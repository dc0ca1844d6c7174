// Package app implements the application layer for kiln: it ties the graph
// builder, dependency resolver, and scheduler together into the operations
// the CLI exposes.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/engine/graph"
	"go.trai.ch/kiln/internal/engine/resolver"
	"go.trai.ch/kiln/internal/engine/scheduler"
	"go.trai.ch/zerr"
)

// App exposes the build orchestrator's operations to the CLI layer.
type App struct {
	loader    ports.ManifestLoader
	lockStore ports.LockfileStore
	store     ports.ArtifactStore
	builder   *graph.Builder
	resolver  *resolver.Resolver
	scheduler *scheduler.Scheduler
	logger    ports.Logger
}

// New creates a new App instance.
func New(
	loader ports.ManifestLoader,
	lockStore ports.LockfileStore,
	store ports.ArtifactStore,
	builder *graph.Builder,
	res *resolver.Resolver,
	sched *scheduler.Scheduler,
	logger ports.Logger,
) *App {
	return &App{
		loader:    loader,
		lockStore: lockStore,
		store:     store,
		builder:   builder,
		resolver:  res,
		scheduler: sched,
		logger:    logger,
	}
}

// BuildOptions configures a RunBuild invocation.
type BuildOptions struct {
	// Target is the target triple; empty means the host target.
	Target string
	// Profile is the build profile; empty means debug.
	Profile string
	// Jobs bounds parallel compilations; zero means NumCPU.
	Jobs int
	// Force recompiles everything, ignoring the artifact store.
	Force bool
	// Locked forbids lockfile mutation and requires a complete lockfile.
	Locked bool
}

// BuildGraph loads the project in rootDir and resolves its full path
// dependency graph without building anything.
func (a *App) BuildGraph(rootDir string, includeTests bool) (*domain.DependencyGraph, error) {
	return a.builder.Build(rootDir, includeTests)
}

// RunBuild builds the project in rootDir end to end: graph resolution,
// lockfile checks, external artifact fetch, then the scheduled compilation.
// Compilation failures are reported through the returned BuildReport and
// domain.ErrBuildFailed; other errors abort before any report exists.
func (a *App) RunBuild(ctx context.Context, rootDir string, opts BuildOptions) (*domain.BuildReport, error) {
	target, profile, err := resolveTargetProfile(opts)
	if err != nil {
		return nil, err
	}

	manifest, err := a.loader.Load(rootDir)
	if err != nil {
		return nil, err
	}
	lock, err := a.lockStore.Read(rootDir)
	if err != nil {
		return nil, err
	}

	// Locked builds fail fast on an incomplete lockfile, before any graph
	// walking or network traffic.
	if opts.Locked {
		if err := a.resolver.EnsureLocked(manifest, lock); err != nil {
			return nil, err
		}
	}

	g, err := a.builder.Build(rootDir, profile.IsTest())
	if err != nil {
		return nil, err
	}

	if err := a.resolver.VerifyPathSources(g, lock, opts.Locked); err != nil {
		return nil, err
	}

	externalLibs, pluginJars, err := a.fetchExternal(ctx, g, lock, target, opts.Locked)
	if err != nil {
		return nil, err
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}

	report, err := a.scheduler.Run(ctx, g, scheduler.Options{
		Target:            target,
		Profile:           profile,
		Parallelism:       jobs,
		Force:             opts.Force,
		LockfileContent:   lockContent(lock),
		OutputDir:         OutputDir(rootDir, target, profile),
		ExternalLibraries: externalLibs,
		PluginJars:        pluginJars,
	})
	if err != nil {
		return nil, err
	}

	// Unlocked builds re-lock path dependency hashes so the next locked run
	// verifies against what was actually built.
	if !opts.Locked {
		if err := a.relockPathDeps(rootDir, lock, g); err != nil {
			return nil, err
		}
	}

	if report.Failed() {
		counts := report.Counts()
		err := domain.WithDetail(domain.ErrBuildFailed, "failed", counts[domain.UnitStatusFailed])
		err = zerr.With(err, "skipped", counts[domain.UnitStatusSkipped])
		err = zerr.With(err, "compiled", counts[domain.UnitStatusCompiled])
		return report, zerr.With(err, "fresh", counts[domain.UnitStatusFresh])
	}
	return report, nil
}

// fetchExternal materializes locked external klibs and plugin JARs for every
// unit that declares them, keyed by unit root for the scheduler.
func (a *App) fetchExternal(
	ctx context.Context,
	g *domain.DependencyGraph,
	lock *domain.Lockfile,
	target domain.Target,
	locked bool,
) (map[string][]string, map[string][]string, error) {
	libs := make(map[string][]string)
	jars := make(map[string][]string)

	for i := 0; i < g.Len(); i++ {
		unit := g.Unit(i)
		if !unitNeedsExternal(unit.Manifest) {
			continue
		}
		artifacts, err := a.resolver.FetchExternal(ctx, unit.Manifest, lock, target, locked)
		if err != nil {
			return nil, nil, err
		}
		if len(artifacts.Libraries) > 0 {
			libs[unit.Root] = artifacts.Libraries
		}
		if len(artifacts.PluginJars) > 0 {
			jars[unit.Root] = artifacts.PluginJars
		}
	}
	return libs, jars, nil
}

func unitNeedsExternal(m *domain.Manifest) bool {
	if len(m.Plugins) > 0 {
		return true
	}
	for _, spec := range m.Dependencies {
		if spec.IsExternal() {
			return true
		}
	}
	return false
}

// relockPathDeps rewrites the lockfile's path entries from the freshly built
// graph, keeping external and plugin entries untouched.
func (a *App) relockPathDeps(rootDir string, lock *domain.Lockfile, g *domain.DependencyGraph) error {
	var kept []domain.DependencyLock
	for _, d := range lock.Dependencies {
		if d.SourceType != domain.SourcePath {
			kept = append(kept, d)
		}
	}
	lock.Dependencies = append(kept, resolver.PathLocks(g)...)

	if lock.Toolchain == nil {
		rootManifest := g.Unit(g.Root()).Manifest
		lock.Toolchain = &domain.ToolchainLock{
			KonancVersion: rootManifest.Toolchain.Kotlin,
			DetektVersion: rootManifest.Toolchain.Detekt,
		}
	}
	return a.lockStore.Write(rootDir, lock)
}

// Update resolves external dependencies and plugins and rewrites the lockfile.
func (a *App) Update(ctx context.Context, rootDir string) (*resolver.UpdateResult, error) {
	return a.resolver.Update(ctx, rootDir)
}

// Clean removes the project's build output directory. With cache set it also
// empties the shared artifact store.
func (a *App) Clean(rootDir string, cache bool) error {
	buildDir := filepath.Join(rootDir, "build")
	if err := os.RemoveAll(buildDir); err != nil {
		return zerr.With(zerr.Wrap(err, "removing build directory"), "path", buildDir)
	}
	a.logger.Info("removed " + buildDir)

	if cache {
		if err := a.store.Clean(); err != nil {
			return err
		}
		a.logger.Info("emptied artifact store")
	}
	return nil
}

// OutputDir returns where artifacts for a target/profile combination land,
// <project>/build/<target>/<profile>.
func OutputDir(rootDir string, target domain.Target, profile domain.Profile) string {
	return filepath.Join(rootDir, "build", target.String(), profile.String())
}

// resolveTargetProfile applies the host-target and debug-profile defaults.
func resolveTargetProfile(opts BuildOptions) (domain.Target, domain.Profile, error) {
	var (
		target domain.Target
		err    error
	)
	if opts.Target == "" {
		target, err = domain.HostTarget()
	} else {
		target, err = domain.ParseTarget(opts.Target)
	}
	if err != nil {
		return domain.Target{}, "", err
	}

	profile := domain.ProfileDebug
	if opts.Profile != "" {
		profile, err = domain.ParseProfile(opts.Profile)
		if err != nil {
			return domain.Target{}, "", err
		}
	}
	return target, profile, nil
}

// lockContent renders the lockfile in its canonical serialized form for cache
// keying. Serialization of an in-memory lockfile is deterministic, so two
// builds against the same lock state always agree.
func lockContent(lock *domain.Lockfile) string {
	data, err := yaml.Marshal(lock)
	if err != nil {
		// A lockfile that round-tripped through the store always marshals;
		// fall back to a non-cacheable sentinel rather than failing the build.
		return fmt.Sprintf("unserializable-lockfile-%p", lock)
	}
	return string(data)
}
