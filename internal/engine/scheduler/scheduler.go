// Package scheduler executes the dependency graph level by level.
package scheduler

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/engine/cache"
)

// Options configures a single build invocation.
type Options struct {
	// Target is the compilation target triple.
	Target domain.Target
	// Profile selects optimization and test mode.
	Profile domain.Profile
	// Parallelism bounds concurrent compilations within a level.
	Parallelism int
	// Force bypasses artifact store lookups so every unit recompiles.
	Force bool
	// LockfileContent is the serialized lockfile, folded into cache keys.
	LockfileContent string
	// OutputDir is where the root artifact is placed. Dependency klibs go
	// under OutputDir/deps.
	OutputDir string
	// ExternalLibraries maps unit roots to cached external klib paths.
	ExternalLibraries map[string][]string
	// PluginJars maps unit roots to compiler plugin JAR paths.
	PluginJars map[string][]string
}

// Scheduler builds every unit of a graph, reusing stored artifacts when the
// cache key matches. Levels run in sequence; units within a level run in
// parallel up to Options.Parallelism. A failure skips all transitive
// dependents but lets unrelated units finish.
type Scheduler struct {
	store     ports.ArtifactStore
	driver    ports.CompilerDriver
	toolchain ports.ToolchainResolver
	hasher    ports.TreeHasher
	telemetry ports.Telemetry
}

// NewScheduler creates a new Scheduler.
func NewScheduler(
	store ports.ArtifactStore,
	driver ports.CompilerDriver,
	toolchain ports.ToolchainResolver,
	hasher ports.TreeHasher,
	telemetry ports.Telemetry,
) *Scheduler {
	return &Scheduler{
		store:     store,
		driver:    driver,
		toolchain: toolchain,
		hasher:    hasher,
		telemetry: telemetry,
	}
}

type runState struct {
	mu        sync.Mutex
	keys      map[int]domain.CacheKey
	artifacts map[int]string
	results   map[int]domain.UnitResult
	skipped   map[int]bool
}

// Run builds the whole graph and reports per-unit outcomes. Compilation
// failures are folded into the report, not returned; the error return is for
// infrastructure failures that prevent the build from proceeding at all.
func (s *Scheduler) Run(ctx context.Context, g *domain.DependencyGraph, opts Options) (*domain.BuildReport, error) {
	start := time.Now()

	levels, err := g.Levels()
	if err != nil {
		return nil, err
	}

	rootManifest := g.Unit(g.Root()).Manifest
	toolchain, err := s.toolchain.Resolve(ctx, rootManifest.Toolchain.Kotlin)
	if err != nil {
		return nil, err
	}

	parallelism := opts.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}

	state := &runState{
		keys:      make(map[int]domain.CacheKey, g.Len()),
		artifacts: make(map[int]string, g.Len()),
		results:   make(map[int]domain.UnitResult, g.Len()),
		skipped:   make(map[int]bool),
	}

	for _, level := range levels {
		eg := new(errgroup.Group)
		eg.SetLimit(parallelism)

		for _, idx := range level {
			if state.skipped[idx] {
				state.recordSkip(idx, g.Unit(idx))
				continue
			}
			eg.Go(func() error {
				return s.buildUnit(ctx, g, idx, toolchain, opts, state)
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}

		// Mark dependents of this level's failures before the next level
		// starts, so they never get scheduled.
		state.mu.Lock()
		for _, idx := range level {
			if res, ok := state.results[idx]; ok && res.Status == domain.UnitStatusFailed {
				for _, dep := range g.TransitiveDependents(idx) {
					state.skipped[dep] = true
				}
			}
		}
		state.mu.Unlock()
	}

	report := &domain.BuildReport{
		Target:  opts.Target,
		Profile: opts.Profile,
		Elapsed: time.Since(start),
	}
	for _, level := range levels {
		for _, idx := range level {
			report.Results = append(report.Results, state.results[idx])
		}
	}
	return report, nil
}

func (state *runState) recordSkip(idx int, unit *domain.BuildUnit) {
	state.mu.Lock()
	defer state.mu.Unlock()
	state.results[idx] = domain.UnitResult{
		Unit:   unit.Name.String(),
		Status: domain.UnitStatusSkipped,
		Err:    domain.WithDetail(domain.ErrBuildFailed, "reason", "dependency failed"),
	}
}

// buildUnit compiles or restores one unit. The unit's terminal result always
// lands in state.results, including on failure.
func (s *Scheduler) buildUnit(
	ctx context.Context,
	g *domain.DependencyGraph,
	idx int,
	toolchain *ports.ToolchainInfo,
	opts Options,
	state *runState,
) error {
	unit := g.Unit(idx)
	unitStart := time.Now()

	vctx, vertex := s.telemetry.Record(ctx, unit.Name.String())

	res, err := s.buildOne(vctx, g, idx, toolchain, opts, state)
	if res.Status == domain.UnitStatusFresh {
		vertex.Cached()
	}
	vertex.Complete(err)

	res.Unit = unit.Name.String()
	res.Duration = time.Since(unitStart)
	res.Err = err

	state.mu.Lock()
	defer state.mu.Unlock()
	state.results[idx] = res
	return nil
}

func (s *Scheduler) buildOne(
	ctx context.Context,
	g *domain.DependencyGraph,
	idx int,
	toolchain *ports.ToolchainInfo,
	opts Options,
	state *runState,
) (domain.UnitResult, error) {
	unit := g.Unit(idx)
	isRoot := idx == g.Root()

	// Test sources only count toward the invocation root.
	includeTests := isRoot && opts.Profile.IsTest()
	sourceHash, sources, err := s.hasher.HashTree(unit.Root, includeTests)
	if err != nil {
		return domain.UnitResult{Status: domain.UnitStatusFailed}, err
	}

	depKeys, libraries := state.depArtifacts(unit)
	libraries = append(libraries, opts.ExternalLibraries[unit.Root]...)

	key := cache.Key(cache.Inputs{
		ManifestContent:   unit.Manifest.Normalize(),
		LockfileContent:   opts.LockfileContent,
		KonancVersion:     toolchain.Version,
		KonancFingerprint: toolchain.Fingerprint,
		Target:            opts.Target.String(),
		Profile:           opts.Profile.String(),
		SourceHash:        sourceHash,
		DependencyHashes:  depKeys,
	}.WithPlatformDefaults())

	dest := s.destination(unit, isRoot, opts)
	failed := domain.UnitResult{Status: domain.UnitStatusFailed, Key: key}

	if !opts.Force {
		entry, err := s.store.Lookup(key)
		if err != nil {
			return failed, err
		}
		if entry != nil {
			if err := s.store.Materialize(entry, dest); err != nil {
				return failed, err
			}
			state.recordArtifact(idx, key, dest)
			return domain.UnitResult{
				Status:      domain.UnitStatusFresh,
				Key:         key,
				Output:      dest,
				Diagnostics: entry.Metadata.Diagnostics,
			}, nil
		}
	}

	staged, err := s.store.Stage(key)
	if err != nil {
		return failed, err
	}

	result, err := s.driver.Compile(ctx, ports.CompileRequest{
		Unit:       unit,
		Sources:    sources,
		Target:     opts.Target,
		Profile:    opts.Profile,
		Libraries:  libraries,
		PluginJars: opts.PluginJars[unit.Root],
		OutDir:     staged,
	})
	if err != nil {
		return failed, err
	}

	entry, err := s.store.Commit(key, staged, domain.BuildMetadata{
		UnitName:      unit.Name.String(),
		Target:        opts.Target.String(),
		Profile:       opts.Profile.String(),
		KonancVersion: toolchain.Version,
		BuiltAt:       time.Now().UTC(),
		Diagnostics:   result.Diagnostics,
	})
	if err != nil {
		return failed, err
	}

	if err := s.store.Materialize(entry, dest); err != nil {
		return failed, err
	}
	state.recordArtifact(idx, key, dest)
	return domain.UnitResult{
		Status:      domain.UnitStatusCompiled,
		Key:         key,
		Output:      dest,
		Diagnostics: result.Diagnostics,
	}, nil
}

// destination places the root artifact directly in the output dir and
// dependency klibs under deps/.
func (s *Scheduler) destination(unit *domain.BuildUnit, isRoot bool, opts Options) string {
	if isRoot {
		return filepath.Join(opts.OutputDir, unit.OutputName())
	}
	return filepath.Join(opts.OutputDir, "deps", unit.OutputName())
}

// depArtifacts returns the cache keys and materialized artifact paths of the
// unit's direct dependencies, in edge order.
func (state *runState) depArtifacts(unit *domain.BuildUnit) ([]string, []string) {
	state.mu.Lock()
	defer state.mu.Unlock()

	keys := make([]string, 0, len(unit.Deps))
	libs := make([]string, 0, len(unit.Deps))
	for _, dep := range unit.Deps {
		keys = append(keys, string(state.keys[dep]))
		libs = append(libs, state.artifacts[dep])
	}
	return keys, libs
}

func (state *runState) recordArtifact(idx int, key domain.CacheKey, path string) {
	state.mu.Lock()
	defer state.mu.Unlock()
	state.keys[idx] = key
	state.artifacts[idx] = path
}
