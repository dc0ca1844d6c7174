package scheduler_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/telemetry"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/core/ports/mocks"
	"go.trai.ch/kiln/internal/engine/scheduler"
	"go.uber.org/mock/gomock"
)

type fixture struct {
	store     *mocks.MockArtifactStore
	driver    *mocks.MockCompilerDriver
	toolchain *mocks.MockToolchainResolver
	hasher    *mocks.MockTreeHasher
	sched     *scheduler.Scheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &fixture{
		store:     mocks.NewMockArtifactStore(ctrl),
		driver:    mocks.NewMockCompilerDriver(ctrl),
		toolchain: mocks.NewMockToolchainResolver(ctrl),
		hasher:    mocks.NewMockTreeHasher(ctrl),
	}
	f.sched = scheduler.NewScheduler(f.store, f.driver, f.toolchain, f.hasher, telemetry.NewNoOp())

	f.toolchain.EXPECT().Resolve(gomock.Any(), "2.1.0").Return(&ports.ToolchainInfo{
		Version:     "2.1.0",
		Fingerprint: "fp",
		BinaryPath:  "/opt/konanc/bin/konanc",
	}, nil).AnyTimes()
	return f
}

func addUnit(t *testing.T, g *domain.DependencyGraph, name string, kind domain.PackageKind, deps ...int) int {
	t.Helper()
	idx, err := g.AddUnit(&domain.BuildUnit{
		Name: domain.NewInternedString(name),
		Root: "/ws/" + name,
		Manifest: &domain.Manifest{
			Package:   domain.Package{Name: name, Kind: kind, Entrypoint: domain.DefaultEntrypoint},
			Toolchain: domain.Toolchain{Kotlin: "2.1.0"},
		},
		Deps: deps,
	})
	require.NoError(t, err)
	return idx
}

func defaultOptions(t *testing.T) scheduler.Options {
	t.Helper()
	target, err := domain.ParseTarget("linux_x64")
	require.NoError(t, err)
	return scheduler.Options{
		Target:      target,
		Profile:     domain.ProfileDebug,
		Parallelism: 4,
		OutputDir:   t.TempDir(),
	}
}

func (f *fixture) expectHash(root string) {
	f.hasher.EXPECT().HashTree(root, false).
		Return("hash-"+root, []string{root + "/src/main.kt"}, nil).AnyTimes()
}

func (f *fixture) expectCompile(unit string) {
	f.store.EXPECT().Lookup(gomock.Any()).Return(nil, nil)
	f.store.EXPECT().Stage(gomock.Any()).Return("/staging/"+unit, nil)
	f.driver.EXPECT().Compile(gomock.Any(), gomock.Any()).
		Return(&ports.CompileResult{ArtifactPath: "/staging/" + unit + "/out"}, nil)
	f.store.EXPECT().Commit(gomock.Any(), "/staging/"+unit, gomock.Any()).
		DoAndReturn(func(key domain.CacheKey, _ string, meta domain.BuildMetadata) (*domain.ArtifactEntry, error) {
			return &domain.ArtifactEntry{Key: key, Path: "/store/" + unit, Metadata: meta}, nil
		})
	f.store.EXPECT().Materialize(gomock.Any(), gomock.Any()).Return(nil)
}

func TestScheduler_CompilesSingleUnit(t *testing.T) {
	f := newFixture(t)
	g := domain.NewDependencyGraph()
	app := addUnit(t, g, "app", domain.KindBin)
	g.SetRoot(app)

	f.expectHash("/ws/app")
	f.expectCompile("app")

	report, err := f.sched.Run(context.Background(), g, defaultOptions(t))
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, domain.UnitStatusCompiled, report.Results[0].Status)
	assert.False(t, report.Failed())
}

func TestScheduler_FreshFromStore(t *testing.T) {
	f := newFixture(t)
	g := domain.NewDependencyGraph()
	app := addUnit(t, g, "app", domain.KindBin)
	g.SetRoot(app)

	f.expectHash("/ws/app")
	f.store.EXPECT().Lookup(gomock.Any()).
		DoAndReturn(func(key domain.CacheKey) (*domain.ArtifactEntry, error) {
			return &domain.ArtifactEntry{Key: key, Path: "/store/app"}, nil
		})
	f.store.EXPECT().Materialize(gomock.Any(), gomock.Any()).Return(nil)

	report, err := f.sched.Run(context.Background(), g, defaultOptions(t))
	require.NoError(t, err)
	assert.Equal(t, domain.UnitStatusFresh, report.Results[0].Status)
}

func TestScheduler_ResultCarriesOutputPathAndDiagnostics(t *testing.T) {
	f := newFixture(t)
	g := domain.NewDependencyGraph()
	app := addUnit(t, g, "app", domain.KindBin)
	g.SetRoot(app)

	f.expectHash("/ws/app")
	f.store.EXPECT().Lookup(gomock.Any()).Return(nil, nil)
	f.store.EXPECT().Stage(gomock.Any()).Return("/staging/app", nil)
	f.driver.EXPECT().Compile(gomock.Any(), gomock.Any()).
		Return(&ports.CompileResult{
			ArtifactPath: "/staging/app/out",
			Diagnostics:  "warning: unused variable 'x'",
		}, nil)
	f.store.EXPECT().Commit(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&domain.ArtifactEntry{Path: "/store/app"}, nil)

	var dest string
	f.store.EXPECT().Materialize(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ *domain.ArtifactEntry, path string) error {
			dest = path
			return nil
		})

	opts := defaultOptions(t)
	report, err := f.sched.Run(context.Background(), g, opts)
	require.NoError(t, err)

	res := report.Result("app")
	require.NotNil(t, res)
	assert.Equal(t, dest, res.Output)
	assert.Equal(t, filepath.Join(opts.OutputDir, "app.kexe"), res.Output)
	assert.Equal(t, "warning: unused variable 'x'", res.Diagnostics)
}

func TestScheduler_FreshResultReplaysStoredDiagnostics(t *testing.T) {
	f := newFixture(t)
	g := domain.NewDependencyGraph()
	app := addUnit(t, g, "app", domain.KindBin)
	g.SetRoot(app)

	f.expectHash("/ws/app")
	f.store.EXPECT().Lookup(gomock.Any()).
		DoAndReturn(func(key domain.CacheKey) (*domain.ArtifactEntry, error) {
			return &domain.ArtifactEntry{
				Key:      key,
				Path:     "/store/app",
				Metadata: domain.BuildMetadata{Diagnostics: "warning: deprecated API"},
			}, nil
		})
	f.store.EXPECT().Materialize(gomock.Any(), gomock.Any()).Return(nil)

	opts := defaultOptions(t)
	report, err := f.sched.Run(context.Background(), g, opts)
	require.NoError(t, err)

	res := report.Result("app")
	require.NotNil(t, res)
	assert.Equal(t, domain.UnitStatusFresh, res.Status)
	assert.Equal(t, filepath.Join(opts.OutputDir, "app.kexe"), res.Output)
	assert.Equal(t, "warning: deprecated API", res.Diagnostics)
}

func TestScheduler_ForceBypassesLookup(t *testing.T) {
	f := newFixture(t)
	g := domain.NewDependencyGraph()
	app := addUnit(t, g, "app", domain.KindBin)
	g.SetRoot(app)

	f.expectHash("/ws/app")
	// No Lookup expectation: a forced build must not consult the store.
	f.store.EXPECT().Stage(gomock.Any()).Return("/staging/app", nil)
	f.driver.EXPECT().Compile(gomock.Any(), gomock.Any()).
		Return(&ports.CompileResult{ArtifactPath: "/staging/app/out"}, nil)
	f.store.EXPECT().Commit(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&domain.ArtifactEntry{Path: "/store/app"}, nil)
	f.store.EXPECT().Materialize(gomock.Any(), gomock.Any()).Return(nil)

	opts := defaultOptions(t)
	opts.Force = true
	report, err := f.sched.Run(context.Background(), g, opts)
	require.NoError(t, err)
	assert.Equal(t, domain.UnitStatusCompiled, report.Results[0].Status)
}

func TestScheduler_DependencyBeforeDependent(t *testing.T) {
	f := newFixture(t)
	g := domain.NewDependencyGraph()
	lib := addUnit(t, g, "lib", domain.KindLib)
	app := addUnit(t, g, "app", domain.KindBin, lib)
	g.SetRoot(app)

	f.expectHash("/ws/lib")
	f.expectHash("/ws/app")

	var order []string
	compile := func(unit string) {
		f.store.EXPECT().Lookup(gomock.Any()).Return(nil, nil)
		f.store.EXPECT().Stage(gomock.Any()).Return("/staging/"+unit, nil)
		f.driver.EXPECT().Compile(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req ports.CompileRequest) (*ports.CompileResult, error) {
				order = append(order, req.Unit.Name.String())
				return &ports.CompileResult{ArtifactPath: "/out"}, nil
			})
		f.store.EXPECT().Commit(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&domain.ArtifactEntry{Path: "/store/" + unit}, nil)
		f.store.EXPECT().Materialize(gomock.Any(), gomock.Any()).Return(nil)
	}
	compile("lib")
	compile("app")

	report, err := f.sched.Run(context.Background(), g, defaultOptions(t))
	require.NoError(t, err)
	require.Equal(t, []string{"lib", "app"}, order)
	assert.False(t, report.Failed())
}

func TestScheduler_FailureSkipsDependents(t *testing.T) {
	f := newFixture(t)
	g := domain.NewDependencyGraph()
	base := addUnit(t, g, "base", domain.KindLib)
	other := addUnit(t, g, "other", domain.KindLib)
	app := addUnit(t, g, "app", domain.KindBin, base, other)
	g.SetRoot(app)

	f.expectHash("/ws/base")
	f.expectHash("/ws/other")
	f.expectHash("/ws/app")

	// base fails to compile.
	f.store.EXPECT().Lookup(gomock.Any()).Return(nil, nil).Times(2)
	f.store.EXPECT().Stage(gomock.Any()).Return("/staging", nil).Times(2)
	f.driver.EXPECT().Compile(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req ports.CompileRequest) (*ports.CompileResult, error) {
			if req.Unit.Name.String() == "base" {
				return nil, domain.ErrCompilationFailed
			}
			return &ports.CompileResult{ArtifactPath: "/out"}, nil
		}).Times(2)
	// Only the surviving sibling commits.
	f.store.EXPECT().Commit(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&domain.ArtifactEntry{Path: "/store/other"}, nil)
	f.store.EXPECT().Materialize(gomock.Any(), gomock.Any()).Return(nil)

	report, err := f.sched.Run(context.Background(), g, defaultOptions(t))
	require.NoError(t, err)
	assert.True(t, report.Failed())

	assert.Equal(t, domain.UnitStatusFailed, report.Result("base").Status)
	assert.Equal(t, domain.UnitStatusCompiled, report.Result("other").Status)
	assert.Equal(t, domain.UnitStatusSkipped, report.Result("app").Status)
}

func TestScheduler_DependencyKeyFlowsIntoDependent(t *testing.T) {
	// Rebuilding a dependency with different sources must change the
	// dependent's cache key.
	f := newFixture(t)
	g := domain.NewDependencyGraph()
	lib := addUnit(t, g, "lib", domain.KindLib)
	app := addUnit(t, g, "app", domain.KindBin, lib)
	g.SetRoot(app)

	f.expectHash("/ws/lib")
	f.expectHash("/ws/app")

	var keys []domain.CacheKey
	f.store.EXPECT().Lookup(gomock.Any()).
		DoAndReturn(func(key domain.CacheKey) (*domain.ArtifactEntry, error) {
			keys = append(keys, key)
			return nil, nil
		}).Times(2)
	f.store.EXPECT().Stage(gomock.Any()).Return("/staging", nil).Times(2)
	f.driver.EXPECT().Compile(gomock.Any(), gomock.Any()).
		Return(&ports.CompileResult{ArtifactPath: "/out"}, nil).Times(2)
	f.store.EXPECT().Commit(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&domain.ArtifactEntry{Path: "/store"}, nil).Times(2)
	f.store.EXPECT().Materialize(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	_, err := f.sched.Run(context.Background(), g, defaultOptions(t))
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.NotEqual(t, keys[0], keys[1])
}
