package domain_test

import (
	"errors"
	"testing"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/zerr"
)

func unit(name string, deps ...int) *domain.BuildUnit {
	return &domain.BuildUnit{
		Name: domain.NewInternedString(name),
		Root: "/proj/" + name,
		Manifest: &domain.Manifest{
			Package:   domain.Package{Name: name, Kind: domain.KindLib},
			Toolchain: domain.Toolchain{Kotlin: "2.1.0"},
		},
		Deps: deps,
	}
}

func TestGraph_AddUnit_Duplicate(t *testing.T) {
	g := domain.NewDependencyGraph()
	u := unit("app")

	if _, err := g.AddUnit(u); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := g.AddUnit(u)
	if err == nil {
		t.Fatal("expected error when adding duplicate unit, got nil")
	}
	zErr, ok := err.(*zerr.Error)
	if !ok {
		t.Fatalf("expected *zerr.Error, got %T", err)
	}
	meta := zErr.Metadata()
	if root, ok := meta["root"].(string); !ok || root != "/proj/app" {
		t.Errorf("expected metadata root=/proj/app, got %v", meta["root"])
	}
}

func TestGraph_Levels_Diamond(t *testing.T) {
	// app -> {left, right} -> base
	g := domain.NewDependencyGraph()
	base, _ := g.AddUnit(unit("base"))
	left, _ := g.AddUnit(unit("left", base))
	right, _ := g.AddUnit(unit("right", base))
	app, _ := g.AddUnit(unit("app", left, right))
	g.SetRoot(app)

	levels, err := g.Levels()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(levels) != 3 {
		t.Fatalf("expected 3 levels, got %d", len(levels))
	}
	if len(levels[0]) != 1 || levels[0][0] != base {
		t.Errorf("expected level 0 = [base], got %v", levels[0])
	}
	if len(levels[1]) != 2 || levels[1][0] != left || levels[1][1] != right {
		t.Errorf("expected level 1 = [left right] sorted by name, got %v", levels[1])
	}
	if len(levels[2]) != 1 || levels[2][0] != app {
		t.Errorf("expected level 2 = [app], got %v", levels[2])
	}
}

func TestGraph_Levels_OrderIndependent(t *testing.T) {
	// Same shape inserted in two orders must produce identical level names.
	build := func(order []string) [][]string {
		g := domain.NewDependencyGraph()
		idx := make(map[string]int)
		deps := map[string][]string{"base": nil, "mid": {"base"}, "app": {"mid"}}
		for _, name := range order {
			var depIdx []int
			for _, d := range deps[name] {
				depIdx = append(depIdx, idx[d])
			}
			i, err := g.AddUnit(unit(name, depIdx...))
			if err != nil {
				t.Fatalf("add %s: %v", name, err)
			}
			idx[name] = i
		}
		levels, err := g.Levels()
		if err != nil {
			t.Fatalf("levels: %v", err)
		}
		var named [][]string
		for _, level := range levels {
			var names []string
			for _, i := range level {
				names = append(names, g.Unit(i).Name.String())
			}
			named = append(named, names)
		}
		return named
	}

	a := build([]string{"base", "mid", "app"})
	b := build([]string{"app", "mid", "base"})
	if len(a) != len(b) {
		t.Fatalf("level count differs: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			t.Fatalf("level %d size differs", i)
		}
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				t.Errorf("level %d entry %d: %s vs %s", i, j, a[i][j], b[i][j])
			}
		}
	}
}

func TestGraph_Levels_Cycle(t *testing.T) {
	g := domain.NewDependencyGraph()
	a, _ := g.AddUnit(unit("a"))
	b, _ := g.AddUnit(unit("b", a))
	// close the cycle a -> b
	g.Unit(a).Deps = []int{b}

	_, err := g.Levels()
	if err == nil {
		t.Fatal("expected cycle error, got nil")
	}
	if !errors.Is(err, domain.ErrCycleDetected) {
		t.Errorf("expected ErrCycleDetected, got %v", err)
	}
}

func TestGraph_TransitiveDependents(t *testing.T) {
	g := domain.NewDependencyGraph()
	base, _ := g.AddUnit(unit("base"))
	mid, _ := g.AddUnit(unit("mid", base))
	app, _ := g.AddUnit(unit("app", mid))
	other, _ := g.AddUnit(unit("other"))

	deps := g.TransitiveDependents(base)
	if len(deps) != 2 || deps[0] != mid || deps[1] != app {
		t.Errorf("expected dependents of base = [mid app], got %v", deps)
	}
	if got := g.TransitiveDependents(other); len(got) != 0 {
		t.Errorf("expected no dependents for other, got %v", got)
	}
}
