package domain

import "sort"

// DependencyGraph is an arena of build units indexed by canonical project
// root. Edges are stored as index lists on the units themselves, so the graph
// is cheap to copy around and safe to share once construction finishes.
//
// The builder guarantees acyclicity before handing a graph to the scheduler;
// Levels re-checks it as a belt-and-braces invariant.
type DependencyGraph struct {
	units []*BuildUnit
	index map[string]int
	root  int
}

// NewDependencyGraph returns an empty graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		index: make(map[string]int),
		root:  -1,
	}
}

// AddUnit inserts a unit keyed by its canonical root and returns its index.
func (g *DependencyGraph) AddUnit(u *BuildUnit) (int, error) {
	if _, ok := g.index[u.Root]; ok {
		return 0, WithDetail(ErrUnitAlreadyExists, "root", u.Root)
	}
	idx := len(g.units)
	g.units = append(g.units, u)
	g.index[u.Root] = idx
	return idx, nil
}

// Lookup returns the index of the unit with the given canonical root.
func (g *DependencyGraph) Lookup(root string) (int, bool) {
	idx, ok := g.index[root]
	return idx, ok
}

// Unit returns the unit at the given arena index.
func (g *DependencyGraph) Unit(idx int) *BuildUnit {
	return g.units[idx]
}

// Len returns the number of units in the graph.
func (g *DependencyGraph) Len() int {
	return len(g.units)
}

// SetRoot marks the unit the build was invoked on.
func (g *DependencyGraph) SetRoot(idx int) {
	g.root = idx
}

// Root returns the index of the invocation root unit.
func (g *DependencyGraph) Root() int {
	return g.root
}

// Levels partitions the graph into a topological layering: level 0 holds
// units with no dependencies, and every unit in level N depends only on units
// in levels below N. Within a level, indices are ordered by unit name so the
// layering is a pure function of graph shape.
func (g *DependencyGraph) Levels() ([][]int, error) {
	const (
		white = iota // unvisited
		grey         // on the traversal stack
		black        // finished
	)
	color := make([]int, len(g.units))
	depth := make([]int, len(g.units))

	var visit func(idx int) (int, error)
	visit = func(idx int) (int, error) {
		switch color[idx] {
		case black:
			return depth[idx], nil
		case grey:
			return 0, WithDetail(ErrCycleDetected, "unit", g.units[idx].Name.String())
		}
		color[idx] = grey
		d := 0
		for _, dep := range g.units[idx].Deps {
			dd, err := visit(dep)
			if err != nil {
				return 0, err
			}
			if dd+1 > d {
				d = dd + 1
			}
		}
		color[idx] = black
		depth[idx] = d
		return d, nil
	}

	maxDepth := -1
	for idx := range g.units {
		d, err := visit(idx)
		if err != nil {
			return nil, err
		}
		if d > maxDepth {
			maxDepth = d
		}
	}

	levels := make([][]int, maxDepth+1)
	for idx, d := range depth {
		levels[d] = append(levels[d], idx)
	}
	for _, level := range levels {
		sort.Slice(level, func(i, j int) bool {
			return g.units[level[i]].Name.String() < g.units[level[j]].Name.String()
		})
	}
	return levels, nil
}

// Dependents returns the indices of units that directly depend on idx.
func (g *DependencyGraph) Dependents(idx int) []int {
	var out []int
	for i, u := range g.units {
		for _, dep := range u.Deps {
			if dep == idx {
				out = append(out, i)
				break
			}
		}
	}
	return out
}

// TransitiveDependents returns every unit reachable from idx along reversed
// edges. The scheduler uses this to mark downstream units as skipped when a
// unit fails.
func (g *DependencyGraph) TransitiveDependents(idx int) []int {
	seen := make(map[int]bool)
	queue := []int{idx}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dep := range g.Dependents(cur) {
			if !seen[dep] {
				seen[dep] = true
				queue = append(queue, dep)
			}
		}
	}
	out := make([]int, 0, len(seen))
	for i := range seen {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}
