// Package graph builds the build unit dependency graph from manifests on disk.
package graph

import (
	"path/filepath"
	"strings"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

// maxParentTraversal bounds how many ".." segments a declared path dependency
// may climb. Deeper escapes almost always point outside the checkout.
const maxParentTraversal = 3

// Builder walks path dependencies transitively and assembles the graph.
type Builder struct {
	loader ports.ManifestLoader
	hasher ports.TreeHasher
}

// NewBuilder creates a new Builder.
func NewBuilder(loader ports.ManifestLoader, hasher ports.TreeHasher) *Builder {
	return &Builder{
		loader: loader,
		hasher: hasher,
	}
}

// Build loads the manifest at rootDir and follows path dependencies until the
// whole graph is known. Projects reached through different declared paths are
// deduplicated by canonical root, so diamonds collapse into a single unit.
// Test sources only ever count toward the invocation root.
func (b *Builder) Build(rootDir string, includeTests bool) (*domain.DependencyGraph, error) {
	canonical, err := canonicalize(rootDir)
	if err != nil {
		return nil, err
	}

	g := domain.NewDependencyGraph()
	w := &walk{builder: b, graph: g, onStack: make(map[string]bool)}

	rootIdx, err := w.visit(canonical, nil, includeTests)
	if err != nil {
		return nil, err
	}
	g.SetRoot(rootIdx)
	return g, nil
}

type walk struct {
	builder *Builder
	graph   *domain.DependencyGraph

	// onStack tracks canonical roots on the traversal stack, and chain keeps
	// their order for the cycle error message.
	onStack map[string]bool
	chain   []string
}

func (w *walk) visit(root string, parent *domain.Manifest, includeTests bool) (int, error) {
	if w.onStack[root] {
		cycle := append(append([]string{}, w.chain...), root)
		return 0, domain.WithDetail(domain.ErrCycleDetected, "chain", strings.Join(cycle, " -> "))
	}
	if idx, ok := w.graph.Lookup(root); ok {
		return idx, nil
	}

	manifest, err := w.builder.loader.Load(root)
	if err != nil {
		return 0, err
	}

	if parent != nil {
		if manifest.Package.Kind != domain.KindLib {
			dErr := domain.WithDetail(domain.ErrDependencyNotLib, "dependency", manifest.Package.Name)
			return 0, zerr.With(dErr, "kind", string(manifest.Package.Kind))
		}
		if manifest.Toolchain.Kotlin != parent.Toolchain.Kotlin {
			dErr := domain.WithDetail(domain.ErrToolchainMismatch, "dependency", manifest.Package.Name)
			dErr = zerr.With(dErr, "pinned", parent.Toolchain.Kotlin)
			return 0, zerr.With(dErr, "found", manifest.Toolchain.Kotlin)
		}
	}

	sourceHash, _, err := w.builder.hasher.HashTree(root, includeTests)
	if err != nil {
		return 0, zerr.With(err, "unit", manifest.Package.Name)
	}

	w.onStack[root] = true
	w.chain = append(w.chain, root)
	defer func() {
		delete(w.onStack, root)
		w.chain = w.chain[:len(w.chain)-1]
	}()

	var deps []int
	for _, name := range manifest.SortedDependencyNames() {
		spec := manifest.Dependencies[name]
		if !spec.IsPath() {
			continue
		}

		depRoot, err := resolveDepPath(root, name, spec.Path)
		if err != nil {
			return 0, err
		}

		depIdx, err := w.visit(depRoot, manifest, false)
		if err != nil {
			return 0, err
		}
		deps = append(deps, depIdx)
	}

	unit := &domain.BuildUnit{
		Name:       domain.NewInternedString(manifest.Package.Name),
		Root:       root,
		Manifest:   manifest,
		Deps:       deps,
		SourceHash: sourceHash,
	}
	return w.graph.AddUnit(unit)
}

// resolveDepPath validates and canonicalizes a declared path dependency.
// Absolute paths are rejected outright, and relative paths may climb at most
// maxParentTraversal levels above the declaring project.
func resolveDepPath(unitRoot, depName, declared string) (string, error) {
	if filepath.IsAbs(declared) {
		pErr := domain.WithDetail(domain.ErrPathEscape, "dependency", depName)
		return "", zerr.With(pErr, "path", declared)
	}

	climbs := 0
	for _, seg := range strings.Split(filepath.ToSlash(filepath.Clean(declared)), "/") {
		if seg == ".." {
			climbs++
		}
	}
	if climbs > maxParentTraversal {
		pErr := domain.WithDetail(domain.ErrPathEscape, "dependency", depName)
		pErr = zerr.With(pErr, "path", declared)
		return "", zerr.With(pErr, "max_parent_traversal", maxParentTraversal)
	}

	resolved, err := canonicalize(filepath.Join(unitRoot, declared))
	if err != nil {
		pErr := domain.WithDetail(domain.ErrDependencyNotFound, "dependency", depName)
		return "", zerr.With(pErr, "path", declared)
	}
	return resolved, nil
}

func canonicalize(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to resolve path"), "path", dir)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to resolve path"), "path", abs)
	}
	return resolved, nil
}
