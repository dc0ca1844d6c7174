package resolver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"go.trai.ch/kiln/internal/adapters/maven" //nolint:depguard // Coordinate handling shared with the fetch path
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

// DefaultCacheRoot returns the Maven artifact cache under the user home,
// ~/.kiln/cache/maven.
func DefaultCacheRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", zerr.Wrap(err, "resolving home directory")
	}
	return filepath.Join(home, ".kiln", "cache", "maven"), nil
}

// Resolver updates the lockfile and fetches locked external artifacts.
type Resolver struct {
	loader    ports.ManifestLoader
	lockStore ports.LockfileStore
	fetcher   ports.Fetcher
	logger    ports.Logger
	index     *Index
	cacheRoot string
}

// NewResolver creates a Resolver fetching into cacheRoot.
func NewResolver(
	loader ports.ManifestLoader,
	lockStore ports.LockfileStore,
	fetcher ports.Fetcher,
	logger ports.Logger,
	index *Index,
	cacheRoot string,
) *Resolver {
	return &Resolver{
		loader:    loader,
		lockStore: lockStore,
		fetcher:   fetcher,
		logger:    logger,
		index:     index,
		cacheRoot: cacheRoot,
	}
}

// UpdateResult summarizes an Update run. Entries reused from the existing
// lockfile do not count; a fully up-to-date project reports zeroes.
type UpdateResult struct {
	// ResolvedDependencies is the number of external dependencies freshly resolved.
	ResolvedDependencies int
	// ResolvedPlugins is the number of plugin artifacts freshly fetched.
	ResolvedPlugins int
}

// Update resolves every external dependency and plugin of the project in
// rootDir and rewrites the lockfile.
//
// Update is idempotent: entries already locked at the declared version keep
// their recorded hashes and no network traffic happens for them. Entries for
// dependencies no longer declared are pruned. Path dependency entries are
// preserved untouched, as they are maintained by the build itself.
func (r *Resolver) Update(ctx context.Context, rootDir string) (*UpdateResult, error) {
	manifest, err := r.loader.Load(rootDir)
	if err != nil {
		return nil, err
	}
	lock, err := r.lockStore.Read(rootDir)
	if err != nil {
		return nil, err
	}

	result := &UpdateResult{}

	var depLocks []domain.DependencyLock
	for _, name := range manifest.SortedDependencyNames() {
		spec := manifest.Dependencies[name]
		if !spec.IsExternal() {
			continue
		}

		entry, updated, err := r.resolveExternalDep(ctx, lock, name, spec.Version)
		if err != nil {
			return nil, err
		}
		if updated {
			result.ResolvedDependencies++
		}
		depLocks = append(depLocks, *entry)
	}

	// Keep path entries; replace every maven entry with the fresh resolution.
	var merged []domain.DependencyLock
	for _, d := range lock.Dependencies {
		if d.SourceType == domain.SourcePath {
			merged = append(merged, d)
		}
	}
	merged = append(merged, depLocks...)
	lock.Dependencies = merged

	pluginLocks, resolved, err := r.resolvePlugins(ctx, manifest, lock)
	if err != nil {
		return nil, err
	}
	lock.Plugins = pluginLocks
	result.ResolvedPlugins = resolved

	if lock.Toolchain == nil {
		lock.Toolchain = &domain.ToolchainLock{KonancVersion: manifest.Toolchain.Kotlin}
	} else {
		lock.Toolchain.KonancVersion = manifest.Toolchain.Kotlin
	}
	lock.Toolchain.DetektVersion = manifest.Toolchain.Detekt

	if err := r.lockStore.Write(rootDir, lock); err != nil {
		return nil, err
	}
	return result, nil
}

// resolveExternalDep produces the lock entry for one versioned dependency.
// The second return reports whether the entry was freshly resolved; an
// existing entry at the locked version is reused without network traffic.
func (r *Resolver) resolveExternalDep(
	ctx context.Context,
	lock *domain.Lockfile,
	name, version string,
) (*domain.DependencyLock, bool, error) {
	descriptor, err := r.index.Library(name)
	if err != nil {
		return nil, false, err
	}

	if existing := lock.FindDependency(name); existing != nil &&
		existing.SourceType == domain.SourceMaven && existing.Version == version {
		r.logger.Info("dependency " + name + " already up to date")
		entry := *existing
		return &entry, false, nil
	}

	r.logger.Info("resolving " + name + " " + version)

	// Hash the klib for every supported target so a lockfile written on one
	// platform verifies builds on all of them.
	targets := domain.KnownTargets()
	hashes := make(map[string]string, len(targets))
	var mu sync.Mutex

	tmpDir, err := os.MkdirTemp("", "kiln-update-")
	if err != nil {
		return nil, false, zerr.Wrap(err, "creating temp dir for dependency resolution")
	}
	defer os.RemoveAll(tmpDir) //nolint:errcheck // Best effort cleanup

	eg, egCtx := errgroup.WithContext(ctx)
	for _, targetName := range targets {
		eg.Go(func() error {
			target, err := domain.ParseTarget(targetName)
			if err != nil {
				return err
			}
			coord, err := maven.ExpandTemplate(descriptor.Maven, version, target)
			if err != nil {
				return err
			}
			// Fetch into a per-target name so parallel downloads never collide.
			dest := filepath.Join(tmpDir, targetName+"-"+coord.Filename())
			sha, err := r.fetcher.Fetch(egCtx, coord.URL(maven.Central), dest)
			if err != nil {
				return zerr.With(err, "dependency", name)
			}
			mu.Lock()
			hashes[targetName] = sha
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, false, err
	}

	return &domain.DependencyLock{
		Name:       name,
		SourceType: domain.SourceMaven,
		Version:    version,
		// Keep the {target} placeholder so one entry covers all targets.
		MavenCoordinate: strings.ReplaceAll(descriptor.Maven, "{version}", version),
		Targets:         hashes,
		SourceHash:      domain.DigestFields(hashes),
	}, true, nil
}

// resolvePlugins resolves every declared plugin into locked artifacts,
// reusing entries already locked at the declared version. The int return is
// the number of artifacts actually fetched.
func (r *Resolver) resolvePlugins(
	ctx context.Context,
	manifest *domain.Manifest,
	lock *domain.Lockfile,
) ([]domain.PluginLock, int, error) {
	if len(manifest.Plugins) == 0 {
		return nil, 0, nil
	}

	// Plugin JARs are target-independent; runtime klibs are hashed per target
	// during fetch. Resolution here records the host-independent entries, so
	// any target works for coordinate expansion of the compiler plugin. The
	// runtime klib URL does vary by target, which is why each artifact is
	// re-verified at fetch time against the locked hash of the fetched bytes.
	target, err := domain.ParseTarget(domain.KnownTargets()[0])
	if err != nil {
		return nil, 0, err
	}

	artifacts, err := r.index.resolvePluginArtifacts(manifest, target, r.cacheRoot)
	if err != nil {
		return nil, 0, err
	}

	var locks []domain.PluginLock
	fetched := 0
	for _, artifact := range artifacts {
		spec := manifest.Plugins[artifact.PluginName]

		if existing := findPluginLock(lock, artifact.PluginName, artifact.ArtifactName); existing != nil &&
			existing.Version == spec.Version {
			r.logger.Info("plugin " + artifact.PluginName + ":" + artifact.ArtifactName + " already up to date")
			locks = append(locks, *existing)
			continue
		}

		r.logger.Info("resolving plugin " + artifact.PluginName + ":" + artifact.ArtifactName)
		sha, err := r.fetcher.Fetch(ctx, artifact.URL, artifact.CachePath)
		if err != nil {
			return nil, 0, zerr.With(err, "plugin", artifact.PluginName)
		}
		locks = append(locks, domain.PluginLock{
			Name:     artifact.PluginName,
			Artifact: artifact.ArtifactName,
			Kind:     artifact.Kind,
			Version:  spec.Version,
			SHA256:   sha,
			URL:      artifact.URL,
		})
		fetched++
	}

	return locks, fetched, nil
}

func findPluginLock(lock *domain.Lockfile, plugin, artifact string) *domain.PluginLock {
	for i := range lock.Plugins {
		if lock.Plugins[i].Name == plugin && lock.Plugins[i].Artifact == artifact {
			return &lock.Plugins[i]
		}
	}
	return nil
}

// EnsureLocked verifies the lockfile fully covers the manifest before any
// network or compiler work starts. It is the early staleness check for locked
// builds: a missing toolchain section, a version drift, or an unlocked
// dependency or plugin all mean the user must run update first.
func (r *Resolver) EnsureLocked(manifest *domain.Manifest, lock *domain.Lockfile) error {
	if lock.Toolchain == nil {
		return domain.WithDetail(domain.ErrLockedModeViolation, "missing", "toolchain")
	}
	if lock.Toolchain.KonancVersion != manifest.Toolchain.Kotlin {
		err := domain.WithDetail(domain.ErrLockedModeViolation, "locked_kotlin", lock.Toolchain.KonancVersion)
		return zerr.With(err, "manifest_kotlin", manifest.Toolchain.Kotlin)
	}
	if manifest.Toolchain.Detekt != "" && lock.Toolchain.DetektVersion != manifest.Toolchain.Detekt {
		return domain.WithDetail(domain.ErrLockedModeViolation, "missing", "detekt")
	}

	for _, name := range manifest.SortedDependencyNames() {
		spec := manifest.Dependencies[name]
		if !spec.IsExternal() {
			continue
		}
		entry := lock.FindDependency(name)
		if entry == nil || entry.SourceType != domain.SourceMaven || entry.Version != spec.Version {
			return domain.WithDetail(domain.ErrLockedModeViolation, "dependency", name)
		}
		for _, target := range domain.KnownTargets() {
			if entry.Targets[target] == "" {
				err := domain.WithDetail(domain.ErrLockedModeViolation, "dependency", name)
				return zerr.With(err, "target", target)
			}
		}
	}

	for _, name := range manifest.SortedPluginNames() {
		if !lock.HasPlugin(name, manifest.Plugins[name].Version) {
			return domain.WithDetail(domain.ErrLockedModeViolation, "plugin", name)
		}
	}

	return nil
}

// VerifyPathSources compares locked source hashes of path dependencies
// against the current tree hashes in the graph. In locked mode a drift is a
// hard error; otherwise it is only logged, since the build will re-lock.
func (r *Resolver) VerifyPathSources(g *domain.DependencyGraph, lock *domain.Lockfile, locked bool) error {
	for i := 0; i < g.Len(); i++ {
		if i == g.Root() {
			continue
		}
		unit := g.Unit(i)
		entry := lock.FindDependency(unit.Name.String())
		if entry == nil || entry.SourceType != domain.SourcePath {
			continue
		}
		if entry.SourceHash != "" && unit.SourceHash != "" && entry.SourceHash != unit.SourceHash {
			if locked {
				err := domain.WithDetail(domain.ErrSourceHashMismatch, "dependency", unit.Name.String())
				err = zerr.With(err, "locked", entry.SourceHash)
				return zerr.With(err, "current", unit.SourceHash)
			}
			r.logger.Warn("dependency " + unit.Name.String() + " sources changed since last lock")
		}
	}
	return nil
}

// PathLocks derives lockfile entries for every path dependency in the graph.
// Paths are recorded relative to the root project so the lockfile stays
// portable across machines.
func PathLocks(g *domain.DependencyGraph) []domain.DependencyLock {
	rootDir := g.Unit(g.Root()).Root
	var locks []domain.DependencyLock
	for i := 0; i < g.Len(); i++ {
		if i == g.Root() {
			continue
		}
		unit := g.Unit(i)
		rel, err := filepath.Rel(rootDir, unit.Root)
		if err != nil {
			rel = unit.Root
		}
		locks = append(locks, domain.DependencyLock{
			Name:       unit.Name.String(),
			SourceType: domain.SourcePath,
			Path:       filepath.ToSlash(rel),
			SourceHash: unit.SourceHash,
		})
	}
	sort.Slice(locks, func(i, j int) bool { return locks[i].Name < locks[j].Name })
	return locks
}

// ExternalArtifacts is everything FetchExternal materialized for a build:
// klib paths for -library and plugin JAR paths for -Xplugin.
type ExternalArtifacts struct {
	Libraries  []string
	PluginJars []string
}

// FetchExternal ensures every locked external dependency and plugin artifact
// for the given target is present in the local cache and matches its locked
// hash. In locked mode a missing lock entry aborts before any download.
func (r *Resolver) FetchExternal(
	ctx context.Context,
	manifest *domain.Manifest,
	lock *domain.Lockfile,
	target domain.Target,
	locked bool,
) (*ExternalArtifacts, error) {
	out := &ExternalArtifacts{}

	for _, name := range manifest.SortedDependencyNames() {
		spec := manifest.Dependencies[name]
		if !spec.IsExternal() {
			continue
		}
		entry := lock.FindDependency(name)
		if entry == nil || entry.SourceType != domain.SourceMaven || entry.Version != spec.Version {
			return nil, domain.WithDetail(domain.ErrLockedModeViolation, "dependency", name)
		}
		expected := entry.Targets[target.String()]
		if locked && expected == "" {
			err := domain.WithDetail(domain.ErrLockedModeViolation, "dependency", name)
			return nil, zerr.With(err, "target", target.String())
		}

		path, err := r.ensureArtifact(ctx, entry.MavenCoordinate, entry.Version, target, expected, name)
		if err != nil {
			return nil, err
		}
		out.Libraries = append(out.Libraries, path)
	}

	if len(manifest.Plugins) > 0 {
		artifacts, err := r.index.resolvePluginArtifacts(manifest, target, r.cacheRoot)
		if err != nil {
			return nil, err
		}
		for _, artifact := range artifacts {
			entry := findPluginLock(lock, artifact.PluginName, artifact.ArtifactName)
			if entry == nil {
				if locked {
					err := domain.WithDetail(domain.ErrLockedModeViolation, "plugin", artifact.PluginName)
					return nil, zerr.With(err, "artifact", artifact.ArtifactName)
				}
			}
			// Runtime klib bytes differ per target, so the locked hash only
			// applies when the locked URL matches the one being fetched.
			var expected string
			if entry != nil && entry.URL == artifact.URL {
				expected = entry.SHA256
			}

			path, err := r.ensureFile(ctx, artifact.URL, artifact.CachePath, expected, artifact.PluginName)
			if err != nil {
				return nil, err
			}
			switch artifact.Kind {
			case domain.PluginArtifactCompiler:
				out.PluginJars = append(out.PluginJars, path)
			default:
				out.Libraries = append(out.Libraries, path)
			}
		}
	}

	return out, nil
}

// ensureArtifact expands a locked coordinate template for the target and
// makes sure the klib is cached and verified.
func (r *Resolver) ensureArtifact(
	ctx context.Context,
	coordTemplate, version string,
	target domain.Target,
	expected, label string,
) (string, error) {
	coord, err := maven.ExpandTemplate(coordTemplate, version, target)
	if err != nil {
		return "", zerr.With(err, "dependency", label)
	}
	return r.ensureFile(ctx, coord.URL(maven.Central), coord.CachePath(r.cacheRoot), expected, label)
}

// ensureFile returns dest once its content is present and matches expected.
// Cached files are re-hashed rather than trusted, so cache corruption is
// caught instead of propagated into a build.
func (r *Resolver) ensureFile(ctx context.Context, url, dest, expected, label string) (string, error) {
	var actual string
	if _, err := os.Stat(dest); err == nil {
		actual, err = sha256File(dest)
		if err != nil {
			return "", err
		}
	} else {
		actual, err = r.fetcher.Fetch(ctx, url, dest)
		if err != nil {
			return "", zerr.With(err, "artifact", label)
		}
	}

	if expected != "" && actual != expected {
		mErr := domain.WithDetail(domain.ErrArtifactHashMismatch, "artifact", label)
		mErr = zerr.With(mErr, "expected", expected)
		return "", zerr.With(mErr, "actual", actual)
	}
	return dest, nil
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // Hashing a cache-controlled path
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, "opening cached artifact"), "path", path)
	}
	defer f.Close() //nolint:errcheck // Read-only file

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", zerr.With(zerr.Wrap(err, "hashing cached artifact"), "path", path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
