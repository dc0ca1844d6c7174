package resolver

import "go.trai.ch/kiln/internal/core/domain"

var (
	ResolveModuleSet   = resolveModuleSet
	SubstituteTemplate = substituteTemplate
)

// ResolvePluginArtifacts exposes plugin artifact resolution to tests.
func (ix *Index) ResolvePluginArtifacts(
	manifest *domain.Manifest,
	target domain.Target,
	cacheRoot string,
) ([]PluginArtifact, error) {
	return ix.resolvePluginArtifacts(manifest, target, cacheRoot)
}
