package resolver

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/kiln/internal/adapters/config" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/kiln/internal/adapters/logger" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/kiln/internal/adapters/maven"  //nolint:depguard // Wired in engine wiring
	"go.trai.ch/kiln/internal/core/ports"
)

// NodeID is the unique identifier for the resolver Graft node.
const NodeID graft.ID = "engine.resolver"

func init() {
	graft.Register(graft.Node[*Resolver]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			config.LockfileNodeID,
			maven.NodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Resolver, error) {
			loader, err := graft.Dep[ports.ManifestLoader](ctx)
			if err != nil {
				return nil, err
			}

			lockStore, err := graft.Dep[ports.LockfileStore](ctx)
			if err != nil {
				return nil, err
			}

			fetcher, err := graft.Dep[ports.Fetcher](ctx)
			if err != nil {
				return nil, err
			}

			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			index, err := LoadIndex()
			if err != nil {
				return nil, err
			}

			cacheRoot, err := DefaultCacheRoot()
			if err != nil {
				return nil, err
			}

			return NewResolver(loader, lockStore, fetcher, log, index, cacheRoot), nil
		},
	})
}
