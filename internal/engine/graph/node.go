package graph

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/kiln/internal/adapters/config" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/kiln/internal/adapters/fs"     //nolint:depguard // Wired in engine wiring
	"go.trai.ch/kiln/internal/core/ports"
)

// NodeID is the unique identifier for the graph builder Graft node.
const NodeID graft.ID = "engine.graph_builder"

func init() {
	graft.Register(graft.Node[*Builder]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			fs.HasherNodeID,
		},
		Run: func(ctx context.Context) (*Builder, error) {
			loader, err := graft.Dep[ports.ManifestLoader](ctx)
			if err != nil {
				return nil, err
			}
			hasher, err := graft.Dep[ports.TreeHasher](ctx)
			if err != nil {
				return nil, err
			}
			return NewBuilder(loader, hasher), nil
		},
	})
}
