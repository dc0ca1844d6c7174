package konanc

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/kiln/internal/adapters/fs"
	"go.trai.ch/kiln/internal/adapters/logger"
	"go.trai.ch/kiln/internal/core/ports"
)

const (
	NodeID          graft.ID = "adapter.konanc.driver"
	ToolchainNodeID graft.ID = "adapter.konanc.toolchain"
)

func init() {
	graft.Register(graft.Node[ports.ToolchainResolver]{
		ID:        ToolchainNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{fs.HasherNodeID},
		Run: func(ctx context.Context) (ports.ToolchainResolver, error) {
			hasher, err := graft.Dep[ports.TreeHasher](ctx)
			if err != nil {
				return nil, err
			}
			return NewToolchainResolver(hasher), nil
		},
	})

	graft.Register(graft.Node[ports.CompilerDriver]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{ToolchainNodeID, logger.NodeID},
		Run: func(ctx context.Context) (ports.CompilerDriver, error) {
			toolchain, err := graft.Dep[ports.ToolchainResolver](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewDriver(toolchain, log), nil
		},
	})
}
