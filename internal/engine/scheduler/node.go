package scheduler

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/kiln/internal/adapters/cas"                //nolint:depguard // Wired in engine wiring
	"go.trai.ch/kiln/internal/adapters/fs"                 //nolint:depguard // Wired in engine wiring
	"go.trai.ch/kiln/internal/adapters/konanc"             //nolint:depguard // Wired in engine wiring
	"go.trai.ch/kiln/internal/adapters/telemetry/progrock" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/kiln/internal/core/ports"
)

// NodeID is the unique identifier for the scheduler Graft node.
const NodeID graft.ID = "engine.scheduler"

func init() {
	graft.Register(graft.Node[*Scheduler]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			cas.NodeID,
			konanc.NodeID,
			konanc.ToolchainNodeID,
			fs.HasherNodeID,
			progrock.NodeID,
		},
		Run: func(ctx context.Context) (*Scheduler, error) {
			store, err := graft.Dep[ports.ArtifactStore](ctx)
			if err != nil {
				return nil, err
			}

			driver, err := graft.Dep[ports.CompilerDriver](ctx)
			if err != nil {
				return nil, err
			}

			toolchain, err := graft.Dep[ports.ToolchainResolver](ctx)
			if err != nil {
				return nil, err
			}

			hasher, err := graft.Dep[ports.TreeHasher](ctx)
			if err != nil {
				return nil, err
			}

			telemetry, err := graft.Dep[ports.Telemetry](ctx)
			if err != nil {
				return nil, err
			}

			return NewScheduler(store, driver, toolchain, hasher, telemetry), nil
		},
	})
}
