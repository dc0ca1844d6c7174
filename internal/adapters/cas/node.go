package cas

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/kiln/internal/core/ports"
)

const NodeID graft.ID = "adapter.artifact_store"

func init() {
	graft.Register(graft.Node[ports.ArtifactStore]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(ctx context.Context) (ports.ArtifactStore, error) {
			root, err := DefaultRoot()
			if err != nil {
				return nil, err
			}
			return NewStore(root)
		},
	})
}
