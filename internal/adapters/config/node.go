package config

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/kiln/internal/core/ports"
)

const (
	NodeID         graft.ID = "adapter.config.manifest_loader"
	LockfileNodeID graft.ID = "adapter.config.lockfile_store"
)

func init() {
	graft.Register(graft.Node[ports.ManifestLoader]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(ctx context.Context) (ports.ManifestLoader, error) {
			return NewLoader(), nil
		},
	})

	graft.Register(graft.Node[ports.LockfileStore]{
		ID:        LockfileNodeID,
		Cacheable: true,
		Run: func(ctx context.Context) (ports.LockfileStore, error) {
			return NewLockfileStore(), nil
		},
	})
}
