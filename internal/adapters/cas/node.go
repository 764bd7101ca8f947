package cas

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/orrery/internal/adapters/logger"
	"go.trai.ch/orrery/internal/adapters/telemetry"
	"go.trai.ch/orrery/internal/core/domain"
	"go.trai.ch/orrery/internal/core/ports"
)

// NodeID is the unique identifier for the record store opener Graft node.
const NodeID graft.ID = "adapter.record_store"

// Opener builds stores that share a logger and tracer.
type Opener struct {
	logger ports.Logger
	tracer ports.Tracer
}

// NewOpener returns an Opener.
func NewOpener(log ports.Logger, tracer ports.Tracer) *Opener {
	return &Opener{logger: log, tracer: tracer}
}

// Open returns a store rooted at settings.Dir.
func (o *Opener) Open(settings domain.CacheSettings) (ports.RecordStore, error) {
	return NewStore(settings.Dir,
		WithBackups(settings.Backups),
		WithLogger(o.logger),
		WithTracer(o.tracer),
	)
}

func init() {
	graft.Register(graft.Node[ports.StoreOpener]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID, telemetry.NodeID},
		Run: func(ctx context.Context) (ports.StoreOpener, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			tracer, err := graft.Dep[ports.Tracer](ctx)
			if err != nil {
				return nil, err
			}
			return NewOpener(log, tracer), nil
		},
	})
}
