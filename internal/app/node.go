package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/orrery/internal/adapters/cas"       //nolint:depguard // Wired in app layer
	"go.trai.ch/orrery/internal/adapters/config"    //nolint:depguard // Wired in app layer
	"go.trai.ch/orrery/internal/adapters/logger"    //nolint:depguard // Wired in app layer
	"go.trai.ch/orrery/internal/adapters/source"    //nolint:depguard // Wired in app layer
	"go.trai.ch/orrery/internal/adapters/telemetry" //nolint:depguard // Wired in app layer
	"go.trai.ch/orrery/internal/adapters/watcher"   //nolint:depguard // Wired in app layer
	"go.trai.ch/orrery/internal/core/ports"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

// Components holds what the entry point needs: the app and a logger for
// reporting failures.
type Components struct {
	App    *App
	Logger ports.Logger
}

func init() {
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			logger.NodeID,
			cas.NodeID,
			source.NodeID,
			watcher.NodeID,
			telemetry.NodeID,
		},
		Run: runAppNode,
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Components, error) {
			a, err := graft.Dep[*App](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return &Components{App: a, Logger: log}, nil
		},
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	loader, err := graft.Dep[ports.ConfigLoader](ctx)
	if err != nil {
		return nil, err
	}
	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}
	opener, err := graft.Dep[ports.StoreOpener](ctx)
	if err != nil {
		return nil, err
	}
	sources, err := graft.Dep[ports.SourceFactory](ctx)
	if err != nil {
		return nil, err
	}
	w, err := graft.Dep[ports.Watcher](ctx)
	if err != nil {
		return nil, err
	}
	tracer, err := graft.Dep[ports.Tracer](ctx)
	if err != nil {
		return nil, err
	}
	return New(loader, log, opener, sources, w, tracer), nil
}
