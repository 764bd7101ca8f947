// Package wiring registers all Graft nodes for orrery.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/orrery/internal/adapters/cas"
	_ "go.trai.ch/orrery/internal/adapters/config"
	_ "go.trai.ch/orrery/internal/adapters/logger"
	_ "go.trai.ch/orrery/internal/adapters/source"
	_ "go.trai.ch/orrery/internal/adapters/telemetry"
	_ "go.trai.ch/orrery/internal/adapters/watcher"
	// Register app nodes.
	_ "go.trai.ch/orrery/internal/app"
)
