package ports

import "go.trai.ch/orrery/internal/core/domain"

// ConfigLoader defines the interface for loading settings.
//
//go:generate mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load reads the config file at path, or falls back to defaults when
	// path is empty and no file exists in the working directory. Environment
	// overrides are applied last.
	Load(path string) (domain.Settings, error)
}
