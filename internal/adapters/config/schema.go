package config

import (
	"time"

	"go.trai.ch/orrery/internal/core/domain"
)

// File represents the structure of the orrery.yaml configuration file.
// Every section is optional; omitted values keep their defaults.
type File struct {
	Cache      *CacheDTO      `yaml:"cache"`
	Solver     *SolverDTO     `yaml:"solver"`
	Precession *PrecessionDTO `yaml:"precession"`
	Fetch      *FetchDTO      `yaml:"fetch"`
	Log        *LogDTO        `yaml:"log"`
	Datasets   []DatasetDTO   `yaml:"datasets"`
	Bodies     []BodyDTO      `yaml:"bodies"`
}

// CacheDTO configures the record store.
type CacheDTO struct {
	Dir     *string        `yaml:"dir"`
	Backups *int           `yaml:"backups"`
	MaxAge  *time.Duration `yaml:"max_age"`
}

// SolverDTO configures the Kepler solver.
type SolverDTO struct {
	Tolerance     *float64 `yaml:"tolerance"`
	MaxIterations *int     `yaml:"max_iterations"`
}

// PrecessionDTO configures the precession validity limits.
type PrecessionDTO struct {
	MaxPerOrbitDeg *float64 `yaml:"max_per_orbit_deg"`
	MinPeriapsisRs *float64 `yaml:"min_periapsis_rs"`
	Strict         *bool    `yaml:"strict"`
}

// FetchDTO configures retries and concurrency.
type FetchDTO struct {
	Attempts        *int           `yaml:"attempts"`
	InitialInterval *time.Duration `yaml:"initial_interval"`
	MaxInterval     *time.Duration `yaml:"max_interval"`
	MaxElapsed      *time.Duration `yaml:"max_elapsed"`
	Timeout         *time.Duration `yaml:"timeout"`
	Concurrency     *int           `yaml:"concurrency"`
}

// LogDTO configures the logger.
type LogDTO struct {
	Level *string `yaml:"level"`
	JSON  *bool   `yaml:"json"`
}

// DatasetDTO declares a dataset. A dataset with the name of a built-in one
// replaces it.
type DatasetDTO struct {
	Name        string         `yaml:"name"`
	Attribution string         `yaml:"attribution"`
	MaxAge      *time.Duration `yaml:"max_age"`
	Sources     []SourceDTO    `yaml:"sources"`
}

// SourceDTO is one entry of a dataset's fallback list.
type SourceDTO struct {
	Name     string           `yaml:"name"`
	Kind     string           `yaml:"kind"`
	Location string           `yaml:"location"`
	Format   string           `yaml:"format"`
	CSV      domain.CSVLayout `yaml:"csv"`
}

// BodyDTO declares an extra catalog body.
type BodyDTO struct {
	domain.ElementParams `yaml:",inline"`

	Central     string `yaml:"central"`
	Description string `yaml:"description"`
}
