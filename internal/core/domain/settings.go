package domain

import (
	"slices"
	"time"

	"go.trai.ch/zerr"
)

// Settings is the resolved runtime configuration.
type Settings struct {
	Cache      CacheSettings
	Solver     SolverSettings
	Precession PrecessionSettings
	Fetch      FetchSettings
	Log        LogSettings
	Datasets   []DatasetSpec
	Bodies     []BodySpec
}

// CacheSettings configures the record store.
type CacheSettings struct {
	Dir     string
	Backups int
	MaxAge  time.Duration
}

// SolverSettings configures the Kepler solver.
type SolverSettings struct {
	Tolerance     float64
	MaxIterations int
}

// PrecessionSettings configures the validity limits of the precession model.
type PrecessionSettings struct {
	MaxPerOrbitDeg float64
	MinPeriapsisRs float64
	Strict         bool
}

// FetchSettings configures retries and concurrency of dataset fetches.
type FetchSettings struct {
	Attempts        int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration
	Timeout         time.Duration
	Concurrency     int
}

// LogSettings configures the logger.
type LogSettings struct {
	Level string
	JSON  bool
}

// BodySpec is a user-defined catalog body.
type BodySpec struct {
	Params      ElementParams
	Central     string
	Description string
}

// DefaultSettings returns the settings used when no config file exists.
func DefaultSettings() Settings {
	return Settings{
		Cache: CacheSettings{
			Dir:     DefaultCachePath(),
			Backups: 3,
			MaxAge:  30 * 24 * time.Hour,
		},
		Solver: SolverSettings{
			Tolerance:     1e-10,
			MaxIterations: 50,
		},
		Precession: PrecessionSettings{
			MaxPerOrbitDeg: 5,
			MinPeriapsisRs: 10,
		},
		Fetch: FetchSettings{
			Attempts:        4,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     10 * time.Second,
			MaxElapsed:      time.Minute,
			Timeout:         30 * time.Second,
			Concurrency:     4,
		},
		Log: LogSettings{
			Level: "info",
		},
		Datasets: DefaultDatasets(),
	}
}

// DefaultDatasets returns the built-in climate datasets.
func DefaultDatasets() []DatasetSpec {
	return []DatasetSpec{
		{
			Name:        "co2-mauna-loa",
			Attribution: "NOAA Global Monitoring Laboratory, Mauna Loa monthly mean CO2",
			MaxAge:      7 * 24 * time.Hour,
			Sources: []SourceSpec{
				{
					Name:     "noaa-gml",
					Kind:     SourceKindHTTP,
					Location: "https://gml.noaa.gov/webdata/ccgg/trends/co2/co2_mm_mlo.csv",
					Format:   FormatCSV,
					CSV: CSVLayout{
						TimeColumn:  2,
						ValueColumn: 3,
						TimeFormat:  TimeDecimalYear,
						Comment:     "#",
						Header:      true,
						Missing:     []string{"-99.99"},
						FieldColumns: map[string]int{
							"deseasonalized": 4,
						},
					},
				},
				{
					Name:     "scripps-mirror",
					Kind:     SourceKindHTTP,
					Location: "https://scrippsco2.ucsd.edu/assets/data/atmospheric/stations/in_situ_co2/monthly/monthly_in_situ_co2_mlo.csv",
					Format:   FormatCSV,
					CSV: CSVLayout{
						TimeColumn:  3,
						ValueColumn: 4,
						TimeFormat:  TimeDecimalYear,
						Comment:     "\"",
						SkipRows:    3,
						Missing:     []string{"-99.99"},
					},
				},
			},
		},
		{
			Name:        "gistemp",
			Attribution: "NASA GISS Surface Temperature Analysis (GISTEMP v4), global annual mean",
			MaxAge:      30 * 24 * time.Hour,
			Sources: []SourceSpec{
				{
					Name:     "nasa-giss",
					Kind:     SourceKindHTTP,
					Location: "https://data.giss.nasa.gov/gistemp/tabledata_v4/GLB.Ts+dSST.csv",
					Format:   FormatCSV,
					CSV: CSVLayout{
						TimeColumn:  0,
						ValueColumn: 13,
						TimeFormat:  TimeYear,
						SkipRows:    1,
						Header:      true,
						Missing:     []string{"***"},
					},
				},
			},
		},
	}
}

// Dataset returns the dataset with the given name.
func (s Settings) Dataset(name string) (DatasetSpec, error) {
	i := slices.IndexFunc(s.Datasets, func(d DatasetSpec) bool { return d.Name == name })
	if i < 0 {
		return DatasetSpec{}, zerr.With(zerr.Wrap(ErrUnknownDataset, "no sources configured for dataset"), "dataset", name)
	}
	return s.Datasets[i], nil
}

// DatasetNames returns the configured dataset names in declaration order.
func (s Settings) DatasetNames() []string {
	names := make([]string, 0, len(s.Datasets))
	for _, d := range s.Datasets {
		names = append(names, d.Name)
	}
	return names
}

// Validate checks value ranges.
func (s Settings) Validate() error {
	invalid := func(field string, value any) error {
		return zerr.With(zerr.Wrap(ErrInvalidConfig, "value out of range"), field, value)
	}
	switch {
	case s.Cache.Dir == "":
		return invalid("cache.dir", s.Cache.Dir)
	case s.Cache.Backups < 1:
		return invalid("cache.backups", s.Cache.Backups)
	case s.Solver.Tolerance <= 0:
		return invalid("solver.tolerance", s.Solver.Tolerance)
	case s.Solver.MaxIterations < 1:
		return invalid("solver.max_iterations", s.Solver.MaxIterations)
	case s.Precession.MaxPerOrbitDeg <= 0:
		return invalid("precession.max_per_orbit_deg", s.Precession.MaxPerOrbitDeg)
	case s.Precession.MinPeriapsisRs < 0:
		return invalid("precession.min_periapsis_rs", s.Precession.MinPeriapsisRs)
	case s.Fetch.Attempts < 1:
		return invalid("fetch.attempts", s.Fetch.Attempts)
	case s.Fetch.Concurrency < 1:
		return invalid("fetch.concurrency", s.Fetch.Concurrency)
	}

	seen := make(map[string]bool, len(s.Datasets))
	for _, d := range s.Datasets {
		if err := (CacheKey{Dataset: d.Name}).Validate(); err != nil {
			return err
		}
		if seen[d.Name] {
			return invalid("datasets", d.Name+" is declared twice")
		}
		seen[d.Name] = true
		if len(d.Sources) == 0 {
			return zerr.With(zerr.Wrap(ErrNoSources, "dataset has an empty source list"), "dataset", d.Name)
		}
		for _, src := range d.Sources {
			if src.Name == "" || src.Location == "" {
				return invalid("datasets."+d.Name+".sources", "name and location are required")
			}
			if src.Kind != SourceKindHTTP && src.Kind != SourceKindFile {
				return invalid("datasets."+d.Name+".sources."+src.Name+".kind", src.Kind)
			}
			if src.Format != FormatCSV && src.Format != FormatJSON {
				return invalid("datasets."+d.Name+".sources."+src.Name+".format", src.Format)
			}
		}
	}
	return nil
}
