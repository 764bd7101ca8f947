// Package config provides the configuration loader for orrery.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"go.trai.ch/orrery/internal/core/domain"
	"go.trai.ch/orrery/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "ORRERY_"

// Loader implements ports.ConfigLoader using a YAML file and environment overrides.
type Loader struct {
	Logger  ports.Logger
	environ func() []string
	getwd   func() (string, error)
}

// NewLoader creates a new Loader with the given logger.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger, environ: os.Environ, getwd: os.Getwd}
}

// envOverrides are applied after the file. Fields hold the current values and
// are only replaced when the variable is set.
type envOverrides struct {
	CacheDir      string        `env:"CACHE_DIR"`
	CacheBackups  int           `env:"CACHE_BACKUPS"`
	LogLevel      string        `env:"LOG_LEVEL"`
	LogJSON       bool          `env:"LOG_JSON"`
	FetchTimeout  time.Duration `env:"FETCH_TIMEOUT"`
	FetchAttempts int           `env:"FETCH_ATTEMPTS"`
}

// Load reads the config file at path. An empty path searches the working
// directory and its parents for orrery.yaml and falls back to defaults when
// none exists.
func (l *Loader) Load(path string) (domain.Settings, error) {
	settings := domain.DefaultSettings()

	configPath, err := l.resolvePath(path)
	if err != nil {
		return domain.Settings{}, err
	}

	if configPath != "" {
		var file File
		if err := readAndUnmarshalYAML(configPath, &file); err != nil {
			return domain.Settings{}, zerr.With(err, "path", configPath)
		}
		if err := l.apply(&settings, &file, filepath.Dir(configPath)); err != nil {
			return domain.Settings{}, zerr.With(err, "path", configPath)
		}
	}

	if err := l.applyEnv(&settings); err != nil {
		return domain.Settings{}, err
	}

	if err := settings.Validate(); err != nil {
		return domain.Settings{}, err
	}
	return settings, nil
}

func (l *Loader) resolvePath(path string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", zerr.With(zerr.Wrap(err, domain.ErrConfigReadFailed.Error()), "path", path)
		}
		return path, nil
	}

	cwd, err := l.getwd()
	if err != nil {
		return "", zerr.Wrap(err, domain.ErrConfigReadFailed.Error())
	}
	return findConfiguration(cwd), nil
}

// findConfiguration walks from cwd to the filesystem root looking for orrery.yaml.
func findConfiguration(cwd string) string {
	currentDir := cwd
	for {
		candidate := filepath.Join(currentDir, domain.ConfigFileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return ""
		}
		currentDir = parentDir
	}
}

func readAndUnmarshalYAML[T any](configPath string, target *T) error {
	// #nosec G304 -- configPath is chosen by the user
	data, err := os.ReadFile(configPath)
	if err != nil {
		return zerr.Wrap(err, domain.ErrConfigReadFailed.Error())
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		return zerr.With(zerr.Wrap(domain.ErrConfigParseFailed, "invalid yaml"), "cause", err.Error())
	}
	return nil
}

func (l *Loader) apply(s *domain.Settings, f *File, baseDir string) error {
	if c := f.Cache; c != nil {
		set(&s.Cache.Dir, c.Dir)
		set(&s.Cache.Backups, c.Backups)
		set(&s.Cache.MaxAge, c.MaxAge)
		if c.Dir != nil {
			s.Cache.Dir = resolve(baseDir, s.Cache.Dir)
		}
	}
	if c := f.Solver; c != nil {
		set(&s.Solver.Tolerance, c.Tolerance)
		set(&s.Solver.MaxIterations, c.MaxIterations)
	}
	if c := f.Precession; c != nil {
		set(&s.Precession.MaxPerOrbitDeg, c.MaxPerOrbitDeg)
		set(&s.Precession.MinPeriapsisRs, c.MinPeriapsisRs)
		set(&s.Precession.Strict, c.Strict)
	}
	if c := f.Fetch; c != nil {
		set(&s.Fetch.Attempts, c.Attempts)
		set(&s.Fetch.InitialInterval, c.InitialInterval)
		set(&s.Fetch.MaxInterval, c.MaxInterval)
		set(&s.Fetch.MaxElapsed, c.MaxElapsed)
		set(&s.Fetch.Timeout, c.Timeout)
		set(&s.Fetch.Concurrency, c.Concurrency)
	}
	if c := f.Log; c != nil {
		set(&s.Log.Level, c.Level)
		set(&s.Log.JSON, c.JSON)
	}

	for _, dto := range f.Datasets {
		ds := l.dataset(dto, baseDir, s.Cache.MaxAge)
		i := slices.IndexFunc(s.Datasets, func(d domain.DatasetSpec) bool { return d.Name == ds.Name })
		if i >= 0 {
			l.Logger.Warn(fmt.Sprintf("dataset %q in %s replaces the built-in definition", ds.Name, domain.ConfigFileName))
			s.Datasets[i] = ds
			continue
		}
		s.Datasets = append(s.Datasets, ds)
	}

	for _, dto := range f.Bodies {
		if dto.ID == "" {
			return zerr.With(zerr.Wrap(domain.ErrInvalidConfig, "body id is required"), "field", "bodies")
		}
		s.Bodies = append(s.Bodies, domain.BodySpec{
			Params:      dto.ElementParams,
			Central:     dto.Central,
			Description: dto.Description,
		})
	}
	return nil
}

func (l *Loader) dataset(dto DatasetDTO, baseDir string, defaultMaxAge time.Duration) domain.DatasetSpec {
	ds := domain.DatasetSpec{
		Name:        dto.Name,
		Attribution: dto.Attribution,
		MaxAge:      defaultMaxAge,
		Sources:     make([]domain.SourceSpec, 0, len(dto.Sources)),
	}
	set(&ds.MaxAge, dto.MaxAge)

	for _, src := range dto.Sources {
		spec := domain.SourceSpec{
			Name:     src.Name,
			Kind:     src.Kind,
			Location: src.Location,
			Format:   src.Format,
			CSV:      src.CSV,
		}
		if spec.Kind == "" {
			spec.Kind = domain.SourceKindHTTP
		}
		if spec.Format == "" {
			spec.Format = domain.FormatCSV
		}
		if spec.Kind == domain.SourceKindFile {
			spec.Location = resolve(baseDir, strings.TrimPrefix(spec.Location, "file://"))
		}
		ds.Sources = append(ds.Sources, spec)
	}
	return ds
}

func (l *Loader) applyEnv(s *domain.Settings) error {
	ov := envOverrides{
		CacheDir:      s.Cache.Dir,
		CacheBackups:  s.Cache.Backups,
		LogLevel:      s.Log.Level,
		LogJSON:       s.Log.JSON,
		FetchTimeout:  s.Fetch.Timeout,
		FetchAttempts: s.Fetch.Attempts,
	}

	environment := make(map[string]string)
	for _, kv := range l.environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(k, EnvPrefix) {
			environment[k] = v
		}
	}

	if err := env.ParseWithOptions(&ov, env.Options{Prefix: EnvPrefix, Environment: environment}); err != nil {
		return zerr.With(zerr.Wrap(domain.ErrInvalidConfig, "invalid environment override"), "cause", err.Error())
	}

	s.Cache.Dir = ov.CacheDir
	s.Cache.Backups = ov.CacheBackups
	s.Log.Level = ov.LogLevel
	s.Log.JSON = ov.LogJSON
	s.Fetch.Timeout = ov.FetchTimeout
	s.Fetch.Attempts = ov.FetchAttempts
	return nil
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// resolve makes a relative path relative to the config file's directory.
func resolve(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

