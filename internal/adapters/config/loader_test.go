package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/orrery/internal/adapters/config"
	"go.trai.ch/orrery/internal/core/domain"
	"go.trai.ch/orrery/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, domain.ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	loader := config.NewLoaderWithEnv(mocks.NewMockLogger(ctrl), t.TempDir())

	settings, err := loader.Load("")
	require.NoError(t, err)

	want := domain.DefaultSettings()
	assert.Equal(t, want.Solver, settings.Solver)
	assert.Equal(t, want.Fetch, settings.Fetch)
	assert.Equal(t, want.DatasetNames(), settings.DatasetNames())
	assert.Empty(t, settings.Bodies)
}

func TestLoad_DiscoversFileInParent(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeConfig(t, root, "solver:\n  max_iterations: 12\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o750))

	ctrl := gomock.NewController(t)
	loader := config.NewLoaderWithEnv(mocks.NewMockLogger(ctrl), nested)

	settings, err := loader.Load("")
	require.NoError(t, err)
	assert.Equal(t, 12, settings.Solver.MaxIterations)
}

func TestLoad_FullFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeConfig(t, dir, `
cache:
  dir: cache
  backups: 5
  max_age: 48h
solver:
  tolerance: 1.0e-12
precession:
  max_per_orbit_deg: 2.5
  strict: true
fetch:
  attempts: 2
  timeout: 5s
  concurrency: 8
log:
  level: debug
  json: true
datasets:
  - name: local-co2
    attribution: Lab notebook
    sources:
      - name: disk
        kind: file
        location: data/co2.csv
        csv:
          time_column: 0
          value_column: 1
          time_format: date
bodies:
  - id: voyager
    a: 2.0e7
    e: 0.3
    period_days: 1.5
    periapsis: 2024-01-01T00:00:00Z
    central: Earth
    description: test spacecraft
`)

	ctrl := gomock.NewController(t)
	loader := config.NewLoaderWithEnv(mocks.NewMockLogger(ctrl), dir)

	settings, err := loader.Load(path)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "cache"), settings.Cache.Dir)
	assert.Equal(t, 5, settings.Cache.Backups)
	assert.Equal(t, 48*time.Hour, settings.Cache.MaxAge)
	assert.InDelta(t, 1e-12, settings.Solver.Tolerance, 1e-18)
	assert.Equal(t, domain.DefaultSettings().Solver.MaxIterations, settings.Solver.MaxIterations)
	assert.InDelta(t, 2.5, settings.Precession.MaxPerOrbitDeg, 1e-12)
	assert.True(t, settings.Precession.Strict)
	assert.Equal(t, 2, settings.Fetch.Attempts)
	assert.Equal(t, 5*time.Second, settings.Fetch.Timeout)
	assert.Equal(t, 8, settings.Fetch.Concurrency)
	assert.Equal(t, "debug", settings.Log.Level)
	assert.True(t, settings.Log.JSON)

	ds, err := settings.Dataset("local-co2")
	require.NoError(t, err)
	assert.Equal(t, 48*time.Hour, ds.MaxAge, "dataset max age defaults to cache.max_age")
	require.Len(t, ds.Sources, 1)
	assert.Equal(t, filepath.Join(dir, "data", "co2.csv"), ds.Sources[0].Location)
	assert.Equal(t, domain.FormatCSV, ds.Sources[0].Format)
	assert.Equal(t, domain.TimeDate, ds.Sources[0].CSV.TimeFormat)

	require.Len(t, settings.Bodies, 1)
	body := settings.Bodies[0]
	assert.Equal(t, "voyager", body.Params.ID)
	assert.Equal(t, "Earth", body.Central)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), body.Params.PeriapsisEpoch.UTC())
}

func TestLoad_OverridesBuiltinDataset(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeConfig(t, dir, `
datasets:
  - name: gistemp
    max_age: 1h
    sources:
      - name: mirror
        location: https://example.test/gistemp.csv
`)

	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Warn(gomock.Cond(func(msg string) bool {
		return strings.Contains(msg, `"gistemp"`)
	})).Times(1)

	settings, err := config.NewLoaderWithEnv(log, dir).Load(path)
	require.NoError(t, err)

	assert.Equal(t, domain.DefaultSettings().DatasetNames(), settings.DatasetNames(), "order is kept")
	ds, err := settings.Dataset("gistemp")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, ds.MaxAge)
	require.Len(t, ds.Sources, 1)
	assert.Equal(t, domain.SourceKindHTTP, ds.Sources[0].Kind)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeConfig(t, dir, "fetch:\n  attempts: 2\nlog:\n  level: warn\n")

	ctrl := gomock.NewController(t)
	loader := config.NewLoaderWithEnv(mocks.NewMockLogger(ctrl), dir,
		"ORRERY_CACHE_DIR=/var/cache/orrery",
		"ORRERY_FETCH_ATTEMPTS=7",
		"ORRERY_FETCH_TIMEOUT=2m",
		"ORRERY_LOG_JSON=true",
		"CACHE_DIR=/ignored",
	)

	settings, err := loader.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/cache/orrery", settings.Cache.Dir)
	assert.Equal(t, 7, settings.Fetch.Attempts)
	assert.Equal(t, 2*time.Minute, settings.Fetch.Timeout)
	assert.True(t, settings.Log.JSON)
	assert.Equal(t, "warn", settings.Log.Level, "file value survives when no override is set")
	assert.Equal(t, domain.DefaultSettings().Cache.Backups, settings.Cache.Backups)
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		env     []string
		wantErr error
	}{
		{name: "malformed yaml", content: "solver: [", wantErr: domain.ErrConfigParseFailed},
		{name: "unknown field", content: "solvr:\n  tolerance: 1\n", wantErr: domain.ErrConfigParseFailed},
		{name: "bad duration", content: "cache:\n  max_age: soon\n", wantErr: domain.ErrConfigParseFailed},
		{name: "zero backups", content: "cache:\n  backups: 0\n", wantErr: domain.ErrInvalidConfig},
		{name: "negative tolerance", content: "solver:\n  tolerance: -1\n", wantErr: domain.ErrInvalidConfig},
		{
			name:    "dataset without sources",
			content: "datasets:\n  - name: empty\n",
			wantErr: domain.ErrNoSources,
		},
		{
			name:    "unknown source kind",
			content: "datasets:\n  - name: x\n    sources:\n      - name: s\n        kind: ftp\n        location: ftp://x\n",
			wantErr: domain.ErrInvalidConfig,
		},
		{name: "body without id", content: "bodies:\n  - a: 1.0\n", wantErr: domain.ErrInvalidConfig},
		{name: "bad env number", env: []string{"ORRERY_CACHE_BACKUPS=many"}, wantErr: domain.ErrInvalidConfig},
		{name: "env out of range", env: []string{"ORRERY_FETCH_ATTEMPTS=0"}, wantErr: domain.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			path := writeConfig(t, dir, tt.content)

			ctrl := gomock.NewController(t)
			log := mocks.NewMockLogger(ctrl)
			log.EXPECT().Warn(gomock.Any()).AnyTimes()

			_, err := config.NewLoaderWithEnv(log, dir, tt.env...).Load(path)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoad_ExplicitPathMustExist(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	loader := config.NewLoaderWithEnv(mocks.NewMockLogger(ctrl), t.TempDir())

	_, err := loader.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), domain.ErrConfigReadFailed.Error())
}

func TestLoad_EmptyFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeConfig(t, dir, "")

	ctrl := gomock.NewController(t)
	settings, err := config.NewLoaderWithEnv(mocks.NewMockLogger(ctrl), dir).Load(path)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSettings().Cache.Backups, settings.Cache.Backups)
}
