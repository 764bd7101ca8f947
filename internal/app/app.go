// Package app implements the application layer for orrery.
package app

import (
	"context"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.trai.ch/orrery/internal/adapters/detector"  //nolint:depguard // output mode is an app concern
	"go.trai.ch/orrery/internal/adapters/telemetry" //nolint:depguard // span bridge is installed by the app
	"go.trai.ch/orrery/internal/core/domain"
	"go.trai.ch/orrery/internal/core/ports"
	"go.trai.ch/orrery/internal/engine/orbit"
	"go.trai.ch/orrery/internal/engine/precession"
	"go.trai.ch/zerr"
)

// App represents the main application logic.
type App struct {
	configLoader ports.ConfigLoader
	logger       ports.Logger
	opener       ports.StoreOpener
	sources      ports.SourceFactory
	watcher      ports.Watcher
	tracer       ports.Tracer

	stdout   io.Writer
	getenv   func(string) string
	consts   domain.PhysicalConstants
	settings domain.Settings
	mode     detector.OutputMode
	provider *sdktrace.TracerProvider
}

// New creates a new App instance.
func New(
	loader ports.ConfigLoader,
	log ports.Logger,
	opener ports.StoreOpener,
	sources ports.SourceFactory,
	watcher ports.Watcher,
	tracer ports.Tracer,
) *App {
	return &App{
		configLoader: loader,
		logger:       log,
		opener:       opener,
		sources:      sources,
		watcher:      watcher,
		tracer:       tracer,
		stdout:       os.Stdout,
		getenv:       os.Getenv,
		consts:       domain.DefaultPhysicalConstants(),
		settings:     domain.DefaultSettings(),
		mode:         detector.ModeLinear,
	}
}

// WithOutput redirects command output, which goes to stdout by default.
func (a *App) WithOutput(w io.Writer) *App {
	a.stdout = w
	return a
}

// WithGetenv replaces the environment lookup used for output detection.
func (a *App) WithGetenv(getenv func(string) string) *App {
	a.getenv = getenv
	return a
}

// GlobalOptions are the flags shared by every command.
type GlobalOptions struct {
	ConfigPath string
	LogLevel   string
	JSON       bool
	OutputMode string
}

// configurableLogger is implemented by the slog adapter.
type configurableLogger interface {
	SetLevel(name string) error
	SetJSON(enable bool)
}

// Configure loads settings and applies them to the logger, output mode and
// tracing. It must run before any command.
func (a *App) Configure(opts GlobalOptions) error {
	settings, err := a.configLoader.Load(opts.ConfigPath)
	if err != nil {
		return zerr.Wrap(err, "failed to load configuration")
	}
	a.settings = settings

	if l, ok := a.logger.(configurableLogger); ok {
		level := settings.Log.Level
		if opts.LogLevel != "" {
			level = opts.LogLevel
		}
		if err := l.SetLevel(level); err != nil {
			return err
		}
		l.SetJSON(opts.JSON || settings.Log.JSON)
	}

	detected := detector.ModeLinear
	if f, ok := a.stdout.(interface{ Fd() uintptr }); ok {
		detected = detector.DetectEnvironment(f.Fd(), a.getenv)
	}
	a.mode = detector.ResolveMode(detected, opts.OutputMode)

	a.setupOTel(telemetry.NewLogBridge(a.logger, telemetry.DefaultSlowThreshold))
	return nil
}

// Settings returns the loaded settings.
func (a *App) Settings() domain.Settings {
	return a.settings
}

// Shutdown flushes the tracer provider.
func (a *App) Shutdown(ctx context.Context) error {
	if a.provider == nil {
		return nil
	}
	return a.provider.Shutdown(ctx)
}

// setupOTel registers a tracer provider that reports spans through bridge.
// Tracers obtained from the global provider earlier pick it up as well.
func (a *App) setupOTel(bridge sdktrace.SpanProcessor) {
	if a.provider != nil {
		_ = a.provider.Shutdown(context.Background())
	}
	a.provider = sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(bridge))
	otel.SetTracerProvider(a.provider)
}

func (a *App) calculator() *orbit.Calculator {
	return orbit.NewCalculator(orbit.NewSolver(a.settings.Solver.Tolerance, a.settings.Solver.MaxIterations))
}

func (a *App) precessionModel() *precession.Model {
	return precession.NewModel(precession.LimitsFromSettings(a.settings.Precession), a.calculator())
}

func (a *App) catalog() (*domain.Catalog, error) {
	base, err := domain.DefaultCatalog()
	if err != nil {
		return nil, err
	}
	return base.With(a.settings.Bodies...)
}

func (a *App) openStore() (ports.RecordStore, error) {
	return a.opener.Open(a.settings.Cache)
}
