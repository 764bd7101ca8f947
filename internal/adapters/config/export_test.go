package config

import "go.trai.ch/orrery/internal/core/ports"

// NewLoaderWithEnv returns a Loader reading environ instead of the process
// environment and resolving discovery from cwd.
func NewLoaderWithEnv(logger ports.Logger, cwd string, environ ...string) *Loader {
	l := NewLoader(logger)
	l.environ = func() []string { return environ }
	l.getwd = func() (string, error) { return cwd, nil }
	return l
}
