// Package detector decides how progress output is rendered.
package detector

import (
	"os"

	"golang.org/x/term"
)

// OutputMode represents how progress is written.
type OutputMode int

const (
	// ModeAuto picks a mode from the environment.
	ModeAuto OutputMode = iota
	// ModeInteractive redraws a single status line in place.
	ModeInteractive
	// ModeLinear writes one line per event, suitable for logs and CI.
	ModeLinear
)

// String returns the flag spelling of the mode.
func (m OutputMode) String() string {
	switch m {
	case ModeInteractive:
		return "interactive"
	case ModeLinear:
		return "linear"
	default:
		return "auto"
	}
}

// DetectEnvironment returns ModeLinear when fd is not a terminal or a CI
// environment variable is set, and ModeInteractive otherwise.
func DetectEnvironment(fd uintptr, getenv func(string) string) OutputMode {
	if getenv == nil {
		getenv = os.Getenv
	}
	ci := getenv("CI")
	if ci == "true" || ci == "1" {
		return ModeLinear
	}
	if !term.IsTerminal(int(fd)) { //nolint:gosec // file descriptors fit in int
		return ModeLinear
	}
	return ModeInteractive
}

// ResolveMode applies the user's flag to the detected mode.
// userFlag is one of "auto", "interactive", "linear", "ci" or empty.
func ResolveMode(detected OutputMode, userFlag string) OutputMode {
	switch userFlag {
	case "interactive", "tty":
		return ModeInteractive
	case "linear", "ci":
		return ModeLinear
	default:
		return detected
	}
}
