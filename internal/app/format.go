package app

import (
	"math"
	"strconv"
	"time"

	"go.trai.ch/orrery/internal/adapters/detector" //nolint:depguard // output mode is an app concern
	"go.trai.ch/orrery/internal/core/domain"
)

func (a *App) interactive() bool {
	return a.mode == detector.ModeInteractive
}

// formatAngle prints small angles in arcseconds and larger ones in degrees.
func formatAngle(rad float64) string {
	deg := domain.Degrees(rad)
	if math.Abs(deg) < 0.01 {
		return strconv.FormatFloat(domain.Arcseconds(rad), 'f', 4, 64) + "″"
	}
	return strconv.FormatFloat(deg, 'f', 4, 64) + "°"
}

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
