package domain

import (
	"math"
	"time"
)

const secondsPerDay = 86400

// Radians converts degrees to radians.
func Radians(deg float64) float64 { return deg * math.Pi / 180 }

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 { return rad * 180 / math.Pi }

// Arcseconds converts radians to arcseconds.
func Arcseconds(rad float64) float64 { return Degrees(rad) * 3600 }

// NormalizeAngle maps x into [0, 2π).
func NormalizeAngle(x float64) float64 {
	x = math.Mod(x, 2*math.Pi)
	if x < 0 {
		x += 2 * math.Pi
	}
	// Mod can round a tiny negative value up to exactly 2π.
	if x >= 2*math.Pi {
		x = 0
	}
	return x
}

// DaysBetween returns b-a in days. Unlike time.Time.Sub it does not saturate
// for spans longer than ~292 years.
func DaysBetween(a, b time.Time) float64 {
	secs := float64(b.Unix() - a.Unix())
	nanos := float64(b.Nanosecond() - a.Nanosecond())
	return (secs + nanos/1e9) / secondsPerDay
}

// AddDays returns t shifted by a fractional number of days without the
// time.Duration range limit.
func AddDays(t time.Time, days float64) time.Time {
	total := days * secondsPerDay
	whole := math.Floor(total)
	nanos := math.Round((total - whole) * 1e9)
	return time.Unix(t.Unix()+int64(whole), int64(t.Nanosecond())+int64(nanos)).UTC()
}
