package domain

import (
	"strings"

	"go.trai.ch/zerr"
)

// PhysicalConstants is the immutable set of constants the engine uses.
// Values are SI unless the field says otherwise.
type PhysicalConstants struct {
	// SolarGM is the heliocentric gravitational constant in m³/s².
	SolarGM float64
	// SpeedOfLight is c in m/s.
	SpeedOfLight float64
	// AstronomicalUnit is the length of one AU in meters.
	AstronomicalUnit float64
	// SecondsPerDay is the length of a day in seconds.
	SecondsPerDay float64
	// DaysPerYear is the length of a Julian year in days.
	DaysPerYear float64
}

// DefaultPhysicalConstants returns IAU 2012/2015 nominal values.
func DefaultPhysicalConstants() PhysicalConstants {
	return PhysicalConstants{
		SolarGM:          1.32712440018e20,
		SpeedOfLight:     299_792_458,
		AstronomicalUnit: 1.495978707e11,
		SecondsPerDay:    secondsPerDay,
		DaysPerYear:      365.25,
	}
}

// SchwarzschildRadius returns 2GM/c² in meters for a mass in solar masses.
func (c PhysicalConstants) SchwarzschildRadius(massSolar float64) float64 {
	return 2 * c.SolarGM * massSolar / (c.SpeedOfLight * c.SpeedOfLight)
}

// SchwarzschildRadiusAU returns the Schwarzschild radius in AU.
func (c PhysicalConstants) SchwarzschildRadiusAU(massSolar float64) float64 {
	return c.SchwarzschildRadius(massSolar) / c.AstronomicalUnit
}

// KilometersPerSecond converts a speed in AU/day to km/s.
func (c PhysicalConstants) KilometersPerSecond(auPerDay float64) float64 {
	return auPerDay * c.AstronomicalUnit / c.SecondsPerDay / 1000
}

// YearsToDays converts Julian years to days.
func (c PhysicalConstants) YearsToDays(years float64) float64 {
	return years * c.DaysPerYear
}

// CentralBody is the mass an orbit is bound to.
type CentralBody struct {
	ID        string
	Name      string
	MassSolar float64
	Reference string
}

// Central body identifiers.
const (
	CentralSun      = "sun"
	CentralSgrAStar = "sgra"
)

// CentralBodies returns the known central masses keyed by id.
func CentralBodies() map[string]CentralBody {
	return map[string]CentralBody{
		CentralSun: {
			ID:        CentralSun,
			Name:      "Sun",
			MassSolar: 1,
			Reference: "IAU 2015 Resolution B3",
		},
		CentralSgrAStar: {
			ID:        CentralSgrAStar,
			Name:      "Sagittarius A*",
			MassSolar: 4.154e6,
			Reference: "GRAVITY Collaboration 2019, A&A 625, L10",
		},
	}
}

// LookupCentralBody returns the central body with the given id.
func LookupCentralBody(id string) (CentralBody, error) {
	cb, ok := CentralBodies()[strings.ToLower(id)]
	if !ok {
		return CentralBody{}, zerr.With(zerr.Wrap(ErrUnknownCentralBody, "lookup failed"), "central", id)
	}
	return cb, nil
}
