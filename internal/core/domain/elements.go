// Package domain contains the core types of the orbital engine and the record cache.
package domain

import (
	"math"
	"time"

	"go.trai.ch/zerr"
)

// ElementParams are the literature values used to build an Elements set.
// Angles are given in degrees, lengths in AU and the period in days.
type ElementParams struct {
	ID              string    `yaml:"id"`
	SemiMajorAxis   float64   `yaml:"a"`
	Eccentricity    float64   `yaml:"e"`
	PeriodDays      float64   `yaml:"period_days"`
	InclinationDeg  float64   `yaml:"inclination"`
	NodeDeg         float64   `yaml:"node"`
	ArgPeriapsisDeg float64   `yaml:"arg_periapsis"`
	PeriapsisEpoch  time.Time `yaml:"periapsis"`
}

// Elements is an immutable set of classical orbital elements for one body.
// The zero value is not usable; build one with NewElements.
type Elements struct {
	id           string
	a            float64
	e            float64
	period       float64
	inclination  float64
	node         float64
	argPeriapsis float64
	epoch        time.Time
}

// NewElements validates p and returns the corresponding element set.
func NewElements(p ElementParams) (Elements, error) {
	if p.ID == "" {
		return Elements{}, zerr.Wrap(ErrInvalidElements, "body id is required")
	}

	invalid := func(msg, field string, value float64) error {
		return zerr.With(zerr.With(zerr.Wrap(ErrInvalidElements, msg), "body", p.ID), field, value)
	}

	for field, v := range map[string]float64{
		"semi_major_axis": p.SemiMajorAxis,
		"eccentricity":    p.Eccentricity,
		"period_days":     p.PeriodDays,
		"inclination":     p.InclinationDeg,
		"node":            p.NodeDeg,
		"arg_periapsis":   p.ArgPeriapsisDeg,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Elements{}, invalid("element is not finite", field, v)
		}
	}

	switch {
	case p.Eccentricity < 0 || p.Eccentricity >= 1:
		return Elements{}, invalid("eccentricity must be in [0, 1) for a bound orbit", "eccentricity", p.Eccentricity)
	case p.SemiMajorAxis <= 0:
		return Elements{}, invalid("semi-major axis must be positive", "semi_major_axis", p.SemiMajorAxis)
	case p.PeriodDays <= 0:
		return Elements{}, invalid("period must be positive", "period_days", p.PeriodDays)
	}

	if p.PeriapsisEpoch.IsZero() {
		return Elements{}, zerr.With(zerr.Wrap(ErrInvalidElements, "periapsis epoch is required"), "body", p.ID)
	}

	return Elements{
		id:           p.ID,
		a:            p.SemiMajorAxis,
		e:            p.Eccentricity,
		period:       p.PeriodDays,
		inclination:  Radians(p.InclinationDeg),
		node:         Radians(p.NodeDeg),
		argPeriapsis: Radians(p.ArgPeriapsisDeg),
		epoch:        p.PeriapsisEpoch.UTC(),
	}, nil
}

// ID returns the body identifier.
func (el Elements) ID() string { return el.id }

// SemiMajorAxis returns a in AU.
func (el Elements) SemiMajorAxis() float64 { return el.a }

// Eccentricity returns e.
func (el Elements) Eccentricity() float64 { return el.e }

// Period returns P in days.
func (el Elements) Period() float64 { return el.period }

// Inclination returns i in radians.
func (el Elements) Inclination() float64 { return el.inclination }

// Node returns the longitude of the ascending node in radians.
func (el Elements) Node() float64 { return el.node }

// ArgPeriapsis returns the argument of periapsis in radians.
func (el Elements) ArgPeriapsis() float64 { return el.argPeriapsis }

// PeriapsisEpoch returns the observed reference periapsis time.
func (el Elements) PeriapsisEpoch() time.Time { return el.epoch }

// SemiMinorAxis returns b = a·sqrt(1-e²) in AU.
func (el Elements) SemiMinorAxis() float64 {
	return el.a * math.Sqrt(1-el.e*el.e)
}

// Periapsis returns the closest distance to the focus, a(1-e).
func (el Elements) Periapsis() float64 { return el.a * (1 - el.e) }

// Apoapsis returns the farthest distance from the focus, a(1+e).
func (el Elements) Apoapsis() float64 { return el.a * (1 + el.e) }

// MeanMotion returns n = 2π/P in radians per day.
func (el Elements) MeanMotion() float64 { return 2 * math.Pi / el.period }

// GravitationalParameter returns μ = 4π²a³/P² in AU³/day², implied by the elements.
func (el Elements) GravitationalParameter() float64 {
	n := el.MeanMotion()
	return n * n * el.a * el.a * el.a
}

// MeanAnomalyAt returns the unnormalized mean anomaly at t.
func (el Elements) MeanAnomalyAt(t time.Time) float64 {
	return el.MeanMotion() * DaysBetween(el.epoch, t)
}

// WithArgPeriapsis returns a copy of el with the argument of periapsis replaced.
func (el Elements) WithArgPeriapsis(omega float64) Elements {
	el.argPeriapsis = omega
	return el
}

// Params returns the literature form of el.
func (el Elements) Params() ElementParams {
	return ElementParams{
		ID:              el.id,
		SemiMajorAxis:   el.a,
		Eccentricity:    el.e,
		PeriodDays:      el.period,
		InclinationDeg:  Degrees(el.inclination),
		NodeDeg:         Degrees(el.node),
		ArgPeriapsisDeg: Degrees(el.argPeriapsis),
		PeriapsisEpoch:  el.epoch,
	}
}

// ElementsFromObservation builds elements from a cached observation whose fields
// carry a, e and period_days, and optionally inclination, node and arg_periapsis.
// The observation time is used as the periapsis epoch.
func ElementsFromObservation(id string, obs Observation) (Elements, error) {
	p := ElementParams{ID: id, PeriapsisEpoch: obs.Time}
	required := map[string]*float64{
		"a":           &p.SemiMajorAxis,
		"e":           &p.Eccentricity,
		"period_days": &p.PeriodDays,
	}
	for name, dst := range required {
		v, ok := obs.Fields[name]
		if !ok {
			return Elements{}, zerr.With(zerr.Wrap(ErrMissingField, "cannot build elements"), "field", name)
		}
		*dst = v
	}
	p.InclinationDeg = obs.Fields["inclination"]
	p.NodeDeg = obs.Fields["node"]
	p.ArgPeriapsisDeg = obs.Fields["arg_periapsis"]
	return NewElements(p)
}
