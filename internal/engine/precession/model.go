// Package precession computes first-order relativistic apsidal precession and
// the rosette traces it produces over many orbits.
package precession

import (
	"context"
	"fmt"
	"math"

	"go.trai.ch/orrery/internal/core/domain"
	"go.trai.ch/orrery/internal/engine/orbit"
	"go.trai.ch/zerr"
)

// Limits bound the configurations where the first-order term is trusted.
type Limits struct {
	// MaxPerOrbit is the largest per-orbit angle, in radians, still treated as a small correction.
	MaxPerOrbit float64
	// MinPeriapsisRs is the closest approach, in Schwarzschild radii, still treated as weak field.
	MinPeriapsisRs float64
	// Strict turns an out-of-range estimate into ErrPrecessionOutOfRange.
	Strict bool
}

// DefaultLimits flags per-orbit angles above 5° and periapses within 10 Rs.
func DefaultLimits() Limits {
	return Limits{
		MaxPerOrbit:    domain.Radians(5),
		MinPeriapsisRs: 10,
	}
}

// LimitsFromSettings converts configured limits.
func LimitsFromSettings(s domain.PrecessionSettings) Limits {
	return Limits{
		MaxPerOrbit:    domain.Radians(s.MaxPerOrbitDeg),
		MinPeriapsisRs: s.MinPeriapsisRs,
		Strict:         s.Strict,
	}
}

// Estimate is the per-orbit precession of one configuration.
type Estimate struct {
	SemiMajorAxis       float64
	Eccentricity        float64
	SchwarzschildRadius float64
	// PerOrbit is Δφ in radians.
	PerOrbit float64
	// PeriapsisRs is the periapsis distance in Schwarzschild radii.
	PeriapsisRs float64
	Valid       bool
	Reason      string
}

// PerOrbitDegrees returns Δφ in degrees.
func (e Estimate) PerOrbitDegrees() float64 { return domain.Degrees(e.PerOrbit) }

// Accumulated returns the linear-cumulative rotation after n orbits.
func (e Estimate) Accumulated(n int) float64 { return float64(n) * e.PerOrbit }

// ArcsecondsPerCentury returns the advance per Julian century for an orbit of
// the given period in days.
func (e Estimate) ArcsecondsPerCentury(periodDays, daysPerYear float64) float64 {
	orbits := 100 * daysPerYear / periodDays
	return domain.Arcseconds(e.PerOrbit * orbits)
}

// Model evaluates Δφ = 3π·Rs / (a(1-e²)) and builds traces.
type Model struct {
	limits Limits
	calc   *orbit.Calculator
}

// NewModel returns a model using calc to sample positions.
func NewModel(limits Limits, calc *orbit.Calculator) *Model {
	return &Model{limits: limits, calc: calc}
}

// Limits returns the configured validity limits.
func (m *Model) Limits() Limits { return m.limits }

// PerOrbit returns the per-orbit precession for semi-major axis a, eccentricity e
// and Schwarzschild radius rs, with a and rs in the same length unit.
func (m *Model) PerOrbit(a, e, rs float64) (Estimate, error) {
	switch {
	case !(a > 0) || math.IsInf(a, 0):
		return Estimate{}, zerr.With(zerr.Wrap(domain.ErrInvalidElements, "semi-major axis must be positive"), "semi_major_axis", a)
	case !(e >= 0 && e < 1):
		return Estimate{}, zerr.With(zerr.Wrap(domain.ErrInvalidElements, "eccentricity must be in [0, 1)"), "eccentricity", e)
	case !(rs >= 0) || math.IsInf(rs, 0):
		return Estimate{}, zerr.With(zerr.Wrap(domain.ErrInvalidElements, "schwarzschild radius must be non-negative"), "rs", rs)
	}

	est := Estimate{
		SemiMajorAxis:       a,
		Eccentricity:        e,
		SchwarzschildRadius: rs,
		PerOrbit:            3 * math.Pi * rs / (a * (1 - e*e)),
		PeriapsisRs:         math.Inf(1),
		Valid:               true,
	}
	if rs > 0 {
		est.PeriapsisRs = a * (1 - e) / rs
	}

	switch {
	case est.PerOrbit > m.limits.MaxPerOrbit:
		est.Valid = false
		est.Reason = fmt.Sprintf("per-orbit precession %.3f° exceeds the %.3f° first-order limit",
			est.PerOrbitDegrees(), domain.Degrees(m.limits.MaxPerOrbit))
	case est.PeriapsisRs < m.limits.MinPeriapsisRs:
		est.Valid = false
		est.Reason = fmt.Sprintf("periapsis at %.1f Rs is inside the %.1f Rs weak-field limit",
			est.PeriapsisRs, m.limits.MinPeriapsisRs)
	}

	if !est.Valid && m.limits.Strict {
		err := zerr.Wrap(domain.ErrPrecessionOutOfRange, est.Reason)
		err = zerr.With(err, "eccentricity", e)
		return est, zerr.With(err, "per_orbit_deg", est.PerOrbitDegrees())
	}
	return est, nil
}

// ForBody evaluates a catalog body around its central mass.
func (m *Model) ForBody(body domain.Body, consts domain.PhysicalConstants) (Estimate, error) {
	rs := consts.SchwarzschildRadiusAU(body.Central.MassSolar)
	est, err := m.PerOrbit(body.Elements.SemiMajorAxis(), body.Elements.Eccentricity(), rs)
	if err != nil {
		return est, zerr.With(err, "body", body.Elements.ID())
	}
	return est, nil
}

// Trace samples orbits of el, each rotated in its plane by the precession
// accumulated before it. Orbit 0 is unrotated.
func (m *Model) Trace(ctx context.Context, el domain.Elements, est Estimate, orbits, samplesPerOrbit int) (domain.PrecessionTrace, error) {
	if orbits < 1 || samplesPerOrbit < 1 {
		return domain.PrecessionTrace{}, zerr.With(zerr.With(zerr.Wrap(domain.ErrInvalidStep,
			"orbits and samples per orbit must be positive"), "orbits", orbits), "samples", samplesPerOrbit)
	}

	trace := domain.PrecessionTrace{
		BodyID:   el.ID(),
		PerOrbit: est.PerOrbit,
		Valid:    est.Valid,
		Reason:   est.Reason,
		Orbits:   make([]domain.OrbitTrace, 0, orbits),
	}

	for k := range orbits {
		if err := ctx.Err(); err != nil {
			return domain.PrecessionTrace{}, err
		}

		rotation := est.Accumulated(k)
		rotated := el.WithArgPeriapsis(el.ArgPeriapsis() + rotation)
		positions := make([]domain.Vector3, 0, samplesPerOrbit)
		for j := range samplesPerOrbit {
			sv, err := m.calc.StateAtMean(rotated, 2*math.Pi*float64(j)/float64(samplesPerOrbit))
			if err != nil {
				return domain.PrecessionTrace{}, zerr.With(err, "orbit", k)
			}
			positions = append(positions, sv.Position)
		}

		trace.Orbits = append(trace.Orbits, domain.OrbitTrace{
			Index:     k,
			Rotation:  rotation,
			Positions: positions,
		})
	}
	return trace, nil
}
