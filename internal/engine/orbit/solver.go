// Package orbit implements the two-body state engine: the Kepler solver and the
// state vector calculator. Everything here is pure and performs no I/O.
package orbit

import (
	"math"

	"go.trai.ch/orrery/internal/core/domain"
	"go.trai.ch/zerr"
)

const (
	// DefaultTolerance is the convergence threshold on |ΔE| in radians.
	DefaultTolerance = 1e-10
	// DefaultMaxIterations bounds the Newton-Raphson loop.
	DefaultMaxIterations = 50

	// highEccentricity is the threshold above which iteration starts at π.
	highEccentricity = 0.8
	// residualFactor scales the tolerance into the accepted residual of Kepler's equation.
	residualFactor = 10
)

// Solver solves Kepler's equation M = E - e·sin(E) for the eccentric anomaly.
type Solver struct {
	tolerance     float64
	maxIterations int
}

// NewSolver returns a solver with the given convergence threshold and iteration budget.
// Non-positive values fall back to the defaults.
func NewSolver(tolerance float64, maxIterations int) Solver {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return Solver{tolerance: tolerance, maxIterations: maxIterations}
}

// DefaultSolver returns a solver with a 1e-10 rad tolerance and 50 iterations.
func DefaultSolver() Solver {
	return NewSolver(DefaultTolerance, DefaultMaxIterations)
}

// Tolerance returns the convergence threshold.
func (s Solver) Tolerance() float64 { return s.tolerance }

// Solve returns E in [0, 2π) for the given mean anomaly (any real) and eccentricity.
// A solve that does not converge within the budget returns ErrNumericConvergence
// and no value.
func (s Solver) Solve(meanAnomaly, e float64) (float64, error) {
	if math.IsNaN(meanAnomaly) || math.IsInf(meanAnomaly, 0) {
		return 0, zerr.With(zerr.Wrap(domain.ErrNumericConvergence, "mean anomaly is not finite"), "mean_anomaly", meanAnomaly)
	}
	if math.IsNaN(e) || e < 0 || e >= 1 {
		return 0, zerr.With(zerr.Wrap(domain.ErrInvalidElements, "eccentricity must be in [0, 1)"), "eccentricity", e)
	}

	m := domain.NormalizeAngle(meanAnomaly)
	if e == 0 {
		return m, nil
	}

	ecc := m
	if e > highEccentricity {
		ecc = math.Pi
	}

	var delta float64
	for i := 1; i <= s.maxIterations; i++ {
		f := ecc - e*math.Sin(ecc) - m
		fp := 1 - e*math.Cos(ecc)
		delta = f / fp
		ecc -= delta

		if math.IsNaN(ecc) || math.IsInf(ecc, 0) {
			break
		}
		if math.Abs(delta) < s.tolerance {
			residual := math.Abs(ecc - e*math.Sin(ecc) - m)
			if residual <= residualFactor*s.tolerance {
				return domain.NormalizeAngle(ecc), nil
			}
		}
	}

	err := zerr.Wrap(domain.ErrNumericConvergence, "kepler solver did not converge")
	err = zerr.With(err, "mean_anomaly", m)
	err = zerr.With(err, "eccentricity", e)
	err = zerr.With(err, "iterations", s.maxIterations)
	err = zerr.With(err, "residual", math.Abs(ecc-e*math.Sin(ecc)-m))
	return 0, zerr.With(err, "last_step", delta)
}
