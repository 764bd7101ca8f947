package orbit

import (
	"math"
	"time"

	"go.trai.ch/orrery/internal/core/domain"
	"go.trai.ch/zerr"
	"gonum.org/v1/gonum/mat"
)

// Calculator converts elements and an anomaly into a state vector in the
// reference frame given by the inclination, node and argument of periapsis.
type Calculator struct {
	solver Solver
}

// NewCalculator returns a calculator backed by solver.
func NewCalculator(solver Solver) *Calculator {
	return &Calculator{solver: solver}
}

// Solver returns the Kepler solver used by the calculator.
func (c *Calculator) Solver() Solver { return c.solver }

// StateAt returns the state of el at the absolute time t.
func (c *Calculator) StateAt(el domain.Elements, t time.Time) (domain.StateVector, error) {
	return c.StateAtMean(el, el.MeanAnomalyAt(t))
}

// StateAtMean returns the state of el at the given mean anomaly.
func (c *Calculator) StateAtMean(el domain.Elements, meanAnomaly float64) (domain.StateVector, error) {
	ecc, err := c.solver.Solve(meanAnomaly, el.Eccentricity())
	if err != nil {
		return domain.StateVector{}, zerr.With(err, "body", el.ID())
	}
	sv, err := StateFromEccentric(el, ecc)
	if err != nil {
		return domain.StateVector{}, err
	}
	sv.Anomaly.Mean = domain.NormalizeAngle(meanAnomaly)
	return sv, nil
}

// StateFromEccentric returns the state of el at eccentric anomaly ecc.
// Position is in AU, velocity in AU/day.
func StateFromEccentric(el domain.Elements, ecc float64) (domain.StateVector, error) {
	a, e := el.SemiMajorAxis(), el.Eccentricity()

	nu, err := TrueAnomaly(ecc, e)
	if err != nil {
		return domain.StateVector{}, zerr.With(err, "body", el.ID())
	}

	sinE, cosE := math.Sincos(ecc)
	sqrtOneMinusE2 := math.Sqrt(1 - e*e)
	r := a * (1 - e*cosE)
	mu := el.GravitationalParameter()

	// Perifocal frame: x towards periapsis, y along the velocity at periapsis.
	px := a * (cosE - e)
	py := a * sqrtOneMinusE2 * sinE
	k := math.Sqrt(mu*a) / r
	vx := -k * sinE
	vy := k * sqrtOneMinusE2 * cosE

	rot := Orientation(el)
	sv := domain.StateVector{
		Position: rotate(rot, px, py),
		Velocity: rotate(rot, vx, vy),
		Radius:   r,
		Speed:    VisViva(mu, r, a),
		Anomaly: domain.AnomalyState{
			Mean:      domain.NormalizeAngle(ecc - e*sinE),
			Eccentric: domain.NormalizeAngle(ecc),
			True:      nu,
		},
	}

	if !sv.Position.IsFinite() || !sv.Velocity.IsFinite() || math.IsNaN(sv.Speed) || r <= 0 {
		err := zerr.Wrap(domain.ErrNumericConvergence, "state vector is not finite")
		err = zerr.With(err, "body", el.ID())
		err = zerr.With(err, "eccentricity", e)
		return domain.StateVector{}, zerr.With(err, "eccentric_anomaly", ecc)
	}
	return sv, nil
}

// TrueAnomaly converts an eccentric anomaly to the true anomaly in [0, 2π).
// The atan2 half-angle form stays finite at E = π where tan(E/2) diverges.
func TrueAnomaly(ecc, e float64) (float64, error) {
	sinHalf, cosHalf := math.Sincos(ecc / 2)
	nu := 2 * math.Atan2(math.Sqrt(1+e)*sinHalf, math.Sqrt(1-e)*cosHalf)
	if math.IsNaN(nu) || math.IsInf(nu, 0) {
		err := zerr.Wrap(domain.ErrNumericConvergence, "true anomaly is not finite")
		return 0, zerr.With(zerr.With(err, "eccentricity", e), "eccentric_anomaly", ecc)
	}
	return domain.NormalizeAngle(nu), nil
}

// VisViva returns the orbital speed at distance r: sqrt(μ(2/r - 1/a)).
func VisViva(mu, r, a float64) float64 {
	return math.Sqrt(mu * (2/r - 1/a))
}

// SweptArea approximates the area swept by the radius vector between two
// consecutive samples with the trapezoidal rule on 0.5·r²·Δν.
func SweptArea(from, to domain.StateVector) float64 {
	dnu := domain.NormalizeAngle(to.Anomaly.True - from.Anomaly.True)
	return 0.5 * dnu * (from.Radius*from.Radius + to.Radius*to.Radius) / 2
}

// Orientation returns the perifocal-to-reference rotation Rz(Ω)·Rx(i)·Rz(ω).
func Orientation(el domain.Elements) *mat.Dense {
	var nodeIncl, full mat.Dense
	nodeIncl.Mul(rotZ(el.Node()), rotX(el.Inclination()))
	full.Mul(&nodeIncl, rotZ(el.ArgPeriapsis()))
	return &full
}

func rotZ(theta float64) *mat.Dense {
	s, c := math.Sincos(theta)
	return mat.NewDense(3, 3, []float64{
		c, -s, 0,
		s, c, 0,
		0, 0, 1,
	})
}

func rotX(theta float64) *mat.Dense {
	s, c := math.Sincos(theta)
	return mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, c, -s,
		0, s, c,
	})
}

func rotate(m mat.Matrix, x, y float64) domain.Vector3 {
	var out mat.VecDense
	out.MulVec(m, mat.NewVecDense(3, []float64{x, y, 0}))
	return domain.Vector3{X: out.AtVec(0), Y: out.AtVec(1), Z: out.AtVec(2)}
}
