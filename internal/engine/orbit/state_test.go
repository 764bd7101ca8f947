package orbit_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/orrery/internal/core/domain"
	"go.trai.ch/orrery/internal/engine/orbit"
	"gonum.org/v1/gonum/mat"
)

func mustElements(t *testing.T, p domain.ElementParams) domain.Elements {
	t.Helper()
	el, err := domain.NewElements(p)
	require.NoError(t, err)
	return el
}

func s2Like(t *testing.T) domain.Elements {
	t.Helper()
	return mustElements(t, domain.ElementParams{
		ID: "s2", SemiMajorAxis: 1026, Eccentricity: 0.884, PeriodDays: 16.05 * 365.25,
		InclinationDeg: 134.567, NodeDeg: 228.171, ArgPeriapsisDeg: 66.263,
		PeriapsisEpoch: time.Date(2018, time.May, 19, 0, 0, 0, 0, time.UTC),
	})
}

func TestStateFromEccentric_Apsides(t *testing.T) {
	t.Parallel()

	for _, e := range []float64{0, 0.2056, 0.884, 0.967, 0.985, 0.999999} {
		el := mustElements(t, domain.ElementParams{
			ID: "apsides", SemiMajorAxis: 10, Eccentricity: e, PeriodDays: 1000,
			InclinationDeg: 20, NodeDeg: 40, ArgPeriapsisDeg: 60,
			PeriapsisEpoch: time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC),
		})

		peri, err := orbit.StateFromEccentric(el, 0)
		require.NoError(t, err)
		assert.InDelta(t, 10*(1-e), peri.Radius, 1e-9, "e=%v periapsis", e)
		assert.InDelta(t, peri.Radius, peri.Position.Norm(), 1e-9)
		assert.InDelta(t, 0, peri.Anomaly.True, 1e-12)

		apo, err := orbit.StateFromEccentric(el, math.Pi)
		require.NoError(t, err)
		assert.InDelta(t, 10*(1+e), apo.Radius, 1e-9, "e=%v apoapsis", e)
		assert.InDelta(t, apo.Radius, apo.Position.Norm(), 1e-9)
		assert.InDelta(t, math.Pi, apo.Anomaly.True, 1e-9, "true anomaly at E=π must not be NaN")
		assert.Less(t, apo.Speed, peri.Speed+1e-15)
	}
}

func TestStateAt_PlanarPeriapsisDirection(t *testing.T) {
	t.Parallel()

	epoch := time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
	el := mustElements(t, domain.ElementParams{
		ID: "planar", SemiMajorAxis: 2, Eccentricity: 0.5, PeriodDays: 100, PeriapsisEpoch: epoch,
	})
	calc := orbit.NewCalculator(orbit.DefaultSolver())

	sv, err := calc.StateAt(el, epoch)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sv.Position.X, 1e-12)
	assert.InDelta(t, 0.0, sv.Position.Y, 1e-12)
	assert.InDelta(t, 0.0, sv.Position.Z, 1e-12)
	assert.Greater(t, sv.Velocity.Y, 0.0, "prograde motion at periapsis")

	half, err := calc.StateAt(el, epoch.Add(50*24*time.Hour))
	require.NoError(t, err)
	assert.InDelta(t, -3.0, half.Position.X, 1e-9)
}

func TestStateAtMean_Invariants(t *testing.T) {
	t.Parallel()

	el := s2Like(t)
	calc := orbit.NewCalculator(orbit.DefaultSolver())
	mu := el.GravitationalParameter()
	a, e := el.SemiMajorAxis(), el.Eccentricity()
	wantH := math.Sqrt(mu * a * (1 - e*e))

	for i := range 360 {
		m := 2 * math.Pi * float64(i) / 360
		sv, err := calc.StateAtMean(el, m)
		require.NoError(t, err)

		assert.InDelta(t, sv.Radius, sv.Position.Norm(), 1e-9*a)
		assert.InEpsilon(t, sv.Speed, sv.Velocity.Norm(), 1e-9, "vis-viva agrees with the velocity vector")
		assert.InEpsilon(t, wantH, sv.Position.Cross(sv.Velocity).Norm(), 1e-9, "angular momentum is conserved")
		assert.InDelta(t, m, sv.Anomaly.Mean, 1e-12)
	}
}

func TestTrueAnomaly(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		ecc, e    float64
		want      float64
		tolerance float64
	}{
		{name: "circular identity", ecc: 1.3, e: 0, want: 1.3, tolerance: 1e-12},
		{name: "periapsis", ecc: 0, e: 0.9, want: 0, tolerance: 1e-12},
		{name: "apoapsis", ecc: math.Pi, e: 0.985, want: math.Pi, tolerance: 1e-9},
		{name: "apoapsis near parabolic", ecc: math.Pi, e: 1 - 1e-15, want: math.Pi, tolerance: 1e-6},
		{name: "quadrant four", ecc: 3 * math.Pi / 2, e: 0.5, want: 2*math.Pi - 2*math.Atan(math.Sqrt(3)), tolerance: 1e-12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := orbit.TrueAnomaly(tt.ecc, tt.e)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, tt.tolerance)
		})
	}
}

func TestOrientation_IsRotation(t *testing.T) {
	t.Parallel()

	rot := orbit.Orientation(s2Like(t))

	var product mat.Dense
	product.Mul(rot.T(), rot)
	assert.True(t, mat.EqualApprox(&product, mat.NewDiagDense(3, []float64{1, 1, 1}), 1e-12))
	assert.InDelta(t, 1.0, mat.Det(rot), 1e-12)
}
