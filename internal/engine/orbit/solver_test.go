package orbit_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/orrery/internal/core/domain"
	"go.trai.ch/orrery/internal/engine/orbit"
	"go.trai.ch/zerr"
)

// keplerResidual returns E - e·sin(E) - M wrapped into [-π, π].
func keplerResidual(ecc, e, m float64) float64 {
	return math.Remainder(ecc-e*math.Sin(ecc)-m, 2*math.Pi)
}

func TestSolver_ResidualGrid(t *testing.T) {
	t.Parallel()

	solver := orbit.DefaultSolver()
	eccentricities := []float64{0, 0.001, 0.1, 0.3, 0.5, 0.7, 0.8, 0.80001, 0.9, 0.95, 0.967, 0.98, 0.985}

	for _, e := range eccentricities {
		t.Run(fmt.Sprintf("e=%g", e), func(t *testing.T) {
			t.Parallel()

			const samples = 2000
			ms := make([]float64, 0, samples+4)
			for i := range samples {
				ms = append(ms, 2*math.Pi*float64(i)/samples)
			}
			ms = append(ms, 1e-12, 1e-6, 2*math.Pi-1e-6, 2*math.Pi-1e-12)

			for _, m := range ms {
				ecc, err := solver.Solve(m, e)
				require.NoError(t, err, "M=%v", m)
				assert.Less(t, math.Abs(keplerResidual(ecc, e, m)), 1e-9, "M=%v E=%v", m, ecc)
				assert.GreaterOrEqual(t, ecc, 0.0)
				assert.Less(t, ecc, 2*math.Pi)
			}
		})
	}
}

func TestSolver_NormalizesMeanAnomaly(t *testing.T) {
	t.Parallel()

	solver := orbit.DefaultSolver()

	base, err := solver.Solve(1.2, 0.6)
	require.NoError(t, err)

	for _, k := range []float64{-3, -1, 1, 10} {
		got, err := solver.Solve(1.2+k*2*math.Pi, 0.6)
		require.NoError(t, err)
		assert.InDelta(t, base, got, 1e-9)
	}
}

func TestSolver_CircularOrbit(t *testing.T) {
	t.Parallel()

	ecc, err := orbit.DefaultSolver().Solve(2.5, 0)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, ecc, 0)
}

func TestSolver_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		solver  orbit.Solver
		m, e    float64
		wantErr error
		msg     string
	}{
		{
			name:    "parabolic",
			solver:  orbit.DefaultSolver(),
			m:       1,
			e:       1,
			wantErr: domain.ErrInvalidElements,
		},
		{
			name:    "negative eccentricity",
			solver:  orbit.DefaultSolver(),
			m:       1,
			e:       -0.2,
			wantErr: domain.ErrInvalidElements,
		},
		{
			name:    "nan mean anomaly",
			solver:  orbit.DefaultSolver(),
			m:       math.NaN(),
			e:       0.5,
			wantErr: domain.ErrNumericConvergence,
		},
		{
			name:    "iteration budget exhausted",
			solver:  orbit.NewSolver(1e-10, 2),
			m:       0.01,
			e:       0.985,
			wantErr: domain.ErrNumericConvergence,
			msg:     "kepler solver did not converge",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ecc, err := tt.solver.Solve(tt.m, tt.e)
			require.ErrorIs(t, err, tt.wantErr)
			if tt.msg != "" {
				assert.ErrorContains(t, err, tt.msg)
			}
			assert.Zero(t, ecc, "no value may accompany an error")
		})
	}
}

func TestSolver_ConvergenceErrorMetadata(t *testing.T) {
	t.Parallel()

	_, err := orbit.NewSolver(1e-10, 2).Solve(0.01, 0.985)
	require.ErrorIs(t, err, domain.ErrNumericConvergence)

	var zErr *zerr.Error
	require.ErrorAs(t, err, &zErr)
	meta := zErr.Metadata()
	assert.Equal(t, 2, meta["iterations"])
	assert.Contains(t, meta, "last_step")
	residual, ok := meta["residual"].(float64)
	require.True(t, ok, "residual is attached as a float")
	assert.Positive(t, residual)
}

func TestNewSolver_Defaults(t *testing.T) {
	t.Parallel()

	s := orbit.NewSolver(0, -1)
	assert.InDelta(t, orbit.DefaultTolerance, s.Tolerance(), 0)
}
