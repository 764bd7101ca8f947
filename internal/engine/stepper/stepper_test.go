package stepper_test

import (
	"math"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/orrery/internal/core/domain"
	"go.trai.ch/orrery/internal/engine/orbit"
	"go.trai.ch/orrery/internal/engine/stepper"
)

var epoch = time.Date(2018, time.May, 19, 0, 0, 0, 0, time.UTC)

func elements(t *testing.T, e, a, periodDays float64) domain.Elements {
	t.Helper()
	el, err := domain.NewElements(domain.ElementParams{
		ID: "body", SemiMajorAxis: a, Eccentricity: e, PeriodDays: periodDays,
		InclinationDeg: 134.567, NodeDeg: 228.171, ArgPeriapsisDeg: 66.263,
		PeriapsisEpoch: epoch,
	})
	require.NoError(t, err)
	return el
}

func TestStepper_At(t *testing.T) {
	t.Parallel()

	s, err := stepper.New(elements(t, 0.884, 1026, 4000), 8)
	require.NoError(t, err)

	first := s.At(0)
	assert.Equal(t, int64(0), first.Index)
	assert.InDelta(t, 0, first.MeanAnomaly, 0)
	assert.True(t, epoch.Equal(first.Time))

	quarter := s.At(2)
	assert.InDelta(t, math.Pi/2, quarter.MeanAnomaly, 1e-12)
	assert.True(t, epoch.Add(1000*24*time.Hour).Equal(quarter.Time))

	nextOrbit := s.At(8)
	assert.InDelta(t, 0, nextOrbit.MeanAnomaly, 1e-12)
	assert.True(t, epoch.Add(4000*24*time.Hour).Equal(nextOrbit.Time))

	before := s.At(-1)
	assert.InDelta(t, 7*math.Pi/4, before.MeanAnomaly, 1e-12)
	assert.True(t, before.Time.Before(epoch))
}

func TestStepper_ResumeIsDeterministic(t *testing.T) {
	t.Parallel()

	s, err := stepper.New(elements(t, 0.5, 2, 700), 100)
	require.NoError(t, err)

	var first []stepper.Sample
	for sample := range s.All() {
		first = append(first, sample)
		if len(first) == 37 {
			break
		}
	}

	// Rebuild from nothing but the parameters and the step count.
	rebuilt, err := stepper.New(elements(t, 0.5, 2, 700), 100)
	require.NoError(t, err)
	resumed := slices.Collect(rebuilt.Take(37, 20))
	straight := slices.Collect(s.Take(0, 57))

	assert.Equal(t, straight[:37], first)
	assert.Equal(t, straight[37:], resumed)
}

func TestStepper_IndexAt(t *testing.T) {
	t.Parallel()

	s, err := stepper.New(elements(t, 0.5, 2, 700), 100)
	require.NoError(t, err)

	for _, n := range []int64{0, 1, 99, 100, 12345, -3} {
		sample := s.At(n)
		assert.Equal(t, n, s.IndexAt(sample.Time.Add(time.Second)), "index %d", n)
	}
}

func TestStepper_Orbit(t *testing.T) {
	t.Parallel()

	s, err := stepper.New(elements(t, 0.3, 1, 365), 12)
	require.NoError(t, err)

	samples := slices.Collect(s.Orbit(3))
	require.Len(t, samples, 12)
	assert.Equal(t, int64(36), samples[0].Index)
	assert.InDelta(t, 0, samples[0].MeanAnomaly, 1e-12)
}

func TestStepper_LongPeriod(t *testing.T) {
	t.Parallel()

	// Sedna-like period far beyond the time.Duration range.
	period := 11390 * 365.25
	s, err := stepper.New(elements(t, 0.85, 506, period), 4)
	require.NoError(t, err)

	prev := s.At(0).Time
	for sample := range s.Take(1, 8) {
		require.True(t, sample.Time.After(prev))
		prev = sample.Time
	}
	assert.InDelta(t, period, domain.DaysBetween(epoch, s.At(4).Time), 1e-3)
}

func TestStepper_InvalidStep(t *testing.T) {
	t.Parallel()

	el := elements(t, 0.1, 1, 365)

	_, err := stepper.New(el, 0)
	require.ErrorIs(t, err, domain.ErrInvalidStep)

	for _, step := range []float64{0, -0.1, math.NaN(), math.Inf(1)} {
		_, err := stepper.NewWithStep(el, step)
		require.ErrorIs(t, err, domain.ErrInvalidStep, "step %v", step)
	}
}

// TestEqualAreas asserts Kepler's second law on the sampled states: a fixed
// mean anomaly step sweeps the same area near periapsis and near apoapsis.
func TestEqualAreas(t *testing.T) {
	t.Parallel()

	for _, e := range []float64{0.2056, 0.884, 0.985} {
		el := elements(t, e, 1026, 16.05*365.25)
		const steps = 1_000_000
		s, err := stepper.New(el, steps)
		require.NoError(t, err)
		calc := orbit.NewCalculator(orbit.DefaultSolver())

		area := func(n int64) float64 {
			from, err := calc.StateAtMean(el, s.At(n).MeanAnomaly)
			require.NoError(t, err)
			to, err := calc.StateAtMean(el, s.At(n+1).MeanAnomaly)
			require.NoError(t, err)
			return orbit.SweptArea(from, to)
		}

		nearPeriapsis := area(0)
		nearApoapsis := area(steps / 2)
		exact := math.Pi * el.SemiMajorAxis() * el.SemiMinorAxis() / steps

		assert.InEpsilon(t, nearApoapsis, nearPeriapsis, 1e-4, "e=%v", e)
		assert.InEpsilon(t, exact, nearPeriapsis, 1e-4, "e=%v", e)
	}
}
