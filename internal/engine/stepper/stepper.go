// Package stepper produces lazy, restartable sequences of mean-anomaly samples.
//
// Samples advance by a fixed increment of mean anomaly. Mean anomaly is linear
// in time, so each step also covers the same span of time; the apparent speed
// up near periapsis comes from the M→E→ν conversion downstream.
package stepper

import (
	"iter"
	"math"
	"time"

	"go.trai.ch/orrery/internal/core/domain"
	"go.trai.ch/zerr"
)

// Sample is one step of the sequence.
type Sample struct {
	Index       int64
	MeanAnomaly float64
	Time        time.Time
}

// Stepper yields samples for one element set. It holds no mutable state, so a
// sequence can be abandoned at any point and rebuilt from the same index.
type Stepper struct {
	epoch  time.Time
	period float64
	step   float64
}

// New returns a stepper that divides one orbit into stepsPerOrbit samples.
func New(el domain.Elements, stepsPerOrbit int) (Stepper, error) {
	if stepsPerOrbit < 1 {
		return Stepper{}, zerr.With(zerr.Wrap(domain.ErrInvalidStep, "steps per orbit must be positive"), "steps", stepsPerOrbit)
	}
	return NewWithStep(el, 2*math.Pi/float64(stepsPerOrbit))
}

// NewWithStep returns a stepper advancing by meanStep radians per sample.
func NewWithStep(el domain.Elements, meanStep float64) (Stepper, error) {
	if !(meanStep > 0) || math.IsInf(meanStep, 0) {
		return Stepper{}, zerr.With(zerr.Wrap(domain.ErrInvalidStep, "mean anomaly step must be positive and finite"), "step", meanStep)
	}
	return Stepper{
		epoch:  el.PeriapsisEpoch(),
		period: el.Period(),
		step:   meanStep,
	}, nil
}

// Step returns the mean anomaly increment in radians.
func (s Stepper) Step() float64 { return s.step }

// StepsPerOrbit returns the number of samples in one period, rounded down.
func (s Stepper) StepsPerOrbit() int64 {
	return int64(math.Floor(2*math.Pi/s.step + 1e-9))
}

// At returns sample n. It depends only on the periapsis epoch, the period and n.
// Sample 0 is the periapsis passage at the epoch.
func (s Stepper) At(n int64) Sample {
	m := float64(n) * s.step
	return Sample{
		Index:       n,
		MeanAnomaly: domain.NormalizeAngle(m),
		Time:        domain.AddDays(s.epoch, m/(2*math.Pi)*s.period),
	}
}

// IndexAt returns the index of the last sample at or before t.
func (s Stepper) IndexAt(t time.Time) int64 {
	m := 2 * math.Pi * domain.DaysBetween(s.epoch, t) / s.period
	return int64(math.Floor(m / s.step))
}

// From returns an infinite sequence starting at sample start.
func (s Stepper) From(start int64) iter.Seq[Sample] {
	return func(yield func(Sample) bool) {
		for n := start; ; n++ {
			if !yield(s.At(n)) {
				return
			}
		}
	}
}

// All returns an infinite sequence starting at the periapsis epoch.
func (s Stepper) All() iter.Seq[Sample] {
	return s.From(0)
}

// Take returns count samples starting at start.
func (s Stepper) Take(start, count int64) iter.Seq[Sample] {
	return func(yield func(Sample) bool) {
		for n := start; n < start+count; n++ {
			if !yield(s.At(n)) {
				return
			}
		}
	}
}

// Orbit returns the StepsPerOrbit samples starting at index k·StepsPerOrbit.
// For steppers built with New this is orbit k from periapsis up to, but
// excluding, the next passage.
func (s Stepper) Orbit(k int64) iter.Seq[Sample] {
	per := s.StepsPerOrbit()
	return s.Take(k*per, per)
}
