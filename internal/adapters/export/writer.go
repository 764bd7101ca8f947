// Package export writes state samples and precession traces as JSON Lines,
// one self-describing record per line, for consumption by external renderers.
package export

import (
	"bufio"
	"encoding/json"
	"io"
	"time"

	"go.trai.ch/orrery/internal/core/domain"
	"go.trai.ch/zerr"
)

// Record kinds written in the "kind" field.
const (
	KindState      = "state"
	KindPrecession = "precession"
	KindOrbit      = "orbit"
)

// StateRecord is one sampled state vector.
type StateRecord struct {
	Kind  string    `json:"kind"`
	Body  string    `json:"body"`
	Index int64     `json:"index"`
	Time  time.Time `json:"time"`

	domain.StateVector
}

// PrecessionRecord heads a precession trace.
type PrecessionRecord struct {
	Kind        string  `json:"kind"`
	Body        string  `json:"body"`
	PerOrbitRad float64 `json:"per_orbit_rad"`
	PerOrbitDeg float64 `json:"per_orbit_deg"`
	Valid       bool    `json:"valid"`
	Reason      string  `json:"reason,omitempty"`
	Orbits      int     `json:"orbits"`
}

// OrbitRecord is one orbit of a precession trace.
type OrbitRecord struct {
	Kind string `json:"kind"`
	Body string `json:"body"`

	domain.OrbitTrace
}

// Writer encodes records to an underlying stream. It is not safe for
// concurrent use.
type Writer struct {
	bw  *bufio.Writer
	enc *json.Encoder
	n   int
}

// NewWriter returns a Writer buffering into w. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	bw := bufio.NewWriter(w)
	return &Writer{bw: bw, enc: json.NewEncoder(bw)}
}

// WriteState writes one state sample of body.
func (w *Writer) WriteState(body string, index int64, t time.Time, state domain.StateVector) error {
	return w.write(StateRecord{Kind: KindState, Body: body, Index: index, Time: t.UTC(), StateVector: state})
}

// WriteTrace writes a header line followed by one line per orbit.
func (w *Writer) WriteTrace(trace domain.PrecessionTrace) error {
	head := PrecessionRecord{
		Kind:        KindPrecession,
		Body:        trace.BodyID,
		PerOrbitRad: trace.PerOrbit,
		PerOrbitDeg: domain.Degrees(trace.PerOrbit),
		Valid:       trace.Valid,
		Reason:      trace.Reason,
		Orbits:      len(trace.Orbits),
	}
	if err := w.write(head); err != nil {
		return err
	}
	for _, orbit := range trace.Orbits {
		if err := w.write(OrbitRecord{Kind: KindOrbit, Body: trace.BodyID, OrbitTrace: orbit}); err != nil {
			return err
		}
	}
	return nil
}

// Records returns the number of lines written so far.
func (w *Writer) Records() int { return w.n }

// Flush writes buffered lines to the underlying stream.
func (w *Writer) Flush() error {
	if err := w.bw.Flush(); err != nil {
		return zerr.Wrap(err, domain.ErrExportFailed.Error())
	}
	return nil
}

func (w *Writer) write(rec any) error {
	if err := w.enc.Encode(rec); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrExportFailed.Error()), "line", w.n+1)
	}
	w.n++
	return nil
}
