package domain

import "math"

// Vector3 is a Cartesian vector.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns v+o.
func (v Vector3) Add(o Vector3) Vector3 {
	return Vector3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Sub returns v-o.
func (v Vector3) Sub(o Vector3) Vector3 {
	return Vector3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Scale returns v·s.
func (v Vector3) Scale(s float64) Vector3 {
	return Vector3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Dot returns the scalar product.
func (v Vector3) Dot(o Vector3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Cross returns the vector product v×o.
func (v Vector3) Cross(o Vector3) Vector3 {
	return Vector3{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

// Norm returns the Euclidean length.
func (v Vector3) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// IsFinite reports whether every component is finite.
func (v Vector3) IsFinite() bool {
	for _, c := range [...]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// AnomalyState holds the three anomalies of one sample, in radians.
type AnomalyState struct {
	Mean      float64 `json:"mean"`
	Eccentric float64 `json:"eccentric"`
	True      float64 `json:"true"`
}

// StateVector is the position and velocity of a body at one sample.
// Position is in AU, velocity in AU/day.
type StateVector struct {
	Position Vector3      `json:"position"`
	Velocity Vector3      `json:"velocity"`
	Radius   float64      `json:"radius"`
	Speed    float64      `json:"speed"`
	Anomaly  AnomalyState `json:"anomaly"`
}

// OrbitTrace is one simulated orbit of a precession trace.
type OrbitTrace struct {
	Index     int       `json:"index"`
	Rotation  float64   `json:"rotation"`
	Positions []Vector3 `json:"positions"`
}

// PrecessionTrace is the rosette produced by accumulating apsidal precession.
type PrecessionTrace struct {
	BodyID   string       `json:"body"`
	PerOrbit float64      `json:"per_orbit"`
	Valid    bool         `json:"valid"`
	Reason   string       `json:"reason,omitempty"`
	Orbits   []OrbitTrace `json:"orbits"`
}

// TotalRotation returns the rotation of the last orbit in the trace.
func (t PrecessionTrace) TotalRotation() float64 {
	if len(t.Orbits) == 0 {
		return 0
	}
	return t.Orbits[len(t.Orbits)-1].Rotation
}
