package domain

import (
	"time"

	"go.trai.ch/zerr"
)

// CalibrationOverride records a literature value that was replaced to match an
// observation. Overrides are catalog data; nothing applies them implicitly.
type CalibrationOverride struct {
	Field    string
	Original float64
	Adopted  float64
	Reason   string
}

// Body is a catalog entry.
type Body struct {
	Elements    Elements
	Central     CentralBody
	Description string
	Reference   string
	Override    *CalibrationOverride
}

// Catalog is an immutable, ordered table of bodies.
type Catalog struct {
	bodies map[string]Body
	order  []string
}

// NewCatalog builds a catalog, rejecting duplicate ids.
func NewCatalog(bodies ...Body) (*Catalog, error) {
	c := &Catalog{
		bodies: make(map[string]Body, len(bodies)),
		order:  make([]string, 0, len(bodies)),
	}
	for _, b := range bodies {
		id := b.Elements.ID()
		if _, exists := c.bodies[id]; exists {
			return nil, zerr.With(zerr.Wrap(ErrInvalidElements, "duplicate catalog body"), "body", id)
		}
		c.bodies[id] = b
		c.order = append(c.order, id)
	}
	return c, nil
}

// Lookup returns the body with the given id.
func (c *Catalog) Lookup(id string) (Body, error) {
	b, ok := c.bodies[id]
	if !ok {
		return Body{}, zerr.With(zerr.Wrap(ErrUnknownBody, "not in catalog"), "body", id)
	}
	return b, nil
}

// Bodies returns the bodies in declaration order.
func (c *Catalog) Bodies() []Body {
	out := make([]Body, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.bodies[id])
	}
	return out
}

// With returns a new catalog extended by user-defined bodies.
func (c *Catalog) With(specs ...BodySpec) (*Catalog, error) {
	bodies := c.Bodies()
	for _, spec := range specs {
		el, err := NewElements(spec.Params)
		if err != nil {
			return nil, err
		}
		central := spec.Central
		if central == "" {
			central = CentralSun
		}
		cb, err := LookupCentralBody(central)
		if err != nil {
			return nil, zerr.With(err, "body", spec.Params.ID)
		}
		bodies = append(bodies, Body{Elements: el, Central: cb, Description: spec.Description})
	}
	return NewCatalog(bodies...)
}

// DefaultCatalog returns the built-in bodies.
func DefaultCatalog() (*Catalog, error) {
	consts := DefaultPhysicalConstants()
	centrals := CentralBodies()
	sun := centrals[CentralSun]
	sgra := centrals[CentralSgrAStar]

	entries := []struct {
		params      ElementParams
		central     CentralBody
		description string
		reference   string
		override    *CalibrationOverride
	}{
		{
			params: ElementParams{
				ID: "mercury", SemiMajorAxis: 0.387098, Eccentricity: 0.205630, PeriodDays: 87.9691,
				InclinationDeg: 7.005, NodeDeg: 48.331, ArgPeriapsisDeg: 29.124,
				PeriapsisEpoch: time.Date(1999, time.November, 19, 19, 0, 0, 0, time.UTC),
			},
			central:     sun,
			description: "Innermost planet, classic test of relativistic perihelion advance",
			reference:   "JPL approximate Keplerian elements, J2000",
		},
		{
			params: ElementParams{
				ID: "earth", SemiMajorAxis: 1.00000261, Eccentricity: 0.01671123, PeriodDays: 365.256363,
				ArgPeriapsisDeg: 102.93768,
				PeriapsisEpoch:  time.Date(2000, time.January, 3, 5, 18, 0, 0, time.UTC),
			},
			central:     sun,
			description: "Earth in the ecliptic frame",
			reference:   "JPL approximate Keplerian elements, J2000",
		},
		{
			params: ElementParams{
				ID: "halley", SemiMajorAxis: 17.834, Eccentricity: 0.96714, PeriodDays: consts.YearsToDays(75.32),
				InclinationDeg: 162.26, NodeDeg: 58.42, ArgPeriapsisDeg: 111.33,
				PeriapsisEpoch: time.Date(1986, time.February, 9, 11, 0, 0, 0, time.UTC),
			},
			central:     sun,
			description: "1P/Halley, retrograde short-period comet",
			reference:   "JPL Small-Body Database, epoch 1986",
		},
		{
			params: ElementParams{
				ID: "sedna", SemiMajorAxis: 506, Eccentricity: 0.8496, PeriodDays: consts.YearsToDays(11390),
				InclinationDeg: 11.93, NodeDeg: 144.25, ArgPeriapsisDeg: 311.35,
				PeriapsisEpoch: time.Date(2076, time.March, 9, 0, 0, 0, 0, time.UTC),
			},
			central:     sun,
			description: "90377 Sedna, detached trans-Neptunian object",
			reference:   "JPL Small-Body Database (approximate)",
		},
		{
			params: ElementParams{
				ID: "s2", SemiMajorAxis: 1026, Eccentricity: 0.884649, PeriodDays: consts.YearsToDays(16.0455),
				InclinationDeg: 134.567, NodeDeg: 228.171, ArgPeriapsisDeg: 66.263,
				PeriapsisEpoch: time.Date(2018, time.May, 19, 0, 0, 0, 0, time.UTC),
			},
			central:     sgra,
			description: "S2 (S0-2), star orbiting Sagittarius A*",
			reference:   "GRAVITY Collaboration 2020, A&A 636, L5",
		},
		{
			params: ElementParams{
				ID: "s-he", SemiMajorAxis: 800, Eccentricity: 0.985, PeriodDays: consts.YearsToDays(11.10),
				PeriapsisEpoch: time.Date(2018, time.May, 19, 0, 0, 0, 0, time.UTC),
			},
			central:     sgra,
			description: "High-eccentricity S-star analogue in a planar demonstration frame",
			reference:   "Calibrated against observed periapsis velocity",
			override: &CalibrationOverride{
				Field:    "semi_major_axis",
				Original: 520,
				Adopted:  800,
				Reason:   "adjusted to reproduce the observed periapsis velocity",
			},
		},
	}

	bodies := make([]Body, 0, len(entries))
	for _, e := range entries {
		el, err := NewElements(e.params)
		if err != nil {
			return nil, err
		}
		bodies = append(bodies, Body{
			Elements:    el,
			Central:     e.central,
			Description: e.description,
			Reference:   e.reference,
			Override:    e.override,
		})
	}
	return NewCatalog(bodies...)
}
