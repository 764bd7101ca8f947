package app

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"time"

	"go.trai.ch/orrery/internal/adapters/export" //nolint:depguard // JSONL output
	"go.trai.ch/orrery/internal/adapters/render" //nolint:depguard // output formatting
	"go.trai.ch/orrery/internal/core/domain"
	"go.trai.ch/orrery/internal/engine/orbit"
	"go.trai.ch/orrery/internal/engine/stepper"
	"go.trai.ch/zerr"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// OrbitOptions configuration for the Orbit method.
type OrbitOptions struct {
	// Steps is the number of samples per orbit.
	Steps int
	// Orbits is the number of orbits to sample.
	Orbits int
	// From is the index of the first sample; sample 0 is the periapsis passage.
	From int64
	// At starts at the last sample at or before this time and overrides From.
	At time.Time
	// Elements is a cache key whose newest observation supplies the elements.
	Elements string
	// JSONL writes samples as JSON Lines instead of a table.
	JSONL bool
}

// OrbitSummary aggregates one sampling run.
type OrbitSummary struct {
	Samples    int
	MinRadius  float64
	MaxRadius  float64
	MeanRadius float64
	StdRadius  float64
	MeanSpeed  float64
	// AreaSpread is the coefficient of variation of the areas swept between
	// consecutive samples. Equal time steps sweep equal areas, so it stays
	// close to zero for a well-converged solver.
	AreaSpread float64
}

// Orbit samples the state vectors of a body over one or more orbits.
func (a *App) Orbit(ctx context.Context, bodyID string, opts OrbitOptions) error {
	if opts.Steps < 1 || opts.Orbits < 1 {
		return zerr.With(zerr.With(zerr.Wrap(domain.ErrInvalidStep, "steps and orbits must be positive"),
			"steps", opts.Steps), "orbits", opts.Orbits)
	}

	el, err := a.elementsFor(ctx, bodyID, opts.Elements)
	if err != nil {
		return err
	}

	st, err := stepper.New(el, opts.Steps)
	if err != nil {
		return err
	}
	start := opts.From
	if !opts.At.IsZero() {
		start = st.IndexAt(opts.At)
	}

	calc := a.calculator()
	count := int64(opts.Steps) * int64(opts.Orbits)
	states := make([]domain.StateVector, 0, count)

	var (
		jsonl *export.Writer
		tbl   *render.Table
	)
	if opts.JSONL {
		jsonl = export.NewWriter(a.stdout)
	} else {
		tbl = render.NewTable(a.interactive(), "N", "TIME (UTC)", "M", "ν", "R [AU]", "V [km/s]", "X", "Y", "Z")
	}

	for sample := range st.Take(start, count) {
		if err := ctx.Err(); err != nil {
			return err
		}
		sv, err := calc.StateAtMean(el, sample.MeanAnomaly)
		if err != nil {
			return zerr.With(err, "sample", sample.Index)
		}
		states = append(states, sv)

		if jsonl != nil {
			if err := jsonl.WriteState(el.ID(), sample.Index, sample.Time, sv); err != nil {
				return err
			}
			continue
		}
		tbl.Row(
			strconv.FormatInt(sample.Index, 10),
			sample.Time.UTC().Format("2006-01-02 15:04"),
			formatFloat(domain.Degrees(sv.Anomaly.Mean), 2),
			formatFloat(domain.Degrees(sv.Anomaly.True), 2),
			formatFloat(sv.Radius, 5),
			formatFloat(a.consts.KilometersPerSecond(sv.Speed), 3),
			formatFloat(sv.Position.X, 5),
			formatFloat(sv.Position.Y, 5),
			formatFloat(sv.Position.Z, 5),
		)
	}

	summary := Summarize(states)
	if jsonl != nil {
		if err := jsonl.Flush(); err != nil {
			return err
		}
		a.logger.Info(fmt.Sprintf("wrote %d samples of %s", jsonl.Records(), el.ID()))
		return nil
	}

	if err := tbl.Render(a.stdout); err != nil {
		return err
	}
	return a.printSummary(a.stdout, summary)
}

func (a *App) printSummary(w io.Writer, s OrbitSummary) error {
	_, err := fmt.Fprintf(w,
		"%d samples  r=[%.5f, %.5f] AU  mean %.5f ± %.5f AU  mean speed %.3f km/s  swept-area spread %.2e\n",
		s.Samples, s.MinRadius, s.MaxRadius, s.MeanRadius, s.StdRadius,
		a.consts.KilometersPerSecond(s.MeanSpeed), s.AreaSpread)
	return err
}

// Summarize computes radius, speed and swept-area statistics over consecutive states.
func Summarize(states []domain.StateVector) OrbitSummary {
	if len(states) == 0 {
		return OrbitSummary{}
	}

	radii := make([]float64, len(states))
	speeds := make([]float64, len(states))
	for i, sv := range states {
		radii[i] = sv.Radius
		speeds[i] = sv.Speed
	}

	s := OrbitSummary{
		Samples:   len(states),
		MinRadius: floats.Min(radii),
		MaxRadius: floats.Max(radii),
		MeanSpeed: stat.Mean(speeds, nil),
	}
	if len(states) > 1 {
		s.MeanRadius, s.StdRadius = stat.MeanStdDev(radii, nil)
	} else {
		s.MeanRadius = radii[0]
	}

	if len(states) > 2 {
		areas := make([]float64, 0, len(states)-1)
		for i := 1; i < len(states); i++ {
			areas = append(areas, orbit.SweptArea(states[i-1], states[i]))
		}
		mean, std := stat.MeanStdDev(areas, nil)
		if mean > 0 {
			s.AreaSpread = std / mean
		}
	}
	return s
}

// elementsFor returns the catalog elements of bodyID, or elements built from
// the newest observation under key when key is set.
func (a *App) elementsFor(ctx context.Context, bodyID, key string) (domain.Elements, error) {
	if key == "" {
		catalog, err := a.catalog()
		if err != nil {
			return domain.Elements{}, err
		}
		body, err := catalog.Lookup(bodyID)
		if err != nil {
			return domain.Elements{}, err
		}
		return body.Elements, nil
	}

	cacheKey, err := domain.ParseCacheKey(key)
	if err != nil {
		return domain.Elements{}, err
	}
	store, err := a.openStore()
	if err != nil {
		return domain.Elements{}, err
	}
	rec, err := store.Load(ctx, cacheKey)
	if err != nil {
		return domain.Elements{}, zerr.With(err, "elements", key)
	}

	// Records are sorted by time; the newest observation with orbital fields wins.
	var lastErr error
	for _, obs := range slices.Backward(rec.Records) {
		el, err := domain.ElementsFromObservation(bodyID, obs)
		if err == nil {
			return el, nil
		}
		lastErr = err
	}
	return domain.Elements{}, zerr.With(lastErr, "elements", key)
}
