package app

import (
	"context"
	"fmt"
	"strconv"

	"go.trai.ch/orrery/internal/adapters/export" //nolint:depguard // JSONL output
	"go.trai.ch/orrery/internal/adapters/render" //nolint:depguard // output formatting
	"go.trai.ch/orrery/internal/core/domain"
	"go.trai.ch/orrery/internal/engine/precession"
	"go.trai.ch/zerr"
)

// PrecessOptions configuration for the Precess method.
type PrecessOptions struct {
	// Orbits is the number of orbits in the trace.
	Orbits int
	// Samples is the number of positions sampled per orbit.
	Samples int
	// Strict fails instead of flagging an estimate outside the validity limits.
	Strict bool
	// JSONL writes the trace as JSON Lines instead of a table.
	JSONL bool
}

// Precess reports the apsidal precession of a body and traces its rosette.
func (a *App) Precess(ctx context.Context, bodyID string, opts PrecessOptions) error {
	catalog, err := a.catalog()
	if err != nil {
		return err
	}
	body, err := catalog.Lookup(bodyID)
	if err != nil {
		return err
	}

	limits := precession.LimitsFromSettings(a.settings.Precession)
	limits.Strict = limits.Strict || opts.Strict
	model := precession.NewModel(limits, a.calculator())

	ctx, span := a.tracer.Start(ctx, "precess")
	defer span.End()
	span.SetAttribute("body", bodyID)

	est, err := model.ForBody(body, a.consts)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !est.Valid {
		a.logger.Warn(fmt.Sprintf("%s: %s; treat the trace as qualitative", bodyID, est.Reason))
	}

	trace, err := model.Trace(ctx, body.Elements, est, opts.Orbits, opts.Samples)
	if err != nil {
		span.RecordError(err)
		return zerr.With(err, "body", bodyID)
	}

	if opts.JSONL {
		w := export.NewWriter(a.stdout)
		if err := w.WriteTrace(trace); err != nil {
			return err
		}
		return w.Flush()
	}

	perCentury := est.ArcsecondsPerCentury(body.Elements.Period(), a.consts.DaysPerYear)
	_, err = fmt.Fprintf(a.stdout,
		"%s around %s: Δφ = %s per orbit (%.3f″/century), periapsis %s Rs, %s\n",
		bodyID, body.Central.Name, formatAngle(est.PerOrbit), perCentury,
		formatPeriapsisRs(est.PeriapsisRs), validity(est))
	if err != nil {
		return err
	}

	tbl := render.NewTable(a.interactive(), "ORBIT", "ROTATION", "ω", "SAMPLES")
	for _, o := range trace.Orbits {
		tbl.Row(
			strconv.Itoa(o.Index),
			formatAngle(o.Rotation),
			formatFloat(domain.Degrees(domain.NormalizeAngle(body.Elements.ArgPeriapsis()+o.Rotation)), 4)+"°",
			strconv.Itoa(len(o.Positions)),
		)
	}
	if err := tbl.Render(a.stdout); err != nil {
		return err
	}
	_, err = fmt.Fprintf(a.stdout, "accumulated after %d orbits: %s\n", opts.Orbits, formatAngle(est.Accumulated(opts.Orbits)))
	return err
}

func validity(est precession.Estimate) string {
	if est.Valid {
		return "within first-order validity"
	}
	return "flagged: " + est.Reason
}

func formatPeriapsisRs(rs float64) string {
	if rs >= 1e6 {
		return strconv.FormatFloat(rs, 'e', 2, 64)
	}
	return strconv.FormatFloat(rs, 'f', 1, 64)
}
