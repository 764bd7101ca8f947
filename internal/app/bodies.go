package app

import (
	"context"
	"fmt"
	"strconv"

	"go.trai.ch/orrery/internal/adapters/render" //nolint:depguard // output formatting
)

// Bodies prints the catalog with each body's first-order precession.
func (a *App) Bodies(_ context.Context) error {
	catalog, err := a.catalog()
	if err != nil {
		return err
	}
	model := a.precessionModel()

	tbl := render.NewTable(a.interactive(), "BODY", "CENTRAL", "A [AU]", "E", "PERIOD [d]", "PERIAPSIS [AU]", "Δφ/ORBIT", "VALIDITY", "NOTE")
	for _, body := range catalog.Bodies() {
		el := body.Elements
		est, err := model.ForBody(body, a.consts)
		if err != nil {
			return err
		}

		validity := "ok"
		if !est.Valid {
			validity = "flagged"
		}
		note := body.Description
		if body.Override != nil {
			note = fmt.Sprintf("%s (%s %g → %g)", note, body.Override.Field, body.Override.Original, body.Override.Adopted)
		}

		tbl.Row(
			el.ID(),
			body.Central.Name,
			strconv.FormatFloat(el.SemiMajorAxis(), 'g', 6, 64),
			strconv.FormatFloat(el.Eccentricity(), 'f', 4, 64),
			strconv.FormatFloat(el.Period(), 'g', 7, 64),
			strconv.FormatFloat(el.Periapsis(), 'g', 5, 64),
			formatAngle(est.PerOrbit),
			validity,
			note,
		)
	}
	return tbl.Render(a.stdout)
}
