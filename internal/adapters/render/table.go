// Package render writes command output as aligned tables.
package render

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/termenv"
)

// Table collects rows and renders them. Interactive tables get rounded
// borders and color; linear tables are plain aligned columns.
type Table struct {
	headers     []string
	rows        [][]string
	interactive bool
}

// NewTable returns a table with the given column headers.
func NewTable(interactive bool, headers ...string) *Table {
	return &Table{headers: headers, interactive: interactive}
}

// Row appends one row. Missing cells render empty.
func (t *Table) Row(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Render writes the table followed by a newline.
func (t *Table) Render(w io.Writer) error {
	r := lipgloss.NewRenderer(w)
	if !t.interactive {
		r.SetColorProfile(termenv.Ascii)
	}

	tbl := table.New().
		Headers(t.headers...).
		Rows(t.rows...).
		StyleFunc(func(row, col int) lipgloss.Style { return t.cellStyle(r, row, col) })

	if t.interactive {
		tbl = tbl.Border(lipgloss.RoundedBorder()).BorderStyle(r.NewStyle().Foreground(colorSlate))
	} else {
		tbl = tbl.Border(lipgloss.HiddenBorder()).
			BorderTop(false).BorderBottom(false).
			BorderLeft(false).BorderRight(false).
			BorderHeader(false).BorderColumn(false)
	}

	_, err := io.WriteString(w, tbl.String()+"\n")
	return err
}
