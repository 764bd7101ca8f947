package render

import "github.com/charmbracelet/lipgloss"

var (
	colorIris  = lipgloss.Color("#5D3FD3")
	colorSlate = lipgloss.Color("#667085")
	colorGreen = lipgloss.Color("42")
	colorRed   = lipgloss.Color("196")
	colorAmber = lipgloss.Color("214")

	// statusColors colors well-known status words wherever they appear as a whole cell.
	statusColors = map[string]lipgloss.Color{
		"valid":       colorGreen,
		"ok":          colorGreen,
		"fetched":     colorGreen,
		"cached":      colorSlate,
		"absent":      colorSlate,
		"stale":       colorAmber,
		"unsupported": colorAmber,
		"flagged":     colorAmber,
		"corrupt":     colorRed,
		"failed":      colorRed,
	}
)

func (t *Table) cellStyle(r *lipgloss.Renderer, row, col int) lipgloss.Style {
	base := r.NewStyle().PaddingRight(2)
	if t.interactive {
		base = r.NewStyle().Padding(0, 1)
	}

	if row < 0 {
		return base.Bold(true).Foreground(colorIris)
	}
	if row < len(t.rows) && col < len(t.rows[row]) {
		if c, ok := statusColors[t.rows[row][col]]; ok {
			return base.Foreground(c)
		}
	}
	return base
}
