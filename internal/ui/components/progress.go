package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/geoquiz/internal/ui/theme"
)

// WeightBar renders a belief weight in [0,1] as a horizontal bar.
type WeightBar struct {
	Label      string
	LabelWidth int
	Weight     float64
	Width      int
}

// NewWeightBar creates a weight bar Width cells wide including the label
// and the percentage.
func NewWeightBar(label string, labelWidth int, weight float64, width int) WeightBar {
	return WeightBar{
		Label:      label,
		LabelWidth: labelWidth,
		Weight:     weight,
		Width:      width,
	}
}

// Cells returns the number of filled cells for a bar barWidth wide.
func (b WeightBar) Cells(barWidth int) int {
	filled := int(float64(barWidth)*b.Weight + 0.5)
	return max(0, min(filled, barWidth))
}

// View renders the bar.
func (b WeightBar) View() string {
	var result string

	if b.Label != "" {
		label := b.Label
		if pad := b.LabelWidth - lipgloss.Width(label); pad > 0 {
			label += strings.Repeat(" ", pad)
		}
		result += theme.Body.Render(label) + "  "
	}

	const percentWidth = 6 // "  100%"
	barWidth := b.Width - lipgloss.Width(result) - percentWidth
	if barWidth < 4 {
		barWidth = 4
	}

	filled := b.Cells(barWidth)
	result += theme.BarFilled.Render(strings.Repeat(" ", filled)) +
		theme.BarEmpty.Render(strings.Repeat(" ", barWidth-filled))

	result += theme.Label.Render(fmt.Sprintf("  %3d%%", int(b.Weight*100+0.5)))
	return result
}
