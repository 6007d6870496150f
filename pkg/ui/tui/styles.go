package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette
var (
	colorAccent  = lipgloss.Color("#E1306C")
	colorAccent2 = lipgloss.Color("#833AB4")
	colorGood    = lipgloss.Color("#39FF14")
	colorNotice  = lipgloss.Color("#FCAF45")
	colorBad     = lipgloss.Color("#FF3B3B")
	colorInk     = lipgloss.Color("#0E0B16")
	colorPanel   = lipgloss.Color("#1B1626")
	colorText    = lipgloss.Color("#C8C3D4")
	colorFaint   = lipgloss.Color("#5E5870")
)

var (
	baseStyle = lipgloss.NewStyle().Background(colorInk).Foreground(colorText)

	logoStyle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true).
			Padding(1, 0).
			Align(lipgloss.Center)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent2).
			Background(colorPanel).
			Padding(1, 2)

	titleStyle = lipgloss.NewStyle().
			Background(colorAccent2).
			Foreground(colorInk).
			Bold(true).
			Padding(0, 1)

	statsLabelStyle = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	statsValueStyle = lipgloss.NewStyle().Foreground(colorNotice)

	successStyle = lipgloss.NewStyle().Foreground(colorGood).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(colorBad).Bold(true)

	// harvested and skipped rows in the recent posts panel
	itemDoneStyle    = lipgloss.NewStyle().Foreground(colorGood).PaddingLeft(1)
	itemSkippedStyle = lipgloss.NewStyle().Foreground(colorNotice).PaddingLeft(1)

	logTimestampStyle = lipgloss.NewStyle().Foreground(colorFaint)
	logMessageStyle   = lipgloss.NewStyle().Foreground(colorText)

	progressEmptyStyle = lipgloss.NewStyle().Foreground(colorFaint)

	helpStyle = lipgloss.NewStyle().Foreground(colorFaint).Padding(1, 0, 0, 2)

	violationStyle = lipgloss.NewStyle().
			Background(colorBad).
			Foreground(colorInk).
			Bold(true).
			Padding(0, 2)
)

// tab-open window usage thresholds, in percent
var rateLimitBands = []struct {
	min   float64
	style lipgloss.Style
}{
	{90, lipgloss.NewStyle().Foreground(colorBad)},
	{70, lipgloss.NewStyle().Foreground(colorNotice)},
	{0, lipgloss.NewStyle().Foreground(colorGood)},
}

// GetRateLimitStyle colours the limiter gauge by how full the window is
func GetRateLimitStyle(usage float64) lipgloss.Style {
	for _, band := range rateLimitBands {
		if usage >= band.min {
			return band.style
		}
	}
	return rateLimitBands[len(rateLimitBands)-1].style
}
