package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const logo = `╦╔═╗╦ ╦╔═╗╦═╗╦  ╦╔═╗╔═╗╔╦╗
║║ ╦╠═╣╠═╣╠╦╝╚╗╔╝║╣ ╚═╗ ║
╩╚═╝╩ ╩╩ ╩╩╚═ ╚╝ ╚═╝╚═╝ ╩ `

// View renders the entire TUI
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var sections []string
	sections = append(sections, logoStyle.Width(m.width).Render(logo))
	if m.violation != "" {
		sections = append(sections, m.renderViolation())
	}

	width := (m.width - 4) / 2
	left := lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatsPanel(width),
		m.renderBatchPanel(width),
		m.renderItemsPanel(width),
	)
	right := lipgloss.JoinVertical(lipgloss.Left,
		m.renderRateLimitPanel(width),
		m.renderLogsPanel(width),
	)
	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right))

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("Press ? for help"))
	}

	return baseStyle.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

// renderViolation is the banner shown while the run waits on the user
func (m *Model) renderViolation() string {
	text := "GUARD PAUSED  " + truncate(m.violation, m.width-30) + "  press Enter to resume"
	return violationStyle.Width(m.width).Render(text)
}

func stat(label, value string) string {
	return fmt.Sprintf("%s %s", statsLabelStyle.Render(label), statsValueStyle.Render(value))
}

// renderStatsPanel renders the run totals of the current profile
func (m *Model) renderStatsPanel(width int) string {
	title := titleStyle.Render(" RUN ")

	elapsed := time.Since(m.profileStartTime)
	rate := 0.0
	if elapsed.Minutes() > 0 {
		rate = float64(m.succeeded+m.skipped) / elapsed.Minutes()
	}

	profile := m.profile
	if profile == "" {
		profile = m.spinner.View() + " starting"
	} else {
		profile = "@" + profile
	}

	stats := []string{
		stat("Profile:", profile),
		stat("Session Time:", formatDuration(time.Since(m.sessionStartTime))),
		stat("Harvested:", fmt.Sprintf("%d of %d", m.succeeded, m.outstanding)),
		stat("Skipped:", fmt.Sprintf("%d", m.skipped)),
		stat("Rate:", FormatRate(rate)),
		stat("Media:", fmt.Sprintf("%d saved (%s), %d present, %d failed", m.mediaSaved, FormatBytes(m.mediaBytes), m.mediaCached, m.mediaFailed)),
	}
	if len(m.profileSeen) > 1 {
		stats = append(stats, stat("Profiles:", strings.Join(m.profileSeen, ", ")))
	}

	bar := m.overall
	bar.Width = width - 6
	stats = append(stats, "", bar.ViewAs(m.progressLocked()))

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, stats...)),
	)
}

// renderBatchPanel renders the progress through the open batch of tabs
func (m *Model) renderBatchPanel(width int) string {
	title := titleStyle.Render(" CURRENT BATCH ")

	if m.batchSize == 0 {
		content := lipgloss.NewStyle().Foreground(colorFaint).Render("No batch open")
		return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
	}

	meter := m.batchMeter
	meter.Width = width - 6
	fraction := float64(m.batchDone) / float64(m.batchSize)

	content := lipgloss.JoinVertical(lipgloss.Left,
		stat("Batch:", fmt.Sprintf("%d/%d", m.batch, m.batches)),
		stat("Tabs:", fmt.Sprintf("%d/%d handled", m.batchDone, m.batchSize)),
		meter.ViewAs(fraction),
	)
	return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
}

// renderItemsPanel renders the recently handled posts
func (m *Model) renderItemsPanel(width int) string {
	title := titleStyle.Render(" RECENT POSTS ")

	if len(m.items) == 0 {
		content := lipgloss.NewStyle().Foreground(colorFaint).Render("Nothing handled yet")
		return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
	}

	maxLen := width - 12
	var lines []string
	for _, item := range m.items {
		url := truncate(item.URL, maxLen)
		if item.State == ItemDone {
			lines = append(lines, itemDoneStyle.Render(fmt.Sprintf("✓ #%d %s", item.Index, url)))
		} else {
			lines = append(lines, itemSkippedStyle.Render(fmt.Sprintf("✗ #%d %s", item.Index, url)))
		}
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, lines...)),
	)
}

// renderRateLimitPanel renders the tab-open limiter status
func (m *Model) renderRateLimitPanel(width int) string {
	title := titleStyle.Render(" TAB OPEN RATE ")

	if m.rateLimitMax == 0 {
		content := lipgloss.NewStyle().Foreground(colorFaint).Render("No limiter")
		return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
	}

	usage := float64(m.rateLimitUsed) / float64(m.rateLimitMax) * 100
	if usage > 100 {
		usage = 100
	}

	barWidth := width - 8
	filled := int(usage * float64(barWidth) / 100)
	empty := barWidth - filled

	barStyle := GetRateLimitStyle(usage)
	bar := barStyle.Render(strings.Repeat("█", filled)) +
		progressEmptyStyle.Render(strings.Repeat("░", empty))

	resetIn := time.Until(m.rateLimitResetAt)
	if resetIn < 0 {
		resetIn = 0
	}

	content := []string{
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Usage:"),
			barStyle.Render(fmt.Sprintf("%d/%d (%.0f%%)", m.rateLimitUsed, m.rateLimitMax, usage))),
		bar,
		stat("Reset in:", formatDuration(resetIn)),
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(content, "\n")),
	)
}

// renderLogsPanel renders the logs panel
func (m *Model) renderLogsPanel(width int) string {
	title := titleStyle.Render(" LOG ")

	start := len(m.logMessages) - 10
	if start < 0 {
		start = 0
	}

	var logs []string
	for i := start; i < len(m.logMessages); i++ {
		log := m.logMessages[i]
		timestamp := logTimestampStyle.Render(log.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(log.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", log.Level))
		message := logMessageStyle.Render(truncate(log.Message, width-25))

		logs = append(logs, fmt.Sprintf("%s %s %s", timestamp, level, message))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = lipgloss.NewStyle().Foreground(colorFaint).Render("No logs yet...")
	}

	logsHeight := m.height - 30
	if logsHeight < 5 {
		logsHeight = 5
	}

	return panelStyle.Width(width).Height(logsHeight).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

// renderHelp renders the help panel
func (m *Model) renderHelp() string {
	help := `
  Keys:
    q/Q      - Quit (the run stops and flushes what it has)
    ctrl+l   - Clear the log
    enter    - Resume after a guard pause
    ?        - Toggle this help

  Posts:
    ` + successStyle.Render("✓") + `        - Harvested and checkpointed
    ` + errorStyle.Render("✗") + `        - Skipped, reason in the log
`

	return panelStyle.Width(m.width).Render(help)
}

func truncate(s string, max int) string {
	if max < 4 {
		max = 4
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

// formatDuration formats a duration as [hh:]mm:ss
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "00:00"
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
