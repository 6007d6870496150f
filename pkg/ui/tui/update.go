package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Message types for the TUI

// ProfileStartMsg is sent when the pipeline moves to a profile
type ProfileStartMsg struct {
	Profile     string
	Outstanding int
}

// BatchStartMsg is sent when a batch of tabs is opened
type BatchStartMsg struct {
	Batch, Batches, Size int
}

// ItemMsg is sent when a post is harvested or skipped
type ItemMsg struct {
	Index  int
	URL    string
	State  ItemState
	Reason string
}

// BatchDoneMsg is sent when every tab of a batch is handled
type BatchDoneMsg struct {
	Batch, Batches, Succeeded, Skipped int
}

// MediaMsg is sent for each media download result
type MediaMsg struct {
	Key    string
	Size   int64
	Cached bool
	Err    error
}

// RateLimitUpdateMsg is sent to update rate limit status
type RateLimitUpdateMsg struct {
	Used    int
	Max     int
	ResetAt time.Time
}

// LogMsg is sent to add a log message
type LogMsg struct {
	Level   string
	Message string
}

// ViolationMsg pauses the dashboard until the user acknowledges a guard
// violation with Enter
type ViolationMsg struct {
	Reason string
}

// TickMsg is sent periodically to update the UI
type TickMsg time.Time

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		return m, tickCmd()

	case ProfileStartMsg:
		m.StartProfile(msg.Profile, msg.Outstanding)
		m.AddLogMessage("INFO", "Harvesting @"+msg.Profile)
		return m, nil

	case BatchStartMsg:
		m.StartBatch(msg.Batch, msg.Batches, msg.Size)
		return m, nil

	case ItemMsg:
		m.FinishItem(msg.Index, msg.URL, msg.State, msg.Reason)
		if msg.State == ItemSkipped {
			m.AddLogMessage("WARN", "Skipped "+msg.URL+": "+msg.Reason)
		}
		return m, nil

	case BatchDoneMsg:
		return m, nil

	case MediaMsg:
		m.FinishMedia(msg.Size, msg.Cached, msg.Err != nil)
		if msg.Err != nil {
			m.AddLogMessage("ERROR", "Media "+msg.Key+": "+msg.Err.Error())
		}
		return m, nil

	case RateLimitUpdateMsg:
		m.UpdateRateLimit(msg.Used, msg.Max, msg.ResetAt)
		return m, nil

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
		return m, nil

	case ViolationMsg:
		m.mu.Lock()
		m.violation = msg.Reason
		m.mu.Unlock()
		m.AddLogMessage("ERROR", "Guard: "+msg.Reason)
		return m, nil
	}

	return m, nil
}

// handleKeyPress handles keyboard input
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		return m, tea.Quit

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		m.mu.Lock()
		m.logMessages = []LogMessage{}
		m.mu.Unlock()
		return m, nil

	case "enter":
		m.acknowledge()
		return m, nil
	}

	return m, nil
}

// tickCmd returns a command that sends a tick message
func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*250, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// acknowledge lifts the guard pause and releases the waiting run
func (m *Model) acknowledge() {
	m.mu.Lock()
	paused := m.violation != ""
	m.violation = ""
	m.mu.Unlock()
	if !paused {
		return
	}
	m.AddLogMessage("INFO", "Guard violation acknowledged, resuming")
	if m.acks != nil {
		select {
		case m.acks <- struct{}{}:
		default:
		}
	}
}
