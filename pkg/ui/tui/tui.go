// Package tui is the full-screen run dashboard shown with `run --tui`.
package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"igharvest/pkg/ratelimit"
)

// program is the part of *tea.Program the TUI drives
type program interface {
	Run() (tea.Model, error)
	Send(msg tea.Msg)
	Quit()
}

// alerter raises a desktop notification
type alerter interface {
	SendError(title, message string)
}

// TUI represents the terminal user interface
type TUI struct {
	program program
	model   *Model
	acks    chan struct{}
	alerter alerter
}

// NewTUI creates a new TUI instance
func NewTUI() *TUI {
	model := NewModel()
	return newTUI(&model, func(m *Model) program {
		return tea.NewProgram(m, tea.WithAltScreen())
	})
}

func newTUI(model *Model, build func(*Model) program) *TUI {
	acks := make(chan struct{}, 1)
	model.acks = acks
	return &TUI{
		program: build(model),
		model:   model,
		acks:    acks,
	}
}

// WithAlerter also raises a desktop notification for every guard violation
func (t *TUI) WithAlerter(a alerter) *TUI {
	t.alerter = a
	return t
}

// Interrupt pauses the run on a guard violation. The dashboard shows the
// violation and Interrupt blocks until the user presses Enter or ctx ends.
func (t *TUI) Interrupt(ctx context.Context, violation error) error {
	// an Enter pressed while nothing was paused must not release this pause
	select {
	case <-t.acks:
	default:
	}

	if t.alerter != nil {
		t.alerter.SendError("igharvest guard", violation.Error())
	}
	t.Send(ViolationMsg{Reason: violation.Error()})

	select {
	case <-t.acks:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start runs the TUI until the user quits or Stop is called
func (t *TUI) Start() error {
	go t.program.Send(TickMsg{})

	_, err := t.program.Run()
	return err
}

// Stop stops the TUI gracefully
func (t *TUI) Stop() {
	t.program.Quit()
}

// Send sends a message to the TUI
func (t *TUI) Send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

// StartProfile switches the dashboard to profile
func (t *TUI) StartProfile(profile string, outstanding int) {
	t.Send(ProfileStartMsg{Profile: profile, Outstanding: outstanding})
}

func (t *TUI) BatchStarted(batch, batches, size int) {
	t.Send(BatchStartMsg{Batch: batch, Batches: batches, Size: size})
}

func (t *TUI) ItemDone(index int, url string) {
	t.Send(ItemMsg{Index: index, URL: url, State: ItemDone})
}

func (t *TUI) ItemSkipped(index int, url, reason string) {
	t.Send(ItemMsg{Index: index, URL: url, State: ItemSkipped, Reason: reason})
}

func (t *TUI) BatchDone(batch, batches, succeeded, skipped int) {
	t.Send(BatchDoneMsg{Batch: batch, Batches: batches, Succeeded: succeeded, Skipped: skipped})
}

// MediaSaved records a stored media file
func (t *TUI) MediaSaved(key string, size int64, cached bool) {
	t.Send(MediaMsg{Key: key, Size: size, Cached: cached})
}

// MediaFailed records a failed media download
func (t *TUI) MediaFailed(key string, err error) {
	t.Send(MediaMsg{Key: key, Err: err})
}

// UpdateRateLimit updates the tab-open rate limit panel
func (t *TUI) UpdateRateLimit(status ratelimit.Status) {
	t.Send(RateLimitUpdateMsg{Used: status.Used, Max: status.Max, ResetAt: status.ResetAt})
}

// Log sends a log message to the TUI
func (t *TUI) Log(level, format string, args ...interface{}) {
	t.Send(LogMsg{Level: level, Message: fmt.Sprintf(format, args...)})
}

// LogInfo logs an info message
func (t *TUI) LogInfo(format string, args ...interface{}) {
	t.Log("INFO", format, args...)
}

// LogSuccess logs a success message
func (t *TUI) LogSuccess(format string, args ...interface{}) {
	t.Log("SUCCESS", format, args...)
}

// LogWarning logs a warning message
func (t *TUI) LogWarning(format string, args ...interface{}) {
	t.Log("WARN", format, args...)
}

// LogError logs an error message
func (t *TUI) LogError(format string, args ...interface{}) {
	t.Log("ERROR", format, args...)
}
