package tui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igharvest/pkg/guard"
)

// fakeProgram hands every sent message to the test instead of a terminal
type fakeProgram struct {
	sent chan tea.Msg
}

func newFakeProgram() *fakeProgram {
	return &fakeProgram{sent: make(chan tea.Msg, 16)}
}

func (f *fakeProgram) Run() (tea.Model, error) { return nil, nil }
func (f *fakeProgram) Send(msg tea.Msg)        { f.sent <- msg }
func (f *fakeProgram) Quit()                   {}

type recordingAlerter struct {
	mu     sync.Mutex
	titles []string
}

func (r *recordingAlerter) SendError(title, message string) {
	r.mu.Lock()
	r.titles = append(r.titles, title)
	r.mu.Unlock()
}

func newTestTUI() (*TUI, *fakeProgram) {
	fake := newFakeProgram()
	model := NewModel()
	return newTUI(&model, func(*Model) program { return fake }), fake
}

func TestTUIIsAGuardInterrupter(t *testing.T) {
	var _ guard.Interrupter = NewTUI()
}

func TestInterruptBlocksUntilEnter(t *testing.T) {
	dashboard, fake := newTestTUI()
	alerts := &recordingAlerter{}
	dashboard.WithAlerter(alerts)

	done := make(chan error, 1)
	go func() {
		done <- dashboard.Interrupt(context.Background(), errors.New("left the profile"))
	}()

	var msg tea.Msg
	select {
	case msg = <-fake.sent:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected a violation message")
	}
	violation, ok := msg.(ViolationMsg)
	require.True(t, ok, "got %T", msg)
	assert.Equal(t, "left the profile", violation.Reason)
	dashboard.model.Update(violation)

	select {
	case err := <-done:
		t.Fatalf("Interrupt returned before Enter: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	dashboard.model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Interrupt did not return after Enter")
	}
	assert.Equal(t, []string{"igharvest guard"}, alerts.titles)
}

func TestInterruptIgnoresStaleAcknowledgement(t *testing.T) {
	dashboard, fake := newTestTUI()
	dashboard.acks <- struct{}{}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := dashboard.Interrupt(ctx, errors.New("left the profile"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, fake.sent, 1)
}

func TestInterruptStopsWithContext(t *testing.T) {
	dashboard, _ := newTestTUI()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := dashboard.Interrupt(ctx, errors.New("left the profile"))
	assert.ErrorIs(t, err, context.Canceled)
}
