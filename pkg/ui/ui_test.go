package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"igharvest/pkg/config"
)

func TestStatusTracker(t *testing.T) {
	st := NewStatusTracker("alice", 5)
	st.BatchStarted(1, 3)
	st.ItemDone()
	st.ItemDone()
	st.ItemSkipped()
	st.MediaDone(2048, false, nil)
	st.MediaDone(0, true, nil)
	st.MediaDone(0, false, errors.New("boom"))

	assert.Equal(t, 3, st.Processed())
	assert.Equal(t, 1, st.Batch)
	assert.Equal(t, 3, st.Batches)

	summary := st.Summary()
	assert.Contains(t, summary, "@alice: 2 harvested, 1 skipped of 5 outstanding")
	assert.Contains(t, summary, "media 1 saved (2.0 KB), 1 already present, 1 failed")
}

func TestBarReporter(t *testing.T) {
	var out bytes.Buffer
	r := NewBarReporterTo(&out, "alice", 3)

	r.BatchStarted(1, 2, 2)
	r.ItemDone(0, "a")
	r.ItemSkipped(1, "b", "missing href")
	r.BatchDone(1, 2, 1, 1)
	r.Finish()

	assert.Equal(t, 1, r.Tracker().Succeeded)
	assert.Equal(t, 1, r.Tracker().Skipped)
	assert.True(t, strings.Contains(out.String(), "alice"))
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "500 B", formatBytes(500))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "42s", formatDuration(42*time.Second))
	assert.Equal(t, "2m5s", formatDuration(125*time.Second))
	assert.Equal(t, "1h1m", formatDuration(61*time.Minute))
}

type recordingSender struct{ sent []string }

func (r *recordingSender) Send(title, message string) error {
	r.sent = append(r.sent, title)
	return nil
}

func TestNotifierHonorsConfig(t *testing.T) {
	sender := &recordingSender{}

	n := NewNotifierFor(config.NotificationConfig{Enabled: true, OnError: true, NotificationType: "terminal"})
	n.sender = sender
	n.SendError("paused", "violation")
	n.SendSuccess("done", "finished")
	assert.Equal(t, []string{"paused"}, sender.sent)

	sender.sent = nil
	n = NewNotifierFor(config.NotificationConfig{Enabled: true, OnError: true, OnComplete: true, NotificationType: "none"})
	n.sender = sender
	n.SendError("paused", "violation")
	assert.Empty(t, sender.sent)
}
