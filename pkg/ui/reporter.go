package ui

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"igharvest/pkg/orchestrator"
)

// BarReporter renders orchestrator progress as a terminal progress bar and
// keeps the totals in a StatusTracker
type BarReporter struct {
	bar     *progressbar.ProgressBar
	tracker *StatusTracker
	out     io.Writer
}

var _ orchestrator.Reporter = (*BarReporter)(nil)

// NewBarReporter creates a bar over outstanding items of profile
func NewBarReporter(profile string, outstanding int) *BarReporter {
	return NewBarReporterTo(os.Stderr, profile, outstanding)
}

// NewBarReporterTo writes the bar to out
func NewBarReporterTo(out io.Writer, profile string, outstanding int) *BarReporter {
	bar := progressbar.NewOptions(outstanding,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription("@"+profile),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("posts"),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(out) }),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	return &BarReporter{
		bar:     bar,
		tracker: NewStatusTracker(profile, outstanding),
		out:     out,
	}
}

// Tracker returns the totals collected so far
func (r *BarReporter) Tracker() *StatusTracker {
	return r.tracker
}

func (r *BarReporter) BatchStarted(batch, batches, size int) {
	r.tracker.BatchStarted(batch, batches)
	r.bar.Describe(fmt.Sprintf("@%s batch %d/%d", r.tracker.Profile, batch, batches))
}

func (r *BarReporter) ItemDone(index int, url string) {
	r.tracker.ItemDone()
	_ = r.bar.Add(1)
}

func (r *BarReporter) ItemSkipped(index int, url, reason string) {
	r.tracker.ItemSkipped()
	_ = r.bar.Add(1)
}

func (r *BarReporter) BatchDone(batch, batches, succeeded, skipped int) {}

// Finish completes the bar even when the run stopped early
func (r *BarReporter) Finish() {
	_ = r.bar.Finish()
}
