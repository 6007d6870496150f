package ui

import (
	"fmt"
	"sync"
	"time"
)

// StatusTracker keeps the running totals of one profile's harvest
type StatusTracker struct {
	mu sync.Mutex

	Profile      string
	Outstanding  int
	Succeeded    int
	Skipped      int
	Batch        int
	Batches      int
	MediaSaved   int
	MediaCached  int
	MediaFailed  int
	MediaBytes   int64
	StartTime    time.Time
	LastActivity time.Time
}

// NewStatusTracker creates a tracker for profile with outstanding items
func NewStatusTracker(profile string, outstanding int) *StatusTracker {
	now := time.Now()
	return &StatusTracker{
		Profile:      profile,
		Outstanding:  outstanding,
		StartTime:    now,
		LastActivity: now,
	}
}

// BatchStarted records the start of a batch
func (st *StatusTracker) BatchStarted(batch, batches int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.Batch = batch
	st.Batches = batches
	st.LastActivity = time.Now()
}

// ItemDone counts a harvested post
func (st *StatusTracker) ItemDone() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.Succeeded++
	st.LastActivity = time.Now()
}

// ItemSkipped counts a skipped post
func (st *StatusTracker) ItemSkipped() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.Skipped++
	st.LastActivity = time.Now()
}

// MediaDone counts a media result
func (st *StatusTracker) MediaDone(size int64, cached bool, err error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	switch {
	case err != nil:
		st.MediaFailed++
	case cached:
		st.MediaCached++
	default:
		st.MediaSaved++
		st.MediaBytes += size
	}
}

// Processed returns how many outstanding items have been handled
func (st *StatusTracker) Processed() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.Succeeded + st.Skipped
}

// GetElapsedTime returns the elapsed time since tracking started
func (st *StatusTracker) GetElapsedTime() time.Duration {
	return time.Since(st.StartTime)
}

// GetRate returns the average number of handled posts per minute
func (st *StatusTracker) GetRate() float64 {
	elapsed := st.GetElapsedTime().Minutes()
	if elapsed == 0 {
		return 0
	}
	return float64(st.Processed()) / elapsed
}

// Summary returns a one-line description of the totals
func (st *StatusTracker) Summary() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	line := fmt.Sprintf("@%s: %d harvested, %d skipped of %d outstanding in %s",
		st.Profile, st.Succeeded, st.Skipped, st.Outstanding, formatDuration(time.Since(st.StartTime)))
	if st.MediaSaved+st.MediaCached+st.MediaFailed > 0 {
		line += fmt.Sprintf("; media %d saved (%s), %d already present, %d failed",
			st.MediaSaved, formatBytes(st.MediaBytes), st.MediaCached, st.MediaFailed)
	}
	return line
}

// PrintSummary prints the totals
func (st *StatusTracker) PrintSummary() {
	fmt.Printf("%s %s\n", Green("✓"), st.Summary())
}
