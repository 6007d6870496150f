package tui

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ItemState is where a post stands in the current run
type ItemState int

const (
	ItemDone ItemState = iota
	ItemSkipped
)

// Item is a handled post
type Item struct {
	Index  int
	URL    string
	State  ItemState
	Reason string
	At     time.Time
}

// Model represents the TUI model
type Model struct {
	// UI components
	spinner     spinner.Model
	overall     progress.Model
	batchMeter  progress.Model
	profileSeen []string

	// Run state
	profile     string
	outstanding int
	batch       int
	batches     int
	batchSize   int
	batchDone   int
	items       []Item
	maxItems    int
	succeeded   int
	skipped     int

	// Media
	mediaSaved  int
	mediaCached int
	mediaFailed int
	mediaBytes  int64

	// Stats
	sessionStartTime time.Time
	profileStartTime time.Time

	// Tab-open rate limit
	rateLimitMax     int
	rateLimitUsed    int
	rateLimitResetAt time.Time

	// UI state
	width          int
	height         int
	showHelp       bool
	logMessages    []LogMessage
	maxLogMessages int

	// Guard pause; acks receives one value per acknowledged violation
	violation string
	acks      chan struct{}

	// Mutex for thread safety
	mu sync.RWMutex
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// NewModel creates a new TUI model
func NewModel() Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorAccent)

	now := time.Now()
	return Model{
		spinner:          s,
		overall:          progress.New(progress.WithDefaultGradient()),
		batchMeter:       progress.New(progress.WithSolidFill(string(colorGood))),
		maxItems:         12,
		sessionStartTime: now,
		profileStartTime: now,
		logMessages:      []LogMessage{},
		maxLogMessages:   50,
	}
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// StartProfile resets the per-profile counters
func (m *Model) StartProfile(profile string, outstanding int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.profile = profile
	m.profileSeen = append(m.profileSeen, profile)
	m.outstanding = outstanding
	m.batch, m.batches, m.batchSize, m.batchDone = 0, 0, 0, 0
	m.succeeded, m.skipped = 0, 0
	m.items = nil
	m.profileStartTime = time.Now()
}

// StartBatch records a new batch of size tabs
func (m *Model) StartBatch(batch, batches, size int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.batch = batch
	m.batches = batches
	m.batchSize = size
	m.batchDone = 0
}

// FinishItem records a handled post
func (m *Model) FinishItem(index int, url string, state ItemState, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.batchDone++
	if state == ItemDone {
		m.succeeded++
	} else {
		m.skipped++
	}

	m.items = append(m.items, Item{Index: index, URL: url, State: state, Reason: reason, At: time.Now()})
	if len(m.items) > m.maxItems {
		m.items = m.items[len(m.items)-m.maxItems:]
	}
}

// FinishMedia records a media result
func (m *Model) FinishMedia(size int64, cached bool, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case failed:
		m.mediaFailed++
	case cached:
		m.mediaCached++
	default:
		m.mediaSaved++
		m.mediaBytes += size
	}
}

// UpdateRateLimit updates the rate limit status
func (m *Model) UpdateRateLimit(used, max int, resetAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rateLimitUsed = used
	m.rateLimitMax = max
	m.rateLimitResetAt = resetAt
}

// AddLogMessage adds a log message
func (m *Model) AddLogMessage(level, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	color := colorFaint
	switch level {
	case "ERROR":
		color = lipgloss.Color("#FF0000")
	case "WARN":
		color = colorNotice
	case "SUCCESS":
		color = colorGood
	case "INFO":
		color = colorAccent
	}

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   color,
	})

	// Keep only the last N messages
	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// RecentItems returns the most recently handled posts, oldest first
func (m *Model) RecentItems() []Item {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Item, len(m.items))
	copy(out, m.items)
	return out
}

// Progress returns the fraction of outstanding posts handled
func (m *Model) Progress() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.progressLocked()
}

func (m *Model) progressLocked() float64 {
	if m.outstanding <= 0 {
		return 0
	}
	p := float64(m.succeeded+m.skipped) / float64(m.outstanding)
	if p > 1 {
		p = 1
	}
	return p
}

// ETA estimates the time left for the current profile
func (m *Model) ETA() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	handled := m.succeeded + m.skipped
	if handled == 0 || m.outstanding <= handled {
		return 0
	}
	perItem := time.Since(m.profileStartTime) / time.Duration(handled)
	return perItem * time.Duration(m.outstanding-handled)
}

// FormatBytes formats bytes to human readable format
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatRate formats a per-minute rate
func FormatRate(perMinute float64) string {
	return fmt.Sprintf("%.1f/min", perMinute)
}

// Paused reports the violation the run is waiting on, if any
func (m *Model) Paused() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.violation, m.violation != ""
}
