package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// DownloadDisplay prints a single refreshing line for the media download
// phase. In debug mode every file gets its own line instead.
type DownloadDisplay struct {
	mu          sync.Mutex
	profile     string
	total       int
	done        int
	cached      int
	errors      int
	bytes       int64
	currentFile string
	startTime   time.Time
	isDebug     bool
}

// NewDownloadDisplay creates a display for total media files of profile
func NewDownloadDisplay(profile string, total int, debug bool) *DownloadDisplay {
	return &DownloadDisplay{
		profile:   profile,
		total:     total,
		startTime: time.Now(),
		isDebug:   debug,
	}
}

// CompleteDownload marks a file as saved, or as already present when cached
func (p *DownloadDisplay) CompleteDownload(key string, size int64, cached bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	p.currentFile = key
	if cached {
		p.cached++
	} else {
		p.bytes += size
	}

	if p.isDebug {
		note := formatBytes(size)
		if cached {
			note = "already present"
		}
		fmt.Printf("%s %s • %s\n", Green("✓"), key, Dim(note))
		return
	}
	p.printProgress()
}

// FailDownload marks a file as failed
func (p *DownloadDisplay) FailDownload(key string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	p.errors++

	if p.isDebug {
		fmt.Printf("%s %s - %v\n", Red("✗"), key, err)
		return
	}
	p.printProgress()
}

// printProgress prints the minimal progress line
func (p *DownloadDisplay) printProgress() {
	progress := 0.0
	if p.total > 0 {
		progress = float64(p.done) / float64(p.total)
	}
	if progress > 1 {
		progress = 1
	}
	barWidth := 20
	filled := int(progress * float64(barWidth))
	bar := strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)

	line := fmt.Sprintf("\r%s media [%s] %d/%d • %s • %s",
		Cyan("@"+p.profile),
		bar,
		p.done,
		p.total,
		formatBytes(p.bytes),
		p.calculateETA(),
	)

	if p.currentFile != "" {
		line += fmt.Sprintf(" • %s", p.currentFile)
	}
	if p.errors > 0 {
		line += fmt.Sprintf(" • %s", Red(fmt.Sprintf("%d errors", p.errors)))
	}

	// Clear line and print
	fmt.Printf("\r%s\r%s", strings.Repeat(" ", 120), line)
}

// Complete prints the download summary
func (p *DownloadDisplay) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.startTime)

	fmt.Printf("\n%s %d media files for @%s", Green("✓"), p.done-p.errors, p.profile)
	if p.cached > 0 {
		fmt.Printf(" (%d already present)", p.cached)
	}
	fmt.Printf("\n  %s %s in %s\n", Dim("•"), formatBytes(p.bytes), formatDuration(elapsed))

	if p.errors > 0 {
		fmt.Printf("  %s %d downloads failed\n", Dim("•"), p.errors)
	}
}

// calculateETA estimates time remaining
func (p *DownloadDisplay) calculateETA() string {
	if p.done == 0 {
		return "calculating..."
	}

	remaining := p.total - p.done
	rate := float64(p.done) / time.Since(p.startTime).Seconds()
	if rate == 0 || remaining <= 0 {
		return "0s"
	}

	eta := time.Duration(float64(remaining)/rate) * time.Second
	return formatDuration(eta)
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

// formatBytes formats bytes in a human-readable way
func formatBytes(bytes int64) string {
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
