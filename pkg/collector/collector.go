// Package collector enumerates post URLs from an infinite-scroll profile
// feed. Collection is a small state machine: scan what is rendered, scroll,
// and stop once the target is reached or the page stops growing.
package collector

import (
	"context"
	"strings"
	"time"

	"igharvest/pkg/logger"
	"igharvest/pkg/retry"
)

// State of a collection
type State int

const (
	Scanning State = iota
	Scrolling
	Stalled
	Satisfied
	Exhausted
	Aborted
)

var stateNames = map[State]string{
	Scanning:  "scanning",
	Scrolling: "scrolling",
	Stalled:   "stalled",
	Satisfied: "satisfied",
	Exhausted: "exhausted",
	Aborted:   "aborted",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether s ends a collection
func (s State) Terminal() bool {
	return s == Satisfied || s == Exhausted || s == Aborted
}

// Feed is a scrollable list of post links
type Feed interface {
	// VisiblePosts returns the post URLs currently rendered, in page order
	VisiblePosts(ctx context.Context) ([]string, error)
	// ScrollHeight returns the document height
	ScrollHeight(ctx context.Context) (float64, error)
	// Scroll performs one human-like scroll action
	Scroll(ctx context.Context) error
}

// Collection is the outcome of Collect. Err is set only when State is
// Aborted; URLs always holds what was gathered.
type Collection struct {
	URLs    []string
	State   State
	Err     error
	Scrolls int
}

// Options tunes a Collector
type Options struct {
	// ExcludeMarker drops any URL containing it
	ExcludeMarker string
	// StallLimit is how many scrolls in a row may leave the height unchanged
	StallLimit int
	// StallBackoffMin and StallBackoffMax bound the wait after a stalled scroll
	StallBackoffMin time.Duration
	StallBackoffMax time.Duration
}

// DefaultOptions matches the collector's historical behaviour
func DefaultOptions() Options {
	return Options{
		ExcludeMarker:   "reel",
		StallLimit:      3,
		StallBackoffMin: time.Second,
		StallBackoffMax: 3 * time.Second,
	}
}

// Collector drives a Feed until enough unique posts are found
type Collector struct {
	feed  Feed
	pacer *retry.Pacer
	opts  Options
	log   logger.Logger
}

// New creates a collector over feed
func New(feed Feed, pacer *retry.Pacer, opts Options) *Collector {
	if pacer == nil {
		pacer = retry.NewPacer()
	}
	if opts.StallLimit < 1 {
		opts.StallLimit = 1
	}
	return &Collector{
		feed:  feed,
		pacer: pacer,
		opts:  opts,
		log:   logger.GetLogger().WithField("component", "collector"),
	}
}

// Collect gathers up to target unique post URLs in first-seen order. It
// never returns an error: platform faults end the collection as Aborted
// with whatever was found so far.
func (c *Collector) Collect(ctx context.Context, target int) Collection {
	col := Collection{URLs: []string{}}
	if target <= 0 {
		col.State = Satisfied
		return col
	}

	abort := func(err error) Collection {
		col.State = Aborted
		col.Err = err
		c.log.WithError(err).WithField("collected", len(col.URLs)).Warn("Collection aborted")
		return col
	}

	lastHeight, err := c.feed.ScrollHeight(ctx)
	if err != nil {
		return abort(err)
	}

	seen := make(map[string]struct{})
	stalls := 0

	for {
		if err := ctx.Err(); err != nil {
			return abort(err)
		}

		col.State = Scanning
		visible, err := c.feed.VisiblePosts(ctx)
		if err != nil {
			return abort(err)
		}
		for _, url := range visible {
			if url == "" {
				continue
			}
			if c.opts.ExcludeMarker != "" && strings.Contains(url, c.opts.ExcludeMarker) {
				continue
			}
			if _, dup := seen[url]; dup {
				continue
			}
			seen[url] = struct{}{}
			col.URLs = append(col.URLs, url)
			if len(col.URLs) >= target {
				col.State = Satisfied
				c.log.WithField("collected", len(col.URLs)).Info("Collection satisfied")
				return col
			}
		}

		col.State = Scrolling
		if err := c.feed.Scroll(ctx); err != nil {
			return abort(err)
		}
		col.Scrolls++

		height, err := c.feed.ScrollHeight(ctx)
		if err != nil {
			return abort(err)
		}

		if height == lastHeight {
			stalls++
			if stalls >= c.opts.StallLimit {
				col.State = Exhausted
				c.log.WithFields(map[string]interface{}{
					"collected": len(col.URLs),
					"stalls":    stalls,
				}).Warn("No new posts found, stopping scroll")
				return col
			}
			col.State = Stalled
			if err := c.pacer.Sleep(ctx, c.opts.StallBackoffMin, c.opts.StallBackoffMax); err != nil {
				return abort(err)
			}
		} else {
			stalls = 0
		}
		lastHeight = height
	}
}
