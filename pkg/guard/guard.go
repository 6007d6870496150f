// Package guard watches where the browser is and stops the run for an
// operator when it ends up somewhere it should not be.
package guard

import (
	"context"
	"sync"
	"time"

	"igharvest/pkg/browser"
	errs "igharvest/pkg/errors"
	"igharvest/pkg/logger"
)

// State of the guard
type State int

const (
	Normal State = iota
	Flagged
)

func (s State) String() string {
	if s == Flagged {
		return "flagged"
	}
	return "normal"
}

// Interrupter is told about a violation and blocks until it is acknowledged
type Interrupter interface {
	Interrupt(ctx context.Context, violation error) error
}

// FocusReader exposes which tab currently has focus
type FocusReader interface {
	Focused() browser.Handle
}

// URLReader reads a tab's location
type URLReader interface {
	URL(ctx context.Context, h browser.Handle) (string, error)
}

// Guard validates locations against a Policy
type Guard struct {
	policy      Policy
	interrupter Interrupter

	mu         sync.Mutex
	state      State
	flaggedURL string
	violations int
	log        logger.Logger
}

// New creates a guard in the Normal state
func New(policy Policy, interrupter Interrupter) *Guard {
	return &Guard{
		policy:      policy,
		interrupter: interrupter,
		log:         logger.GetLogger().WithField("component", "guard"),
	}
}

// State returns the current state
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Violations returns how many distinct violations interrupted the run
func (g *Guard) Violations() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.violations
}

// Check validates url. A new violation flags the guard and blocks in the
// Interrupter until acknowledged; the same URL is not reported twice in a
// row. The returned error is only the Interrupter's, e.g. a cancelled ctx.
func (g *Guard) Check(ctx context.Context, url string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.policy.Allowed(url) {
		if g.state == Flagged {
			g.log.WithField("url", url).Info("Navigation back within policy")
		}
		g.state = Normal
		g.flaggedURL = ""
		return nil
	}

	if g.state == Flagged && g.flaggedURL == url {
		return nil
	}

	g.state = Flagged
	g.flaggedURL = url
	g.violations++

	violation := errs.New(errs.ErrorTypePolicy, "navigation", "unexpected location "+url)
	g.log.WithField("url", url).Warn("Navigation violation")

	if g.interrupter == nil {
		return nil
	}
	return g.interrupter.Interrupt(ctx, violation)
}

// Watch polls the focused tab's location every interval until ctx ends.
// Read errors, e.g. a tab closing between the two reads, are ignored.
func (g *Guard) Watch(ctx context.Context, focus FocusReader, urls URLReader, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.LogComponentStart("guard", map[string]interface{}{"interval": interval.String()})
	defer logger.LogComponentStop("guard", "context done")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h := focus.Focused()
			if h == "" {
				continue
			}
			url, err := urls.URL(ctx, h)
			if err != nil {
				g.log.WithError(err).Debug("Location read failed")
				continue
			}
			if err := g.Check(ctx, url); err != nil {
				return
			}
		}
	}
}
