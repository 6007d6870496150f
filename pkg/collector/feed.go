package collector

import (
	"context"
	"time"

	"igharvest/pkg/browser"
	"igharvest/pkg/retry"
)

// Profile grid selectors. Rows carry the _ac7v class; the fallback matches
// any post link inside main.
const (
	GridSelector     = "._ac7v a"
	FallbackSelector = "main a[href^='/p/']"
)

const visiblePostsJS = `(primary, fallback) => {
	let anchors = Array.from(document.querySelectorAll(primary));
	if (anchors.length === 0) {
		anchors = Array.from(document.querySelectorAll(fallback));
	}
	return anchors.map(a => a.href).filter(Boolean);
}`

const sectionCountJS = `() => document.querySelectorAll('section').length`

const scrollHeightJS = `() => document.body.scrollHeight`

const scrollByJS = `(dy) => { window.scrollBy(0, dy); return window.scrollY }`

// ProfileFeed is the post grid of a profile page open in a browser tab
type ProfileFeed struct {
	driver browser.Driver
	handle browser.Handle
	pacer  *retry.Pacer

	Steps              int
	MinStep, MaxStep   int
	MinPause, MaxPause time.Duration
}

// NewProfileFeed reads the grid in tab h
func NewProfileFeed(d browser.Driver, h browser.Handle, pacer *retry.Pacer) *ProfileFeed {
	if pacer == nil {
		pacer = retry.NewPacer()
	}
	return &ProfileFeed{
		driver:   d,
		handle:   h,
		pacer:    pacer,
		Steps:    4,
		MinStep:  150,
		MaxStep:  400,
		MinPause: 200 * time.Millisecond,
		MaxPause: 600 * time.Millisecond,
	}
}

// VisiblePosts returns the absolute hrefs of the rendered grid links
func (f *ProfileFeed) VisiblePosts(ctx context.Context) ([]string, error) {
	res, err := f.driver.Eval(ctx, f.handle, visiblePostsJS, GridSelector, FallbackSelector)
	if err != nil {
		return nil, err
	}
	var urls []string
	if res.IsNull() {
		return urls, nil
	}
	if err := res.Decode(&urls); err != nil {
		return nil, err
	}
	return urls, nil
}

// ScrollHeight returns document.body.scrollHeight
func (f *ProfileFeed) ScrollHeight(ctx context.Context) (float64, error) {
	res, err := f.driver.Eval(ctx, f.handle, scrollHeightJS)
	if err != nil {
		return 0, err
	}
	var h float64
	if res.IsNull() {
		return 0, nil
	}
	if err := res.Decode(&h); err != nil {
		return 0, err
	}
	return h, nil
}

// Scroll moves down in several small randomized steps with pauses between
func (f *ProfileFeed) Scroll(ctx context.Context) error {
	for i := 0; i < f.Steps; i++ {
		dy := f.pacer.IntBetween(f.MinStep, f.MaxStep)
		if _, err := f.driver.Eval(ctx, f.handle, scrollByJS, dy); err != nil {
			return err
		}
		if err := f.pacer.Sleep(ctx, f.MinPause, f.MaxPause); err != nil {
			return err
		}
	}
	return nil
}

// WaitReady polls until the page renders at least minSections <section>
// elements or timeout passes. A timeout is not an error: the grid may still
// be usable and the collector decides from what it sees.
func (f *ProfileFeed) WaitReady(ctx context.Context, minSections int, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		res, err := f.driver.Eval(ctx, f.handle, sectionCountJS)
		if err != nil {
			return false, err
		}
		var n int
		if !res.IsNull() {
			if err := res.Decode(&n); err != nil {
				return false, err
			}
		}
		if n >= minSections {
			return true, nil
		}
		if !time.Now().Before(deadline) {
			return false, nil
		}
		if err := f.pacer.Sleep(ctx, 250*time.Millisecond, 500*time.Millisecond); err != nil {
			return false, err
		}
	}
}
