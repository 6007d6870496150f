// Package orchestrator opens post tabs in batches, extracts each post and
// checkpoints the results.
//
// Tabs of a batch are opened together and then processed one at a time.
// Every opened tab is cleaned up whatever happens while it is processed:
// it is closed (unless in debug mode) and focus returns to the main tab, or
// to any surviving tab if the main one is gone. When no tab survives the
// run stops early with what it has.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"igharvest/pkg/browser"
	"igharvest/pkg/checkpoint"
	errs "igharvest/pkg/errors"
	"igharvest/pkg/extractor"
	"igharvest/pkg/instagram"
	"igharvest/pkg/logger"
	"igharvest/pkg/models"
	"igharvest/pkg/ratelimit"
	"igharvest/pkg/retry"
)

// Skip reasons
const (
	ReasonMissingHref = "missing href"
	ReasonOpenFailed  = "failed to open tab"
)

// Options control one ScrapeBatches call
type Options struct {
	BatchSize  int
	SaveEvery  int
	TabRetries int
	// Debug leaves processed tabs open
	Debug bool
}

// Pacing holds the human-like delays of the scheduler
type Pacing struct {
	// after each tab open
	OpenMin, OpenMax time.Duration
	// between tab-detection polls
	PollMin, PollMax time.Duration
	// after switching to a tab
	SettleMin, SettleMax time.Duration
	// between batches
	BatchMin, BatchMax time.Duration
	// pointer wander after switching to a tab
	MouseMove time.Duration
}

// DefaultPacing returns the standard delays with the given inter-batch window
func DefaultPacing(batchMin, batchMax time.Duration) Pacing {
	return Pacing{
		OpenMin:   800 * time.Millisecond,
		OpenMax:   1500 * time.Millisecond,
		PollMin:   500 * time.Millisecond,
		PollMax:   time.Second,
		SettleMin: 600 * time.Millisecond,
		SettleMax: 1200 * time.Millisecond,
		BatchMin:  batchMin,
		BatchMax:  batchMax,
		MouseMove: 500 * time.Millisecond,
	}
}

// Report is what a ScrapeBatches call produced. Aborted is set when the run
// stopped early because no browser tab was left.
type Report struct {
	Succeeded []models.PostRecord
	Skipped   []models.SkipRecord
	Aborted   bool
}

// Reporter receives progress events
type Reporter interface {
	BatchStarted(batch, batches, size int)
	ItemDone(index int, url string)
	ItemSkipped(index int, url, reason string)
	BatchDone(batch, batches, succeeded, skipped int)
}

// NopReporter ignores all events
type NopReporter struct{}

func (NopReporter) BatchStarted(batch, batches, size int)            {}
func (NopReporter) ItemDone(index int, url string)                   {}
func (NopReporter) ItemSkipped(index int, url, reason string)        {}
func (NopReporter) BatchDone(batch, batches, succeeded, skipped int) {}

// Orchestrator schedules the per-post work on a single browser
type Orchestrator struct {
	driver       browser.Driver
	extractor    extractor.PageExtractor
	checkpointer *checkpoint.Checkpointer
	pacer        *retry.Pacer
	limiter      ratelimit.Limiter
	reporter     Reporter
	pacing       Pacing

	// Profile names the records and anchors the title lookup
	Profile string
	// CommentSteps is the number of comment scroll steps per post
	CommentSteps int

	main    browser.Handle
	focusMu sync.RWMutex
	focused browser.Handle

	// hrefs whose tab did not appear in time; their tabs may still open later
	late map[string]bool

	log logger.Logger
}

// New creates an orchestrator. The driver's main tab is the initial focus.
func New(d browser.Driver, x extractor.PageExtractor, cp *checkpoint.Checkpointer, pacer *retry.Pacer, pacing Pacing) *Orchestrator {
	if pacer == nil {
		pacer = retry.NewPacer()
	}
	return &Orchestrator{
		driver:       d,
		extractor:    x,
		checkpointer: cp,
		pacer:        pacer,
		reporter:     NopReporter{},
		pacing:       pacing,
		main:         d.Main(),
		focused:      d.Main(),
		late:         make(map[string]bool),
		log:          logger.GetLogger().WithField("component", "orchestrator"),
	}
}

// WithLimiter paces tab opens through l
func (o *Orchestrator) WithLimiter(l ratelimit.Limiter) *Orchestrator {
	o.limiter = l
	return o
}

// WithReporter sets the progress reporter
func (o *Orchestrator) WithReporter(r Reporter) *Orchestrator {
	if r == nil {
		r = NopReporter{}
	}
	o.reporter = r
	return o
}

// Focused returns the tab the orchestrator is working in. Safe to call
// from other goroutines.
func (o *Orchestrator) Focused() browser.Handle {
	o.focusMu.RLock()
	defer o.focusMu.RUnlock()
	return o.focused
}

func (o *Orchestrator) focus(ctx context.Context, h browser.Handle) error {
	if err := o.driver.Activate(ctx, h); err != nil {
		return err
	}
	o.focusMu.Lock()
	o.focused = h
	o.focusMu.Unlock()
	return nil
}

type openedTab struct {
	index  int
	url    string
	handle browser.Handle
}

// run is the mutable state of one ScrapeBatches call
type run struct {
	opts      Options
	report    Report
	buf       checkpoint.Buffer
	successes int
}

// ScrapeBatches processes items in batches of opts.BatchSize. An item's
// index is its position in items. The returned error is non-nil only when
// ctx ended; the report and the final flush happen regardless.
func (o *Orchestrator) ScrapeBatches(ctx context.Context, items []string, opts Options) (Report, error) {
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	if opts.SaveEvery < 1 {
		opts.SaveEvery = 1
	}
	if opts.TabRetries < 1 {
		opts.TabRetries = 1
	}

	r := &run{opts: opts}
	r.report.Succeeded = []models.PostRecord{}
	r.report.Skipped = []models.SkipRecord{}

	batches := (len(items) + opts.BatchSize - 1) / opts.BatchSize
	logger.LogComponentStart("orchestrator", map[string]interface{}{
		"items":      len(items),
		"batch_size": opts.BatchSize,
		"batches":    batches,
		"save_every": opts.SaveEvery,
		"debug":      opts.Debug,
	})

	err := o.runBatches(ctx, items, r, batches)

	if r.buf.Len() > 0 {
		o.flush(r)
	}

	reason := "completed"
	switch {
	case err != nil:
		reason = err.Error()
	case r.report.Aborted:
		reason = "no tabs left"
	}
	logger.LogComponentStop("orchestrator", reason)
	return r.report, err
}

func (o *Orchestrator) runBatches(ctx context.Context, items []string, r *run, batches int) error {
	for b := 0; b < batches; b++ {
		start := b * r.opts.BatchSize
		end := start + r.opts.BatchSize
		if end > len(items) {
			end = len(items)
		}
		succeededBefore, skippedBefore := len(r.report.Succeeded), len(r.report.Skipped)
		o.reporter.BatchStarted(b+1, batches, end-start)

		opened, err := o.openBatch(ctx, items, start, end, r)
		if err == nil {
			err = o.processBatch(ctx, opened, r)
		} else {
			o.closeUnprocessed(ctx, opened, r.opts.Debug)
		}
		if err != nil {
			return err
		}

		succeeded := len(r.report.Succeeded) - succeededBefore
		skipped := len(r.report.Skipped) - skippedBefore
		logger.LogBatchProgress(o.Profile, b+1, batches, len(r.report.Succeeded), len(r.report.Skipped))
		o.reporter.BatchDone(b+1, batches, succeeded, skipped)

		if r.report.Aborted {
			return nil
		}
		if b < batches-1 {
			delay := o.pacer.Between(o.pacing.BatchMin, o.pacing.BatchMax)
			logger.LogPacing("between batches", delay)
			if err := o.pacer.SleepFor(ctx, delay); err != nil {
				return err
			}
		}
	}
	return nil
}

// openBatch opens a tab for every item in items[start:end]. Items without a
// URL and tabs that never appear are recorded as skips.
func (o *Orchestrator) openBatch(ctx context.Context, items []string, start, end int, r *run) ([]openedTab, error) {
	var opened []openedTab
	for i := start; i < end; i++ {
		url := items[i]
		if url == "" {
			o.skip(r, i, url, ReasonMissingHref)
			continue
		}

		if o.limiter != nil {
			if err := o.limiter.Wait(ctx); err != nil {
				return opened, err
			}
		}

		h, err := o.openTab(ctx, url, r.opts.TabRetries)
		if err != nil {
			if ctx.Err() != nil {
				return opened, ctx.Err()
			}
			o.log.WithError(err).WithField("index", i).Error("Failed to open tab")
			o.skip(r, i, url, fmt.Sprintf("%s: %v", ReasonOpenFailed, err))
			continue
		}
		opened = append(opened, openedTab{index: i, url: url, handle: h})
		o.log.WithFields(map[string]interface{}{
			"index":  i,
			"url":    url,
			"handle": string(h),
		}).Info("Opened post tab")

		if err := o.pacer.Sleep(ctx, o.pacing.OpenMin, o.pacing.OpenMax); err != nil {
			return opened, err
		}
	}
	return opened, nil
}

// openTab requests a tab at url and finds its handle by diffing the tab
// list, polling up to retries times. A new tab showing another page is not
// ours and is closed; a blank one may still be loading and is adopted only
// when it is the sole candidate left after the last poll.
func (o *Orchestrator) openTab(ctx context.Context, url string, retries int) (browser.Handle, error) {
	o.closeLate(ctx)

	before, err := o.driver.Handles(ctx)
	if err != nil {
		return "", err
	}
	if err := o.driver.OpenTab(ctx, o.Focused(), url); err != nil {
		return "", err
	}

	stray := make(map[browser.Handle]bool)
	var loading []browser.Handle
	for attempt := 0; attempt < retries; attempt++ {
		after, err := o.driver.Handles(ctx)
		if err != nil {
			return "", err
		}

		var match browser.Handle
		loading = loading[:0]
		for _, h := range browser.Diff(before, after) {
			if stray[h] {
				continue
			}
			location, err := o.driver.URL(ctx, h)
			switch {
			case err != nil:
			case match == "" && instagram.SamePost(location, url):
				match = h
			case location == "" || location == "about:blank":
				loading = append(loading, h)
			default:
				stray[h] = true
			}
		}
		if match != "" {
			for _, h := range loading {
				stray[h] = true
			}
			o.closeStray(ctx, stray)
			return match, nil
		}

		if attempt < retries-1 {
			if err := o.pacer.Sleep(ctx, o.pacing.PollMin, o.pacing.PollMax); err != nil {
				o.closeStray(ctx, stray)
				return "", err
			}
		}
	}

	if len(loading) == 1 {
		o.closeStray(ctx, stray)
		return loading[0], nil
	}
	for _, h := range loading {
		stray[h] = true
	}
	o.closeStray(ctx, stray)
	o.late[url] = true
	return "", errs.New(errs.ErrorTypeTransient, "open tab", "new tab did not appear for href="+url)
}

// closeLate closes tabs that finally opened for an href given up on earlier
func (o *Orchestrator) closeLate(ctx context.Context) {
	if len(o.late) == 0 {
		return
	}
	handles, err := o.driver.Handles(ctx)
	if err != nil {
		return
	}
	stray := make(map[browser.Handle]bool)
	for _, h := range handles {
		if h == o.main || h == o.Focused() {
			continue
		}
		location, err := o.driver.URL(ctx, h)
		if err != nil {
			continue
		}
		for href := range o.late {
			if instagram.SamePost(location, href) {
				stray[h] = true
				delete(o.late, href)
				break
			}
		}
	}
	o.closeStray(ctx, stray)
}

// closeStray closes tabs that appeared while waiting for a post tab but
// show something else
func (o *Orchestrator) closeStray(ctx context.Context, stray map[browser.Handle]bool) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	for h := range stray {
		if err := o.driver.CloseTab(cctx, h); err != nil {
			o.log.WithError(err).WithField("handle", string(h)).Warn("Failed to close stray tab")
			continue
		}
		o.log.WithField("handle", string(h)).Info("Closed stray tab")
	}
}

// processBatch extracts every opened tab in order and cleans each one up
func (o *Orchestrator) processBatch(ctx context.Context, opened []openedTab, r *run) error {
	for n, tab := range opened {
		if ctx.Err() != nil {
			o.closeUnprocessed(ctx, opened[n:], r.opts.Debug)
			return ctx.Err()
		}

		record, err := o.process(ctx, tab)
		switch {
		case ctx.Err() != nil:
			// interrupted mid-item; it stays outstanding for the next run
		case err != nil:
			o.log.WithError(err).WithField("url", tab.url).Error("Unexpected error while scraping post")
			o.skip(r, tab.index, tab.url, err.Error())
		default:
			o.succeed(r, tab.index, record)
		}

		if o.cleanup(ctx, tab.handle, r.opts.Debug) {
			r.report.Aborted = true
			o.closeUnprocessed(ctx, opened[n+1:], r.opts.Debug)
			return nil
		}
	}
	return ctx.Err()
}

// process switches to the tab and runs every extraction step. Step failures
// leave their field empty; only a failure to reach the tab or a panic fails
// the item.
func (o *Orchestrator) process(ctx context.Context, tab openedTab) (record models.PostRecord, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic while scraping: %v", p)
		}
	}()

	if err := o.focus(ctx, tab.handle); err != nil {
		return record, err
	}
	if err := browser.HumanMouseMove(ctx, o.driver, tab.handle, "", o.pacer, o.pacing.MouseMove); err != nil {
		o.log.WithError(err).Debug("Mouse move failed")
	}
	if err := o.pacer.Sleep(ctx, o.pacing.SettleMin, o.pacing.SettleMax); err != nil {
		return record, err
	}

	record = models.PostRecord{
		PostURL:  tab.url,
		PostID:   fmt.Sprintf("post_%d", tab.index),
		Profile:  o.Profile,
		Images:   []models.MediaRef{},
		Comments: []models.Comment{},
	}
	log := o.log.WithField("url", tab.url)

	if title, err := o.extractor.Title(ctx, tab.handle, instagram.ProfileAnchor(o.Profile)); err != nil {
		log.WithError(err).Error("Title extraction failed")
	} else {
		record.Title = title
	}

	if media, err := o.extractor.Media(ctx, tab.handle); err != nil {
		log.WithError(err).Error("Images extraction failed")
	} else if len(media) > 0 {
		record.Images = media
	}

	if likes, err := o.extractor.Engagement(ctx, tab.handle); err != nil {
		log.WithError(err).Error("Likes extraction failed")
	} else {
		record.Likes = likes
	}

	if comments, err := o.extractor.Comments(ctx, tab.handle, o.CommentSteps); err != nil {
		log.WithError(err).Error("Comments extraction failed")
	} else if len(comments) > 0 {
		record.Comments = comments
	}

	record.ScrapedAt = time.Now().UTC()
	return record, nil
}

// cleanup closes the tab and restores focus. It reports true when no tab is
// left to continue in.
func (o *Orchestrator) cleanup(ctx context.Context, h browser.Handle, debug bool) bool {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if debug {
		o.log.WithField("handle", string(h)).Info("Debug mode, leaving tab open")
	} else if err := o.driver.CloseTab(cctx, h); err != nil {
		o.log.WithError(err).WithField("handle", string(h)).Warn("Error closing tab")
	}

	handles, err := o.driver.Handles(cctx)
	if err != nil || len(handles) == 0 {
		o.log.WithError(err).Error("No browser tabs left after closing tab")
		return true
	}

	target := o.main
	if !browser.Contains(handles, target) {
		target = handles[0]
	}
	if err := o.focus(cctx, target); err != nil {
		o.log.WithError(err).WithField("handle", string(target)).Warn("Failed to restore focus")
	}
	return false
}

// closeUnprocessed cleans up tabs that were opened but will not be processed
func (o *Orchestrator) closeUnprocessed(ctx context.Context, tabs []openedTab, debug bool) {
	for _, tab := range tabs {
		if o.cleanup(ctx, tab.handle, debug) {
			return
		}
	}
}

func (o *Orchestrator) succeed(r *run, index int, record models.PostRecord) {
	r.report.Succeeded = append(r.report.Succeeded, record)
	r.successes++
	o.checkpointer.AppendIntermediate(record)
	r.buf.AddRecord(record)

	o.log.WithFields(map[string]interface{}{
		"url":   record.PostURL,
		"total": r.successes,
	}).Info("Scraped post")

	if r.successes%r.opts.SaveEvery == 0 {
		o.flush(r)
	}
	o.reporter.ItemDone(index, record.PostURL)
}

func (o *Orchestrator) skip(r *run, index int, url, reason string) {
	s := models.SkipRecord{
		Index:     index,
		PostURL:   url,
		Reason:    reason,
		Profile:   o.Profile,
		SkippedAt: time.Now().UTC(),
	}
	r.report.Skipped = append(r.report.Skipped, s)
	r.buf.AddSkip(s)
	logger.LogSkip(o.Profile, index, url, reason)
	o.reporter.ItemSkipped(index, url, reason)
}

// flush moves the buffer into the durable stores. Staging is cleared only
// when every buffered record was written.
func (o *Orchestrator) flush(r *run) {
	if err := o.checkpointer.Flush(&r.buf); err != nil {
		o.log.WithError(err).Error("Checkpoint flush failed, keeping staging file")
		return
	}
	if err := o.checkpointer.ClearStaging(); err != nil {
		o.log.WithError(err).Warn("Failed to clear staging file")
	}
}
