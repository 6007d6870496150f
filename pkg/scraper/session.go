package scraper

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"igharvest/pkg/auth"
	"igharvest/pkg/browser"
	"igharvest/pkg/checkpoint"
	"igharvest/pkg/collector"
	"igharvest/pkg/config"
	errs "igharvest/pkg/errors"
	"igharvest/pkg/guard"
	"igharvest/pkg/instagram"
	"igharvest/pkg/logger"
	"igharvest/pkg/orchestrator"
	"igharvest/pkg/ratelimit"
	"igharvest/pkg/retry"
	"igharvest/pkg/urlstore"
)

const (
	// minProfileSections is how many <section> elements mark a rendered profile
	minProfileSections = 2
	loginSettle        = 3 * time.Second
)

// SessionOptions injects the collaborators of a Session. Zero values pick
// the production implementations.
type SessionOptions struct {
	Launcher    Launcher
	Extractor   ExtractorFactory
	Credentials *auth.Manager
	// Interrupter handles navigation violations; nil logs them only
	Interrupter guard.Interrupter
	Pacer       *retry.Pacer
}

// Session owns the browser for a whole run and exposes the per-profile
// operations: OpenProfile, Collect and ScrapeBatches.
type Session struct {
	cfg  *config.Config
	opts SessionOptions

	driver  browser.Driver
	guarded *guard.Guarded
	guard   *guard.Guard
	account *auth.Account
	limiter ratelimit.Limiter
	pacer   *retry.Pacer

	current atomic.Pointer[orchestrator.Orchestrator]

	stopWatch context.CancelFunc
	watchDone chan struct{}
	stopOnce  sync.Once

	log logger.Logger
}

// Work is the resumable state of one profile: what was found, what is
// already done and what is left, in discovery order
type Work struct {
	Profile     string
	Candidates  []string
	Cached      bool
	Processed   urlstore.Set
	Outstanding []string
	// Collection is set when the candidates were freshly collected
	Collection *collector.Collection
}

// NewSession creates a session from the run config
func NewSession(cfg *config.Config, opts SessionOptions) *Session {
	if opts.Launcher == nil {
		opts.Launcher = LaunchBrowser
	}
	if opts.Extractor == nil {
		opts.Extractor = DOMExtractor
	}
	if opts.Interrupter == nil {
		opts.Interrupter = guard.LogInterrupter{}
	}
	pacer := opts.Pacer
	if pacer == nil {
		pacer = retry.NewPacer()
	}

	var limiter ratelimit.Limiter
	if cfg.Main.TabsPerMinute > 0 {
		l, err := ratelimit.New(cfg.Main.TabLimiter, cfg.Main.TabsPerMinute, time.Minute)
		if err != nil {
			l = ratelimit.NewSlidingWindow(cfg.Main.TabsPerMinute, time.Minute)
		}
		limiter = l
	}

	return &Session{
		cfg:     cfg,
		opts:    opts,
		limiter: limiter,
		pacer:   pacer,
		log:     logger.GetLogger().WithField("component", "session"),
	}
}

// Account returns the session's credentials once started
func (s *Session) Account() *auth.Account {
	return s.account
}

// Limiter returns the tab-open limiter, nil when uncapped
func (s *Session) Limiter() ratelimit.Limiter {
	return s.limiter
}

// Guard returns the navigation guard once started
func (s *Session) Guard() *guard.Guard {
	return s.guard
}

// Focused implements guard.FocusReader: the running orchestrator's tab, or
// the main tab between runs
func (s *Session) Focused() browser.Handle {
	if o := s.current.Load(); o != nil {
		return o.Focused()
	}
	if s.driver == nil {
		return ""
	}
	return s.driver.Main()
}

// Start resolves credentials, launches the browser, attaches the guard
// and logs in with the session cookies. Every failure is a setup error.
func (s *Session) Start(ctx context.Context) error {
	account, err := auth.Resolve(s.opts.Credentials, s.cfg.Data.CookieFile, s.cfg.Data.Account)
	if err != nil {
		return err
	}
	s.account = account

	d, err := s.opts.Launcher(s.cfg)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeSetup, "browser", err)
	}
	s.driver = d

	s.guard = guard.New(guard.NewPolicy(s.cfg.Browser.AllowedHost), s.opts.Interrupter)
	s.guarded = guard.Wrap(d, s.guard)

	watchCtx, cancel := context.WithCancel(ctx)
	s.stopWatch = cancel
	s.watchDone = make(chan struct{})
	go func() {
		defer close(s.watchDone)
		s.guard.Watch(watchCtx, s, d, s.cfg.Browser.GuardInterval())
	}()

	if err := s.login(ctx); err != nil {
		s.Stop()
		return err
	}

	logger.LogComponentStart("session", map[string]interface{}{
		"account":  account.Username,
		"cookies":  len(account.Cookies),
		"headless": s.cfg.Main.Headless,
	})
	return nil
}

// login visits the site root so cookies can be set for its domain, sets
// them and reloads
func (s *Session) login(ctx context.Context) error {
	main := s.driver.Main()
	if err := s.guarded.Navigate(ctx, main, instagram.BaseURL+"/"); err != nil {
		return errs.Wrap(errs.ErrorTypeSetup, "login", err)
	}
	if err := s.driver.SetCookies(ctx, s.account.Cookies); err != nil {
		return errs.Wrap(errs.ErrorTypeSetup, "login", err)
	}
	if err := s.driver.Reload(ctx, main); err != nil {
		return errs.Wrap(errs.ErrorTypeSetup, "login", err)
	}
	s.log.WithField("cookies", len(s.account.Cookies)).Info("Logged in with session cookies")
	return s.pacer.SleepFor(ctx, loginSettle)
}

// Stop detaches the guard and closes the browser. Safe to call twice.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		if s.stopWatch != nil {
			s.stopWatch()
			<-s.watchDone
		}
		if s.driver != nil {
			if err := s.driver.Close(); err != nil {
				s.log.WithError(err).Warn("Failed to close browser")
			}
		}
		logger.LogComponentStop("session", "stopped")
	})
}

// OpenProfile navigates the main tab to the profile page and waits for it
// to render. Navigation is retried up to main.max_retries times.
func (s *Session) OpenProfile(ctx context.Context, name string) error {
	if s.guarded == nil {
		return errs.Setup("open profile", "session not started")
	}
	if !instagram.IsValidUsername(name) {
		return errs.Setup("open profile", fmt.Sprintf("invalid profile name %q", name))
	}

	main := s.driver.Main()
	url := instagram.ProfileURL(name)
	rc := retry.DefaultConfig()
	rc.MaxAttempts = s.cfg.Main.MaxRetries + 1
	rc.Context = ctx
	rc.Logger = s.log
	rc.RetryIf = func(err error) bool {
		return ctx.Err() == nil
	}
	err := retry.Do(func() error {
		if err := s.guarded.Navigate(ctx, main, url); err != nil {
			return errs.Wrap(errs.ErrorTypeTransient, "open profile", err)
		}
		return nil
	}, rc)
	if err != nil {
		return err
	}

	feed := collector.NewProfileFeed(s.guarded, main, s.pacer)
	ready, err := feed.WaitReady(ctx, minProfileSections, s.cfg.Browser.PageTimeout())
	if err != nil {
		return errs.Wrap(errs.ErrorTypeTransient, "open profile", err)
	}
	if !ready {
		s.log.WithField("profile", name).Warn("Profile page did not finish rendering, continuing")
	}
	s.log.WithField("profile", name).Info("Profile opened")
	return nil
}

// Collect loads the cached candidates of the profile, or scrolls the open
// profile page for them and caches the result, then filters out what the
// metadata store already holds.
func (s *Session) Collect(ctx context.Context, pcfg *config.Config) (*Work, error) {
	profile := pcfg.Main.TargetProfile
	work := &Work{Profile: profile}

	candidates, cached, err := urlstore.LoadCandidates(pcfg.Data.PostsPath)
	if err != nil {
		return nil, err
	}

	if cached {
		s.log.WithFields(map[string]interface{}{
			"profile":    profile,
			"candidates": len(candidates),
			"path":       pcfg.Data.PostsPath,
		}).Info("Loaded cached post URLs")
	} else {
		opts := collector.DefaultOptions()
		opts.ExcludeMarker = pcfg.Main.ExcludeMarker
		opts.StallLimit = pcfg.Main.PageScrollRetries

		feed := collector.NewProfileFeed(s.guarded, s.driver.Main(), s.pacer)
		col := collector.New(feed, s.pacer, opts).Collect(ctx, pcfg.Main.NumPosts)
		work.Collection = &col
		candidates = col.URLs

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// an empty list would pin the profile to nothing on the next run
		if len(candidates) > 0 {
			if err := urlstore.SaveCandidates(pcfg.Data.PostsPath, candidates); err != nil {
				return nil, err
			}
		}
		s.log.WithFields(map[string]interface{}{
			"profile":    profile,
			"candidates": len(candidates),
			"state":      col.State.String(),
			"scrolls":    col.Scrolls,
		}).Info("Collected post URLs")
	}

	processed, err := urlstore.LoadProcessed(pcfg.Data.MetadataPath)
	if err != nil {
		return nil, err
	}

	work.Candidates = candidates
	work.Cached = cached
	work.Processed = processed
	work.Outstanding = urlstore.Outstanding(candidates, processed)

	s.log.WithFields(map[string]interface{}{
		"profile":     profile,
		"outstanding": len(work.Outstanding),
		"processed":   len(processed),
	}).Info("Outstanding posts computed")
	return work, nil
}

// ScrapeBatches runs the orchestrator over the outstanding posts of work,
// keeping the run manifest current. When the browser has no tab left the
// report is returned together with an exhausted error.
func (s *Session) ScrapeBatches(ctx context.Context, pcfg *config.Config, work *Work, reporter orchestrator.Reporter) (orchestrator.Report, error) {
	if s.guarded == nil {
		return orchestrator.Report{}, errs.Setup("scrape", "session not started")
	}
	if len(work.Outstanding) == 0 {
		return orchestrator.Report{}, nil
	}
	if reporter == nil {
		reporter = orchestrator.NopReporter{}
	}

	paths := checkpoint.Paths{
		Metadata: pcfg.Data.MetadataPath,
		Skipped:  pcfg.Data.SkippedPath,
		Staging:  pcfg.Data.TmpPath,
	}
	cp := checkpoint.New(paths, work.Processed)

	manifests := checkpoint.NewManager(pcfg.Data.ManifestPath)
	manifest, err := manifests.Create(work.Profile, len(work.Candidates), len(work.Processed))
	if err != nil {
		s.log.WithError(err).WithField("path", manifests.Path()).Warn("Run manifest unavailable, continuing without it")
	}
	progress := &manifestReporter{next: reporter, manifests: manifests, manifest: manifest, log: s.log}

	pacing := orchestrator.DefaultPacing(pcfg.Main.RateLimitWindow())
	if d := pcfg.Main.MouseMoveDuration(); d > 0 {
		pacing.MouseMove = d
	}

	x := s.opts.Extractor(s.guarded, s.pacer, pcfg)
	orch := orchestrator.New(s.guarded, x, cp, s.pacer, pacing).
		WithLimiter(s.limiter).
		WithReporter(progress)
	orch.Profile = work.Profile
	orch.CommentSteps = pcfg.Main.CommentScrollSteps

	batchSize := pcfg.Main.BatchSize
	if pcfg.Main.RandomizeBatch {
		batchSize = s.pacer.IntBetween(batchSize, batchSize+4)
	}

	violationsBefore := s.guard.Violations()
	s.current.Store(orch)
	defer s.current.Store(nil)

	report, err := orch.ScrapeBatches(ctx, work.Outstanding, orchestrator.Options{
		BatchSize:  batchSize,
		SaveEvery:  pcfg.Main.SaveEvery,
		TabRetries: pcfg.Main.TabOpenRetries,
		Debug:      pcfg.Browser.Debug,
	})

	succeeded, skipped := len(report.Succeeded), len(report.Skipped)
	progress.note(cp.ProcessedCount(), s.guard.Violations()-violationsBefore)
	switch {
	case err != nil:
		progress.abort(err.Error(), succeeded, skipped)
		return report, err
	case report.Aborted:
		progress.abort("no browser tabs left", succeeded, skipped)
		return report, errs.New(errs.ErrorTypeExhausted, "scrape", "no browser tabs left")
	}
	progress.complete(succeeded, skipped)
	return report, nil
}

// manifestReporter forwards progress events and records the running totals
// in the run manifest after every batch
type manifestReporter struct {
	next      orchestrator.Reporter
	manifests *checkpoint.Manager
	manifest  *checkpoint.Manifest
	log       logger.Logger

	succeeded, skipped int
}

func (r *manifestReporter) BatchStarted(batch, batches, size int) {
	r.next.BatchStarted(batch, batches, size)
}

func (r *manifestReporter) ItemDone(index int, url string) {
	r.succeeded++
	r.next.ItemDone(index, url)
}

func (r *manifestReporter) ItemSkipped(index int, url, reason string) {
	r.skipped++
	r.next.ItemSkipped(index, url, reason)
}

func (r *manifestReporter) BatchDone(batch, batches, succeeded, skipped int) {
	if r.manifest != nil {
		if err := r.manifests.Progress(r.manifest, r.succeeded, r.skipped); err != nil {
			r.log.WithError(err).Warn("Failed to update run manifest")
		}
	}
	r.next.BatchDone(batch, batches, succeeded, skipped)
}

// note records the processed-set size and the guard violations of the run
func (r *manifestReporter) note(recorded, violations int) {
	if r.manifest == nil {
		return
	}
	r.manifest.Recorded = recorded
	r.manifest.GuardViolations = violations
}

func (r *manifestReporter) complete(succeeded, skipped int) {
	if r.manifest == nil {
		return
	}
	if err := r.manifests.Complete(r.manifest, succeeded, skipped); err != nil {
		r.log.WithError(err).Warn("Failed to complete run manifest")
	}
}

func (r *manifestReporter) abort(reason string, succeeded, skipped int) {
	if r.manifest == nil {
		return
	}
	if err := r.manifests.Abort(r.manifest, reason, succeeded, skipped); err != nil {
		r.log.WithError(err).Warn("Failed to abort run manifest")
	}
}
