package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"igharvest/internal/downloader"
	"igharvest/pkg/auth"
	"igharvest/pkg/config"
	errs "igharvest/pkg/errors"
	"igharvest/pkg/instagram"
	"igharvest/pkg/logger"
	"igharvest/pkg/metadata"
	"igharvest/pkg/models"
	"igharvest/pkg/orchestrator"
	"igharvest/pkg/ratelimit"
	"igharvest/pkg/retry"
	"igharvest/pkg/storage"
	"igharvest/pkg/ui"
)

// PipelineOptions controls a Pipeline run
type PipelineOptions struct {
	// DryRun opens profiles and computes the outstanding work without
	// opening any post tab
	DryRun bool
	// TUI receives every event when set; otherwise progress goes to the
	// console
	TUI      ui.TUI
	Notifier *ui.Notifier
	// Fetcher overrides the media HTTP client
	Fetcher downloader.MediaFetcher
}

// ProfileResult is what a run did for one profile
type ProfileResult struct {
	Profile     string
	Candidates  int
	Outstanding int
	Report      orchestrator.Report
	Media       MediaSummary
	Err         error
}

// MediaSummary counts the media downloads of a profile
type MediaSummary struct {
	Saved  int
	Cached int
	Failed int
	Bytes  int64
}

// Pipeline harvests every configured profile, one after the other, over a
// single Session
type Pipeline struct {
	cfg     *config.Config
	session *Session
	opts    PipelineOptions
	log     logger.Logger
}

// NewPipeline creates a pipeline over session
func NewPipeline(cfg *config.Config, session *Session, opts PipelineOptions) *Pipeline {
	if opts.Notifier == nil {
		opts.Notifier = ui.NewNotifierFor(cfg.Notifications)
	}
	return &Pipeline{
		cfg:     cfg,
		session: session,
		opts:    opts,
		log:     logger.GetLogger().WithField("component", "pipeline"),
	}
}

// Run starts the session, harvests each target profile and stops the
// session. A failing profile is logged and the next one still runs; only an
// exhausted browser and cancellation end the run early.
func (p *Pipeline) Run(ctx context.Context) ([]ProfileResult, error) {
	targets := p.cfg.Targets()
	if len(targets) == 0 {
		return nil, errs.Setup("pipeline", "no target profiles configured")
	}

	if err := p.session.Start(ctx); err != nil {
		p.opts.Notifier.SendError("igharvest failed to start", err.Error())
		return nil, err
	}
	defer p.session.Stop()

	var results []ProfileResult
	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		pcfg := p.cfg.ForProfile(target)
		p.log.WithFields(map[string]interface{}{
			"profile":   target.Name,
			"num_posts": pcfg.Main.NumPosts,
		}).Info("Starting profile")

		res := p.runProfile(ctx, pcfg)
		results = append(results, res)

		if res.Err == nil {
			continue
		}
		if errors.Is(res.Err, context.Canceled) || errors.Is(res.Err, context.DeadlineExceeded) {
			return results, res.Err
		}
		p.log.WithError(res.Err).WithField("profile", target.Name).Error("Profile failed")
		p.infoUI(func(t ui.TUI) { t.LogError("@%s failed: %v", target.Name, res.Err) })
		if errs.Is(res.Err, errs.ErrorTypeExhausted) {
			p.opts.Notifier.SendError("igharvest stopped", res.Err.Error())
			return results, res.Err
		}
	}

	if !p.opts.DryRun {
		p.opts.Notifier.SendSuccess("igharvest finished", summarize(results))
	}
	return results, nil
}

func (p *Pipeline) infoUI(fn func(t ui.TUI)) {
	if p.opts.TUI != nil {
		fn(p.opts.TUI)
	}
}

func (p *Pipeline) runProfile(ctx context.Context, pcfg *config.Config) ProfileResult {
	profile := pcfg.Main.TargetProfile
	res := ProfileResult{Profile: profile}
	started := time.Now()

	if err := p.session.OpenProfile(ctx, profile); err != nil {
		res.Err = err
		return res
	}

	work, err := p.session.Collect(ctx, pcfg)
	if err != nil {
		res.Err = err
		return res
	}
	res.Candidates = len(work.Candidates)
	res.Outstanding = len(work.Outstanding)

	if p.opts.DryRun {
		p.log.WithFields(map[string]interface{}{
			"profile":     profile,
			"candidates":  res.Candidates,
			"processed":   len(work.Processed),
			"outstanding": res.Outstanding,
		}).Info("Dry run, no post tabs opened")
		return res
	}

	if res.Outstanding == 0 {
		p.log.WithField("profile", profile).Warn("No new posts to scrape, skipping profile")
		p.infoUI(func(t ui.TUI) { t.LogWarning("@%s has no new posts", profile) })
		return res
	}

	var (
		reporter orchestrator.Reporter
		bar      *ui.BarReporter
	)
	if p.opts.TUI != nil {
		p.opts.TUI.StartProfile(profile, res.Outstanding)
		reporter = &limitReporter{Reporter: p.opts.TUI, tui: p.opts.TUI, limiter: p.session.Limiter()}
	} else {
		bar = ui.NewBarReporter(profile, res.Outstanding)
		reporter = bar
	}

	report, err := p.session.ScrapeBatches(ctx, pcfg, work, reporter)
	res.Report = report
	if bar != nil {
		bar.Finish()
	}

	// an exhausted browser still leaves the harvested posts to download
	if pcfg.Download.Enabled && len(report.Succeeded) > 0 && ctx.Err() == nil {
		var tracker *ui.StatusTracker
		if bar != nil {
			tracker = bar.Tracker()
		}
		media, dlErr := p.downloadMedia(ctx, pcfg, report.Succeeded, tracker)
		res.Media = media
		if dlErr != nil {
			p.log.WithError(dlErr).WithField("profile", profile).Warn("Media downloads stopped early")
		}
	}

	if bar != nil {
		bar.Tracker().PrintSummary()
	} else {
		p.opts.TUI.LogSuccess("@%s: %d harvested, %d skipped", profile, len(report.Succeeded), len(report.Skipped))
	}
	logger.LogMetrics("profile", map[string]interface{}{
		"profile":      profile,
		"harvested":    len(report.Succeeded),
		"skipped":      len(report.Skipped),
		"aborted":      report.Aborted,
		"media_saved":  res.Media.Saved,
		"media_cached": res.Media.Cached,
		"media_failed": res.Media.Failed,
		"media_bytes":  res.Media.Bytes,
		"duration":     time.Since(started).String(),
	})
	if err == nil && len(p.cfg.Targets()) > 1 {
		p.opts.Notifier.SendNotification("@"+profile+" done",
			fmt.Sprintf("%d posts harvested, %d skipped", len(report.Succeeded), len(report.Skipped)))
	}

	res.Err = err
	return res
}

// downloadMedia fetches the images of records into the profile's media
// directory. Jobs are submitted and results drained concurrently.
func (p *Pipeline) downloadMedia(ctx context.Context, pcfg *config.Config, records []models.PostRecord, tracker *ui.StatusTracker) (MediaSummary, error) {
	var summary MediaSummary
	profile := pcfg.Main.TargetProfile

	store, err := storage.NewManager(pcfg.Data.MediaDir)
	if err != nil {
		return summary, err
	}

	var jobs []downloader.MediaJob
	for i := range records {
		jobs = append(jobs, downloader.JobsFor(&records[i])...)
	}
	if len(jobs) == 0 {
		return summary, nil
	}

	present := 0
	for _, job := range jobs {
		if store.IsDownloaded(job.Key()) {
			present++
		}
	}
	p.log.WithFields(map[string]interface{}{
		"profile":    profile,
		"jobs":       len(jobs),
		"present":    present,
		"media_dir":  pcfg.Data.MediaDir,
		"files_seen": store.GetDownloadedCount(),
	}).Info("Downloading media")

	limiter := ratelimit.NewTokenBucket(pcfg.Download.RequestsPerMinute, time.Minute)
	pool := downloader.NewWorkerPool(ctx, pcfg.Download.Concurrent, p.fetcher(pcfg), store, limiter, p.log)

	var display *ui.DownloadDisplay
	if p.opts.TUI == nil {
		display = ui.NewDownloadDisplay(profile, len(jobs), strings.EqualFold(pcfg.Logging.Level, "debug"))
	}

	g, gctx := errgroup.WithContext(ctx)
	pool.Start()

	g.Go(func() error {
		defer pool.Stop()
		for _, job := range jobs {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := pool.Submit(job); err != nil {
				return err
			}
		}
		return nil
	})

	g.Go(func() error {
		for result := range pool.Results() {
			key := result.Job.Key()
			logger.LogDownload(profile, result.Job.Record.PostID, result.Job.URL, result.Success, result.Error)

			var failure error
			if !result.Success {
				failure = result.Error
			}
			if tracker != nil {
				tracker.MediaDone(int64(result.Size), result.Cached, failure)
			}

			switch {
			case !result.Success:
				summary.Failed++
				if display != nil {
					display.FailDownload(key, result.Error)
				} else {
					p.opts.TUI.MediaFailed(key, result.Error)
				}
			default:
				if result.Cached {
					summary.Cached++
				} else {
					summary.Saved++
					summary.Bytes += int64(result.Size)
				}
				if display != nil {
					display.CompleteDownload(key, int64(result.Size), result.Cached)
				} else {
					p.opts.TUI.MediaSaved(key, int64(result.Size), result.Cached)
				}
			}
		}
		return nil
	})

	err = g.Wait()
	if display != nil {
		display.Complete()
	}

	if removed, cleanErr := metadata.CleanOrphanedMetadata(pcfg.Data.MediaDir); cleanErr != nil {
		p.log.WithError(cleanErr).Warn("Failed to clean orphaned media metadata")
	} else if removed > 0 {
		p.log.WithFields(map[string]interface{}{
			"profile": profile,
			"removed": removed,
		}).Info("Removed orphaned media metadata")
	}
	return summary, err
}

func (p *Pipeline) fetcher(pcfg *config.Config) downloader.MediaFetcher {
	if p.opts.Fetcher != nil {
		return p.opts.Fetcher
	}
	client := instagram.NewClient(pcfg.Download.Timeout(), p.log).
		WithRetrier(retry.NewHTTPRetrier(pcfg.Download.RetryAttempts, p.log))
	if ua := pcfg.Main.UserAgent; ua != "" {
		client.SetHeader("User-Agent", ua)
	}
	if acc := p.session.Account(); acc != nil && len(acc.Cookies) > 0 {
		client.SetHeader("Cookie", auth.HeaderValue(acc.Cookies))
	}
	return client
}

// limitReporter also pushes the tab-open limiter status to the TUI after
// every batch
type limitReporter struct {
	orchestrator.Reporter
	tui     ui.TUI
	limiter ratelimit.Limiter
}

func (r *limitReporter) BatchDone(batch, batches, succeeded, skipped int) {
	if r.limiter != nil {
		r.tui.UpdateRateLimit(r.limiter.Status())
	}
	r.Reporter.BatchDone(batch, batches, succeeded, skipped)
}

func summarize(results []ProfileResult) string {
	var succeeded, skipped, failed int
	for _, r := range results {
		succeeded += len(r.Report.Succeeded)
		skipped += len(r.Report.Skipped)
		if r.Err != nil {
			failed++
		}
	}
	return fmt.Sprintf("%d profiles: %d posts harvested, %d skipped, %d profiles failed", len(results), succeeded, skipped, failed)
}
