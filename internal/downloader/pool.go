// Package downloader fetches post media concurrently, off the browser
// goroutine.
package downloader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"igharvest/pkg/instagram"
	"igharvest/pkg/logger"
	"igharvest/pkg/metadata"
	"igharvest/pkg/models"
	"igharvest/pkg/ratelimit"
	"igharvest/pkg/storage"
)

// MediaJob is one media file of a scraped post
type MediaJob struct {
	Record    *models.PostRecord
	Shortcode string
	Index     int
	URL       string
}

// Key names the job's file in storage
func (j MediaJob) Key() string {
	dir := j.Shortcode
	if dir == "" {
		dir = j.Record.PostID
	}
	return storage.MediaKey(dir, j.Index)
}

// JobsFor expands a record into one job per image with a source URL
func JobsFor(rec *models.PostRecord) []MediaJob {
	shortcode, _ := instagram.Shortcode(rec.PostURL)
	var jobs []MediaJob
	for i, img := range rec.Images {
		if img.Src == "" {
			continue
		}
		jobs = append(jobs, MediaJob{Record: rec, Shortcode: shortcode, Index: i, URL: img.Src})
	}
	return jobs
}

// DownloadResult is the outcome of a MediaJob
type DownloadResult struct {
	Job         MediaJob
	Success     bool
	Cached      bool
	Path        string
	ContentType string
	Error       error
	Duration    time.Duration
	Size        int
}

// MediaFetcher downloads a media URL
type MediaFetcher interface {
	Download(ctx context.Context, url string) (*instagram.Media, error)
}

// MediaStorage stores media files by key
type MediaStorage interface {
	Lookup(key string) (string, bool)
	SaveMedia(r io.Reader, key, ext string) (string, error)
}

// WorkerPool manages concurrent download workers
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan MediaJob
	resultQueue chan DownloadResult
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	fetcher     MediaFetcher
	storage     MediaStorage
	rateLimiter ratelimit.Limiter
	logger      logger.Logger
}

// NewWorkerPool creates a download pool bound to ctx. rateLimiter may be nil.
func NewWorkerPool(
	ctx context.Context,
	numWorkers int,
	fetcher MediaFetcher,
	store MediaStorage,
	rateLimiter ratelimit.Limiter,
	log logger.Logger,
) *WorkerPool {
	ctx, cancel := context.WithCancel(ctx)

	if log == nil {
		log = logger.GetLogger()
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan MediaJob, numWorkers*2),
		resultQueue: make(chan DownloadResult, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		fetcher:     fetcher,
		storage:     store,
		rateLimiter: rateLimiter,
		logger:      log,
	}
}

// Start launches the workers
func (wp *WorkerPool) Start() {
	wp.logger.InfoWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the queue, waits for queued jobs to finish and closes Results
func (wp *WorkerPool) Stop() {
	wp.logger.Info("Stopping worker pool...")

	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()

	wp.logger.Info("Worker pool stopped")
}

// Submit queues a job. It fails once the pool's context is done.
func (wp *WorkerPool) Submit(job MediaJob) error {
	if wp.ctx.Err() != nil {
		return fmt.Errorf("worker pool is shutting down")
	}
	select {
	case wp.jobQueue <- job:
		wp.logger.DebugWithFields("Job submitted to queue", map[string]interface{}{
			"key": job.Key(),
			"url": job.URL,
		})
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	}
}

// Results returns the result channel for consuming download results
func (wp *WorkerPool) Results() <-chan DownloadResult {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		if wp.ctx.Err() != nil {
			// drain so Stop does not block on a full queue
			continue
		}

		result := wp.processJob(job, id)

		select {
		case wp.resultQueue <- result:
		case <-wp.ctx.Done():
		}
	}

	wp.logger.DebugWithFields("Worker stopping - job queue closed", map[string]interface{}{
		"worker_id": id,
	})
}

func (wp *WorkerPool) processJob(job MediaJob, workerID int) DownloadResult {
	start := time.Now()
	result := DownloadResult{Job: job}
	key := job.Key()

	if path, ok := wp.storage.Lookup(key); ok {
		wp.logger.DebugWithFields("Media already downloaded", map[string]interface{}{
			"worker_id": workerID,
			"key":       key,
		})
		if !metadata.MetadataExists(path) {
			wp.restoreSidecar(job, path)
		}
		result.Success = true
		result.Cached = true
		result.Path = path
		result.Duration = time.Since(start)
		return result
	}

	if wp.rateLimiter != nil {
		if err := wp.rateLimiter.Wait(wp.ctx); err != nil {
			result.Error = err
			result.Duration = time.Since(start)
			return result
		}
	}

	media, err := wp.fetcher.Download(wp.ctx, job.URL)
	if err != nil {
		result.Error = fmt.Errorf("download failed: %w", err)
		result.Duration = time.Since(start)

		wp.logger.ErrorWithFields("Worker failed to download media", map[string]interface{}{
			"worker_id": workerID,
			"key":       key,
			"error":     err.Error(),
			"duration":  result.Duration,
		})
		return result
	}

	result.Size = len(media.Data)
	result.ContentType = media.ContentType

	path, err := wp.storage.SaveMedia(bytes.NewReader(media.Data), key, instagram.ExtensionFor(media.ContentType))
	if err != nil {
		result.Error = fmt.Errorf("save failed: %w", err)
		result.Duration = time.Since(start)

		wp.logger.ErrorWithFields("Worker failed to save media", map[string]interface{}{
			"worker_id": workerID,
			"key":       key,
			"error":     err.Error(),
			"size":      result.Size,
		})
		return result
	}
	result.Path = path

	sidecar := metadata.FromRecord(*job.Record, job.Shortcode, job.Index, media.ContentType, int64(result.Size))
	if err := sidecar.Save(path); err != nil {
		wp.logger.WithError(err).WithField("path", path).Warn("Failed to write media metadata")
	}

	result.Success = true
	result.Duration = time.Since(start)

	wp.logger.DebugWithFields("Worker completed job successfully", map[string]interface{}{
		"worker_id": workerID,
		"key":       key,
		"size":      result.Size,
		"duration":  result.Duration,
		"caption":   sidecar.GetFormattedCaption(60),
	})

	return result
}

// restoreSidecar rewrites the metadata of a stored file whose sidecar is
// missing
func (wp *WorkerPool) restoreSidecar(job MediaJob, path string) {
	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}
	sidecar := metadata.FromRecord(*job.Record, job.Shortcode, job.Index, "", size)
	if err := sidecar.Save(path); err != nil {
		wp.logger.WithError(err).WithField("path", path).Warn("Failed to restore media metadata")
	}
}
