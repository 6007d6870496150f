package checkpoint

import (
	"errors"
	"fmt"
	"sync"

	"igharvest/pkg/logger"
	"igharvest/pkg/models"
	"igharvest/pkg/storage"
	"igharvest/pkg/urlstore"
)

// Paths locates the JSON-lines stores of one profile
type Paths struct {
	Metadata string
	Skipped  string
	Staging  string
}

// Buffer holds results that are durable in staging but not yet flushed
type Buffer struct {
	Records []models.PostRecord
	Skips   []models.SkipRecord
}

// AddRecord buffers a successful result
func (b *Buffer) AddRecord(r models.PostRecord) {
	b.Records = append(b.Records, r)
}

// AddSkip buffers a skip
func (b *Buffer) AddSkip(s models.SkipRecord) {
	b.Skips = append(b.Skips, s)
}

// Len returns the number of buffered entries
func (b *Buffer) Len() int {
	return len(b.Records) + len(b.Skips)
}

// Checkpointer persists every result as soon as it exists and moves
// buffered results into the append-only stores on Flush.
type Checkpointer struct {
	paths     Paths
	processed urlstore.Set
	mu        sync.Mutex
	logger    logger.Logger
}

// New creates a checkpointer. processed is the live set loaded at session
// start; it is extended with every flushed post URL.
func New(paths Paths, processed urlstore.Set) *Checkpointer {
	if processed == nil {
		processed = make(urlstore.Set)
	}
	return &Checkpointer{
		paths:     paths,
		processed: processed,
		logger:    logger.GetLogger().WithField("component", "checkpoint"),
	}
}

// AppendIntermediate writes record to the staging file. Failures are
// logged and do not stop processing.
func (c *Checkpointer) AppendIntermediate(record models.PostRecord) {
	if err := storage.AppendJSONLines(c.paths.Staging, record); err != nil {
		c.logger.WithError(err).WithField("post_url", record.PostURL).Warn("Failed to stage result")
	}
}

// Flush appends the buffered records and skips to the durable stores.
// Whatever was written is removed from buf; what failed stays buffered for
// the next Flush. Records are marked processed only once written.
func (c *Checkpointer) Flush(buf *Buffer) error {
	if buf == nil || buf.Len() == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var flushErr error
	succeeded, skipped := len(buf.Records), len(buf.Skips)

	if len(buf.Records) > 0 {
		records := make([]interface{}, len(buf.Records))
		for i := range buf.Records {
			records[i] = buf.Records[i]
		}
		if err := storage.AppendJSONLines(c.paths.Metadata, records...); err != nil {
			flushErr = errors.Join(flushErr, fmt.Errorf("failed to flush metadata: %w", err))
		} else {
			for _, r := range buf.Records {
				c.processed.Add(r.PostURL)
			}
			buf.Records = buf.Records[:0]
		}
	}

	if len(buf.Skips) > 0 {
		skips := make([]interface{}, len(buf.Skips))
		for i := range buf.Skips {
			skips[i] = buf.Skips[i]
		}
		if err := storage.AppendJSONLines(c.paths.Skipped, skips...); err != nil {
			flushErr = errors.Join(flushErr, fmt.Errorf("failed to flush skipped: %w", err))
		} else {
			buf.Skips = buf.Skips[:0]
		}
	}

	if flushErr != nil {
		c.logger.WithFields(map[string]interface{}{
			"records_kept": len(buf.Records),
			"skips_kept":   len(buf.Skips),
		}).Warn("Flush incomplete, unwritten entries stay buffered")
		return flushErr
	}
	logger.LogCheckpoint(c.paths.Metadata, succeeded, skipped)
	return nil
}

// ClearStaging truncates the staging file
func (c *Checkpointer) ClearStaging() error {
	if err := storage.Truncate(c.paths.Staging); err != nil {
		return fmt.Errorf("failed to clear staging: %w", err)
	}
	return nil
}

// ProcessedCount returns the size of the live processed set
func (c *Checkpointer) ProcessedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.processed)
}
