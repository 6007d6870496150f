package logger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs HTTP request information
func LogRequest(method, url string, statusCode int, duration float64) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": duration,
	}

	if statusCode >= 200 && statusCode < 300 {
		GetLogger().DebugWithFields("HTTP request completed", fields)
	} else if statusCode >= 400 && statusCode < 500 {
		GetLogger().WarnWithFields("HTTP request client error", fields)
	} else if statusCode >= 500 {
		GetLogger().ErrorWithFields("HTTP request server error", fields)
	}
}

// LogDownload logs media download operations
func LogDownload(profile, postID, mediaURL string, success bool, err error) {
	fields := map[string]interface{}{
		"profile":   profile,
		"post_id":   postID,
		"media_url": mediaURL,
		"success":   success,
	}

	logger := GetLogger().WithFields(fields)

	if err != nil {
		logger.WithError(err).Error("Download failed")
	} else if success {
		logger.Info("Download completed")
	} else {
		logger.Warn("Download skipped")
	}
}

// LogPacing logs a deliberate delay
func LogPacing(reason string, delay time.Duration) {
	GetLogger().WithFields(map[string]interface{}{
		"reason": reason,
		"delay":  delay,
	}).Debug("Pacing")
}

// LogBatchProgress logs progress through the outstanding work
func LogBatchProgress(profile string, batch, batches, succeeded, skipped int) {
	percentage := 0.0
	if batches > 0 {
		percentage = float64(batch) / float64(batches) * 100
	}

	GetLogger().WithFields(map[string]interface{}{
		"profile":    profile,
		"batch":      batch,
		"batches":    batches,
		"succeeded":  succeeded,
		"skipped":    skipped,
		"percentage": fmt.Sprintf("%.1f%%", percentage),
	}).Info("Batch complete")
}

// LogSkip logs an item that will not be retried in this run
func LogSkip(profile string, index int, url, reason string) {
	GetLogger().WithFields(map[string]interface{}{
		"profile": profile,
		"index":   index,
		"url":     url,
		"reason":  reason,
	}).Warn("Item skipped")
}

// LogCheckpoint logs a flush into the durable stores
func LogCheckpoint(path string, succeeded, skipped int) {
	GetLogger().WithFields(map[string]interface{}{
		"path":      path,
		"succeeded": succeeded,
		"skipped":   skipped,
	}).Info("Checkpoint flushed")
}

// LogComponentStart logs when a component starts
func LogComponentStart(component string, config map[string]interface{}) {
	logger := GetLogger().WithField("component", component)

	if len(config) > 0 {
		logger = logger.WithFields(config)
	}

	logger.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(component string, reason string) {
	GetLogger().WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// LogMetrics logs run metrics
func LogMetrics(operation string, metrics map[string]interface{}) {
	fields := map[string]interface{}{
		"operation": operation,
		"type":      "metrics",
	}

	for k, v := range metrics {
		fields[k] = v
	}

	GetLogger().InfoWithFields("Run metrics", fields)
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

// nopLogger is a logger that does nothing (useful for testing)
type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }
