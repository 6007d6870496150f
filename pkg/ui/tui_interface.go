package ui

import (
	"igharvest/pkg/orchestrator"
	"igharvest/pkg/ratelimit"
)

// TUI is the full-screen run dashboard. It receives the orchestrator's
// progress events plus profile, media and log events from the pipeline.
type TUI interface {
	orchestrator.Reporter
	StartProfile(profile string, outstanding int)
	MediaSaved(key string, size int64, cached bool)
	MediaFailed(key string, err error)
	UpdateRateLimit(status ratelimit.Status)
	LogInfo(format string, args ...interface{})
	LogSuccess(format string, args ...interface{})
	LogWarning(format string, args ...interface{})
	LogError(format string, args ...interface{})
}
