// Package logger provides the structured logging interface used across igharvest.
//
// It wraps zerolog behind a small Logger interface:
//
//	cfg := &config.LoggingConfig{Level: "info", File: "logs/igharvest.log", MaxSize: 50}
//	if err := logger.Initialize(cfg); err != nil {
//	    return err
//	}
//	logger.WithField("profile", "natgeo").Info("Collection started")
//
// Console output is colorized. When File is set the same events are also
// written to a rotating file (lumberjack) honoring MaxSize, MaxBackups,
// MaxAge and Compress.
//
// Components take a Logger in their constructors; tests pass NewTestLogger()
// or NewNopLogger().
package logger
