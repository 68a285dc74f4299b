package main

import (
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/lepinkainen/blog-mirror/internal/config"
	"github.com/lepinkainen/blog-mirror/pkg/filesystem"
)

// logLevel picks debug when asked, info for the long-running server and
// warn for one-shot commands
func logLevel(debug, longRunning bool) slog.Level {
	switch {
	case debug:
		return slog.LevelDebug
	case longRunning:
		return slog.LevelInfo
	default:
		return slog.LevelWarn
	}
}

// setupLogging configures the default logger. With log.file set, JSON lines
// go to a rotated file; otherwise the standard handler writes to stderr.
// The returned func flushes and closes the file.
func setupLogging(cfg *config.Config, debug, longRunning bool) func() {
	level := logLevel(debug, longRunning)

	if cfg.Log.File == "" {
		slog.SetLogLoggerLevel(level)
		return func() {}
	}

	if err := filesystem.EnsureDirectoryExists(cfg.Log.File); err != nil {
		slog.SetLogLoggerLevel(level)
		slog.Warn("Cannot create log directory, logging to stderr", "file", cfg.Log.File, "error", err)
		return func() {}
	}

	writer := &lumberjack.Logger{
		Filename:   cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,    // MB
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,     // days
		Compress:   true,
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: level})))

	return func() {
		_ = writer.Close()
	}
}
