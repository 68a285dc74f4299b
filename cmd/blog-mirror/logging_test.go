package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lepinkainen/blog-mirror/internal/config"
)

func TestLogLevel(t *testing.T) {
	tests := []struct {
		name        string
		debug       bool
		longRunning bool
		expected    slog.Level
	}{
		{name: "Debug wins", debug: true, longRunning: false, expected: slog.LevelDebug},
		{name: "Server", debug: false, longRunning: true, expected: slog.LevelInfo},
		{name: "One-shot", debug: false, longRunning: false, expected: slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := logLevel(tt.debug, tt.longRunning); got != tt.expected {
				t.Errorf("logLevel() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSetupLoggingToFile(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	cfg := &config.Config{}
	cfg.Log.File = filepath.Join(t.TempDir(), "logs", "blog-mirror.log")
	cfg.Log.MaxSize = 1

	closeLog := setupLogging(cfg, false, true)
	slog.Info("hello from test", "key", "value")
	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be disabled at info level")
	}
	closeLog()

	data, err := os.ReadFile(cfg.Log.File)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello from test"`) {
		t.Errorf("log file = %s, want JSON line", data)
	}
}
