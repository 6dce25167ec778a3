// Package logger provides structured logging setup for Greenlight.
package logger

import (
	"log/slog"
	"os"
	"strings"

	"github.com/greenlight-hq/greenlight/internal/config"
)

// New creates a *slog.Logger from the given Logging config.
// Output is JSON to stdout with a "service" attribute on every record.
func New(cfg config.Logging) *slog.Logger {
	return slog.New(newHandler(cfg)).With("service", cfg.Service)
}

// asyncQueueSize bounds buffered records before drops start. At JSON
// handler throughput this absorbs multi-second stalls of stdout.
const asyncQueueSize = 1024

// NewAsync creates a *slog.Logger whose records are written by a
// background worker, so the decision hot path only enqueues. The
// returned Closer flushes remaining records and must be called on
// shutdown.
func NewAsync(cfg config.Logging) (*slog.Logger, Closer) {
	h := NewAsyncHandler(newHandler(cfg), asyncQueueSize)
	return slog.New(h).With("service", cfg.Service), h
}

func newHandler(cfg config.Logging) slog.Handler {
	return slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	})
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
