// Package logx sets up the process-wide slog logger. Components take a
// *slog.Logger and tag it with their name via With("component", ...).
package logx

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	logger *slog.Logger
	once   sync.Once
)

// ParseLevel maps debug/info/warn/error to a slog level; anything else is
// info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// New builds a logger writing to w. Format "json" selects the JSON handler;
// anything else is text.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Init installs the global logger on first call. CYBOT_LOG_FORMAT=json
// switches to JSON output.
func Init(level string) *slog.Logger {
	once.Do(func() {
		logger = New(os.Stdout, level, os.Getenv("CYBOT_LOG_FORMAT"))
		slog.SetDefault(logger)
	})
	return logger
}

// L returns the global logger, initializing it at info level if needed.
func L() *slog.Logger {
	return Init("info")
}

// With returns the global logger with extra attributes.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}

// LevelName is the lowercase name used in operator-facing log events.
func LevelName(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "error"
	case l >= slog.LevelWarn:
		return "warn"
	case l >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}
