// Package cli holds the logic behind the astro commands, keeping the cobra
// definitions in cmd/astro thin.
package cli

import (
	"log/slog"

	"github.com/rishimeka/astro/internal/logging"
)

// NewLogger builds the process logger from config strings. Unknown values
// fall back to text format at info level.
func NewLogger(format, level string) *slog.Logger {
	lvl := parseLevel(level)
	if format == "json" {
		return logging.NewJSON(lvl)
	}
	return logging.New(lvl)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
