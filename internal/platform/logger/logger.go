// Package logger builds the process-wide structured logger. Everything
// downstream takes a *slog.Logger; only main constructs one.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// New returns a JSON logger at the given level. Unknown or empty levels
// fall back to info so a typo in LOG_LEVEL never silences the service.
func New(level string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
