package config

import (
	"io"
	"log/slog"
)

// NewLogger creates the JSON slog logger used by the CLI and the scheduler.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
