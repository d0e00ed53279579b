package observability

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger creates a structured logger writing to stdout. format "text"
// selects the human-readable handler; anything else emits JSON.
func NewLogger(level slog.Level, format string) *slog.Logger {
	return newLogger(os.Stdout, level, format)
}

func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler).With("service", "storm-claims-risk")
}
