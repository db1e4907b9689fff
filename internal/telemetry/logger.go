// Package telemetry provides observability for the Monco bot.
package telemetry

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger creates a structured JSON logger.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler)
}

// CommandLogger returns a logger carrying command-scoped fields so that
// every line from one slash-command invocation can be correlated.
func CommandLogger(logger *slog.Logger, command string, userID string) *slog.Logger {
	return logger.With(
		slog.String("command", command),
		slog.String("user_id", userID),
	)
}
