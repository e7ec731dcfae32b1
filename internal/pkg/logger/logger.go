package logger

import (
	"io"
	"log/slog"
	"os"
)

// New builds the process logger: JSON at info level for production, text at
// debug level otherwise. Every record carries the service name and env.
func New(service, env string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	var h slog.Handler
	switch env {
	case "production", "prod":
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	default:
		h = slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	return slog.New(h).With(
		slog.String("service", service),
		slog.String("env", env),
	)
}
