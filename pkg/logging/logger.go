// Package logging wraps slog with the JSON setup shared by the API and the
// reminder worker.
package logging

import (
	"log/slog"
	"os"
)

// Logger is a slog.Logger emitting JSON to stdout.
type Logger struct {
	*slog.Logger
}

// New creates a logger at the named level. Unknown names fall back to info.
func New(level string) *Logger {
	logLevel := slog.LevelInfo
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	return &Logger{Logger: slog.New(handler)}
}

// Default returns an info-level logger.
func Default() *Logger {
	return New("info")
}

// WithComponent returns a child logger tagged with the component name.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{Logger: l.Logger.With("component", name)}
}
