package logger

import (
	"io"
	"log/slog"
	"os"
)

// Init configures the process-wide slog logger. Development gets a debug-level
// text handler with source locations; everything else gets JSON at info level.
func Init(environment string, jsonOutput bool) *slog.Logger {
	return New(os.Stdout, environment, jsonOutput)
}

// New builds the logger on w and installs it as the slog default.
func New(w io.Writer, environment string, jsonOutput bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if environment == "development" {
		opts.Level = slog.LevelDebug
		opts.AddSource = true
	}

	var handler slog.Handler
	if jsonOutput {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	l := slog.New(handler).With("logger", "app")
	slog.SetDefault(l)
	return l
}
