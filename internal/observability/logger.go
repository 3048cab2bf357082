// Package observability wires structured logging and RED metrics for
// gcodeslots, scaled down from a distributed-tracing setup to a single CLI
// process: no span propagation, no OTLP exporter — just a process-local
// Prometheus registry and a leveled slog logger.
package observability

import (
	"log/slog"
	"os"
)

// NewLogger builds the process-wide structured logger. format selects
// "json" (the default, for log aggregation) or "text" (for interactive
// terminal use); level parses any valid slog level name.
func NewLogger(level, format, output string) *slog.Logger {
	var w = os.Stdout
	if output == "stderr" {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}

	return l
}
