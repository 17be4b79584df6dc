package logging

import (
	"log/slog"
	"os"
	"strings"
)

// componentKey tags every pipeline component's log lines; Component is
// the only place that writes it.
const componentKey = "component"

// New creates a console slog.Logger at the given level. Unknown level
// strings resolve to info.
func New(level string) *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(handler)
}

// Component derives a child logger tagged with the pipeline component
// name.
func Component(logger *slog.Logger, name string) *slog.Logger {
	return logger.With(componentKey, name)
}

func parseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
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
