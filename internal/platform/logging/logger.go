package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pscheid92/planverify/internal/platform/correlation"
	"github.com/pscheid92/planverify/internal/platform/version"
)

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels, defaulting to info.
func ParseLevel(level string) slog.Level {
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

// New builds a correlation-aware logger writing JSON when format is "json" and text otherwise.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(correlation.NewHandler(handler))
}

// InitLogger installs the process-wide default logger on stdout, tagged with the build version.
func InitLogger(level, format string) *slog.Logger {
	logger := New(os.Stdout, level, format).With("service", "planverify", "version", version.Version)
	slog.SetDefault(logger)
	return logger
}
