package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New builds the process logger writing to stdout.
func New(lvl string, addSource bool, environment string, attrs ...slog.Attr) *slog.Logger {
	return NewWithWriter(os.Stdout, lvl, addSource, environment, attrs...)
}

// NewWithWriter builds a logger writing to w. Production environments get
// JSON records, everything else gets text. Every record carries the
// environment plus any extra attrs.
func NewWithWriter(w io.Writer, lvl string, addSource bool, environment string, attrs ...slog.Attr) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(lvl),
		AddSource: addSource,
	}

	var handler slog.Handler
	if strings.ToLower(environment) == "prod" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	handler = handler.WithAttrs(append([]slog.Attr{slog.String("environment", environment)}, attrs...))

	return slog.New(handler)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
