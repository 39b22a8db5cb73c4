package app

import (
	"io"
	"log/slog"
)

// newLogger builds an isolated logger; it never replaces the default one.
func newLogger(levelStr, formatStr string, outW io.Writer) *slog.Logger {
	if outW == nil {
		return slog.New(slog.DiscardHandler)
	}

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if formatStr == "json" {
		handler = slog.NewJSONHandler(outW, handlerOpts)
	} else {
		handler = slog.NewTextHandler(outW, handlerOpts)
	}
	return slog.New(handler)
}
