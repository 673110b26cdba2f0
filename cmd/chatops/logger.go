package main

import (
	"io"
	"log/slog"
	"strings"

	"github.com/hrygo/chatops/internal/profile"
)

// setupLogger installs the default slog logger described by the profile.
func setupLogger(p *profile.Profile, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(p.LogLevel),
		AddSource: p.IsDev(),
	}

	var handler slog.Handler
	if strings.EqualFold(p.LogFormat, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
