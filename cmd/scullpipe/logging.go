package main

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/raceant/scull/config"
)

// setupLogger writes to w; relay mode owns stdout, so main passes stderr.
func setupLogger(level, format string, w io.Writer) (*slog.Logger, error) {
	logLevel, err := config.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: logLevel == slog.LevelDebug,
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case config.LogFormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler).With(
		"service", appName,
		"version", Version,
		"pid", os.Getpid(),
	), nil
}
