package notify

import (
	"context"
	"log/slog"

	"github.com/raceant/scull/pipe"
)

// Log writes each event to a logger at debug level.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a logging notifier. A nil logger uses slog.Default().
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger.With("component", "notify")}
}

// NotifyDataAvailable implements pipe.Notifier.
func (l *Log) NotifyDataAvailable(ev pipe.Event) {
	if !l.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	l.logger.Debug("data available",
		"pipe", ev.Pipe,
		"available", ev.Available,
		"observers", len(ev.Handles))
}
