package notify

import (
	"log/slog"

	"github.com/raceant/scull/metric"
)

// Option configures a notifier.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	registry *metric.MetricsRegistry
	metrics  *metric.Metrics
}

// WithLogger sets the logger used for delivery failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics counts notification outcomes in the registry's core metrics.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(o *options) {
		if registry != nil {
			o.registry = registry
			o.metrics = registry.CoreMetrics()
		}
	}
}

func applyOptions(opts ...Option) *options {
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}
