package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/raceant/scull/errors"
	"github.com/raceant/scull/metric"
	"github.com/raceant/scull/pipe"
	"github.com/raceant/scull/pkg/worker"
)

// Publisher sends a message on a subject. natsclient.Client satisfies it.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// NATSConfig configures the NATS notifier.
type NATSConfig struct {
	// SubjectPrefix is prepended to "<pipe>.readable".
	SubjectPrefix string
	Workers       int
	QueueSize     int
	// RateLimit caps events per second across all pipes. Zero disables it.
	RateLimit float64
	Burst     int
	// PublishTimeout bounds each publish call.
	PublishTimeout time.Duration
}

// DefaultNATSConfig returns the notifier defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		SubjectPrefix:  "scull",
		Workers:        2,
		QueueSize:      256,
		PublishTimeout: 2 * time.Second,
	}
}

// NATS publishes events as JSON. Publishing happens on a worker pool, so
// NotifyDataAvailable only enqueues.
type NATS struct {
	publisher Publisher
	cfg       NATSConfig
	pool      *worker.Pool[pipe.Event]
	limiter   *rate.Limiter
	logger    *slog.Logger
	metrics   *metric.Metrics
}

var _ pipe.Notifier = (*NATS)(nil)

// NewNATS creates a NATS notifier. Call Start before the first event.
func NewNATS(pub Publisher, cfg NATSConfig, opts ...Option) (*NATS, error) {
	if pub == nil {
		return nil, errors.WrapInvalid(errors.ErrNoConnection, "NATS", "NewNATS", "validate publisher")
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = DefaultNATSConfig().SubjectPrefix
	}
	cfg.SubjectPrefix = strings.TrimSuffix(cfg.SubjectPrefix, ".")
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultNATSConfig().PublishTimeout
	}

	o := applyOptions(opts...)
	n := &NATS{
		publisher: pub,
		cfg:       cfg,
		logger:    o.logger.With("component", "notify", "notifier", "nats"),
		metrics:   o.metrics,
	}

	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		n.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	poolOpts := []worker.Option[pipe.Event]{
		worker.WithErrorHandler(n.publishFailed),
	}
	if o.registry != nil {
		poolOpts = append(poolOpts, worker.WithMetricsRegistry[pipe.Event](o.registry, "nats_notify"))
	}
	pool, err := worker.NewPool(cfg.Workers, cfg.QueueSize, n.publish, poolOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "NATS", "NewNATS", "create worker pool")
	}
	n.pool = pool
	return n, nil
}

// Subject returns the subject events for the named pipe are published on.
func (n *NATS) Subject(pipeName string) string {
	return fmt.Sprintf("%s.%s.readable", n.cfg.SubjectPrefix, pipeName)
}

// Start launches the publishing workers.
func (n *NATS) Start(ctx context.Context) error {
	if err := n.pool.Start(ctx); err != nil {
		return errors.Wrap(err, "NATS", "Start", "start worker pool")
	}
	return nil
}

// Stop drains queued events for up to timeout.
func (n *NATS) Stop(timeout time.Duration) error {
	if err := n.pool.Stop(timeout); err != nil {
		return errors.Wrap(err, "NATS", "Stop", "stop worker pool")
	}
	return nil
}

// Stats returns the worker pool statistics.
func (n *NATS) Stats() worker.PoolStats {
	return n.pool.Stats()
}

// NotifyDataAvailable implements pipe.Notifier.
func (n *NATS) NotifyDataAvailable(ev pipe.Event) {
	if n.limiter != nil && !n.limiter.Allow() {
		n.record("rate_limited")
		return
	}
	if err := n.pool.Submit(ev); err != nil {
		n.record("dropped")
	}
}

func (n *NATS) publish(ctx context.Context, ev pipe.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return errors.WrapInvalid(err, "NATS", "publish", "marshal event")
	}

	ctx, cancel := context.WithTimeout(ctx, n.cfg.PublishTimeout)
	defer cancel()

	if err := n.publisher.Publish(ctx, n.Subject(ev.Pipe), data); err != nil {
		return errors.WrapTransient(err, "NATS", "publish", "publish event")
	}
	n.record("delivered")
	return nil
}

func (n *NATS) publishFailed(ev pipe.Event, err error) {
	n.record("failed")
	n.logger.Warn("event publish failed", "pipe", ev.Pipe, "error", err)
}

func (n *NATS) record(outcome string) {
	if n.metrics != nil {
		n.metrics.RecordNotification("nats", outcome)
	}
}
