package worker

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/raceant/scull/errors"
	"github.com/raceant/scull/metric"
)

// Sentinel errors for worker pool operations
var (
	ErrPoolNotStarted     = stderrors.New("worker pool not started")
	ErrPoolStopped        = stderrors.New("worker pool stopped")
	ErrPoolAlreadyStarted = stderrors.New("worker pool already started")
	ErrQueueFull          = stderrors.New("worker pool queue full")
	ErrNilProcessor       = stderrors.New("processor function cannot be nil")
	ErrStopTimeout        = stderrors.New("timeout waiting for workers to stop")
)

// Pool processes work items of type T on a fixed set of goroutines.
type Pool[T any] struct {
	workers   int
	queueSize int
	processor func(context.Context, T) error
	onError   func(T, error)

	workChan chan T
	stopCh   chan struct{}
	wg       sync.WaitGroup
	metrics  *poolMetrics

	lifecycleMu sync.Mutex
	started     bool
	stopped     bool

	submitted atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64

	metricsRegistry *metric.MetricsRegistry
	name            string
}

type poolMetrics struct {
	queueDepth     prometheus.Gauge
	submitted      prometheus.Counter
	processed      prometheus.Counter
	failed         prometheus.Counter
	dropped        prometheus.Counter
	processingTime prometheus.Histogram
}

// Option configures a Pool.
type Option[T any] func(*Pool[T])

// WithMetricsRegistry exports pool metrics labelled with name.
func WithMetricsRegistry[T any](registry *metric.MetricsRegistry, name string) Option[T] {
	return func(p *Pool[T]) {
		p.metricsRegistry = registry
		p.name = name
	}
}

// WithErrorHandler is called from the worker goroutine for every item the
// processor fails on.
func WithErrorHandler[T any](fn func(T, error)) Option[T] {
	return func(p *Pool[T]) {
		p.onError = fn
	}
}

// NewPool creates a pool. Non-positive workers and queueSize fall back to
// 1 and 256.
func NewPool[T any](workers, queueSize int, processor func(context.Context, T) error, opts ...Option[T]) (*Pool[T], error) {
	if processor == nil {
		return nil, errors.WrapInvalid(ErrNilProcessor, "Pool", "NewPool", "validate processor")
	}
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 256
	}

	p := &Pool[T]{
		workers:   workers,
		queueSize: queueSize,
		processor: processor,
		workChan:  make(chan T, queueSize),
		stopCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	if p.metricsRegistry != nil && p.name != "" {
		if err := p.initializeMetrics(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Pool[T]) initializeMetrics() error {
	labels := prometheus.Labels{"pool": p.name}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scull", Subsystem: "worker", Name: name, Help: help, ConstLabels: labels,
		})
	}

	m := &poolMetrics{
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "scull", Subsystem: "worker", Name: "queue_depth",
			Help: "Current worker pool queue depth", ConstLabels: labels,
		}),
		submitted: counter("submitted_total", "Total work items submitted"),
		processed: counter("processed_total", "Total work items processed"),
		failed:    counter("failed_total", "Total work items that failed processing"),
		dropped:   counter("dropped_total", "Total work items dropped due to a full queue"),
		processingTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "scull", Subsystem: "worker", Name: "processing_duration_seconds",
			Help:        "Time spent processing work items",
			Buckets:     []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			ConstLabels: labels,
		}),
	}

	owner := "worker_" + p.name
	reg := p.metricsRegistry
	for _, err := range []error{
		reg.RegisterGauge(owner, "queue_depth", m.queueDepth),
		reg.RegisterCounter(owner, "submitted", m.submitted),
		reg.RegisterCounter(owner, "processed", m.processed),
		reg.RegisterCounter(owner, "failed", m.failed),
		reg.RegisterCounter(owner, "dropped", m.dropped),
		reg.RegisterHistogram(owner, "processing_duration", m.processingTime),
	} {
		if err != nil {
			return errors.Wrap(err, "Pool", "NewPool", "metrics registration")
		}
	}

	p.metrics = m
	return nil
}

// Submit queues work without blocking.
func (p *Pool[T]) Submit(work T) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.started {
		return ErrPoolNotStarted
	}
	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.workChan <- work:
		p.submitted.Add(1)
		if p.metrics != nil {
			p.metrics.submitted.Inc()
			p.metrics.queueDepth.Set(float64(len(p.workChan)))
		}
		return nil
	default:
		p.dropped.Add(1)
		if p.metrics != nil {
			p.metrics.dropped.Inc()
		}
		return ErrQueueFull
	}
}

// Start launches the workers. They exit when ctx ends or Stop is called.
func (p *Pool[T]) Start(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.started {
		return ErrPoolAlreadyStarted
	}

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}

	p.started = true
	return nil
}

// Stop closes the queue and waits up to timeout for queued work to drain.
func (p *Pool[T]) Stop(timeout time.Duration) error {
	p.lifecycleMu.Lock()
	if !p.started || p.stopped {
		p.lifecycleMu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.workChan)
	p.lifecycleMu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		close(p.stopCh)
		return ErrStopTimeout
	}
}

// Stats returns current pool statistics
func (p *Pool[T]) Stats() PoolStats {
	return PoolStats{
		Workers:    p.workers,
		QueueSize:  p.queueSize,
		QueueDepth: len(p.workChan),
		Submitted:  p.submitted.Load(),
		Processed:  p.processed.Load(),
		Failed:     p.failed.Load(),
		Dropped:    p.dropped.Load(),
	}
}

// PoolStats represents worker pool statistics
type PoolStats struct {
	Workers    int   `json:"workers"`
	QueueSize  int   `json:"queue_size"`
	QueueDepth int   `json:"queue_depth"`
	Submitted  int64 `json:"submitted"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	Dropped    int64 `json:"dropped"`
}

func (p *Pool[T]) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case work, ok := <-p.workChan:
			if !ok {
				return
			}
			p.process(ctx, work)
		}
	}
}

func (p *Pool[T]) process(ctx context.Context, work T) {
	start := time.Now()
	err := p.processor(ctx, work)

	p.processed.Add(1)
	if err != nil {
		p.failed.Add(1)
		if p.onError != nil {
			p.onError(work, err)
		}
	}

	if p.metrics != nil {
		p.metrics.processed.Inc()
		if err != nil {
			p.metrics.failed.Inc()
		}
		p.metrics.processingTime.Observe(time.Since(start).Seconds())
		p.metrics.queueDepth.Set(float64(len(p.workChan)))
	}
}
