package pipe

import (
	"fmt"
	"log/slog"

	"github.com/raceant/scull/errors"
	"github.com/raceant/scull/metric"
)

// MaxCapacity bounds the storage the default allocator hands out.
const MaxCapacity = 64 << 20

// DefaultCapacity matches the classic scullpipe buffer size.
const DefaultCapacity = 4000

// Allocator obtains backing storage for a pipe's ring. It is called under
// the pipe gate when the first handle is opened.
type Allocator func(size int) ([]byte, error)

// DefaultAllocator allocates zeroed storage of size bytes.
func DefaultAllocator(size int) ([]byte, error) {
	if size < 2 || size > MaxCapacity {
		return nil, fmt.Errorf("%w: capacity %d outside [2, %d]",
			errors.ErrAllocationFailed, size, MaxCapacity)
	}
	return make([]byte, size), nil
}

// Option configures a Pipe using the functional options pattern.
type Option func(*pipeOptions)

type pipeOptions struct {
	capacity  func() int
	allocator Allocator
	notifier  Notifier
	logger    *slog.Logger
	registry  *metric.MetricsRegistry
}

// WithCapacity fixes the ring capacity used at every allocation.
func WithCapacity(n int) Option {
	return func(o *pipeOptions) {
		o.capacity = func() int { return n }
	}
}

// WithCapacityFunc reads the capacity at allocation time, so a change only
// affects the next allocation epoch.
func WithCapacityFunc(fn func() int) Option {
	return func(o *pipeOptions) {
		if fn != nil {
			o.capacity = fn
		}
	}
}

// WithAllocator replaces DefaultAllocator.
func WithAllocator(a Allocator) Option {
	return func(o *pipeOptions) {
		if a != nil {
			o.allocator = a
		}
	}
}

// WithNotifier sets the collaborator informed when data becomes available
// for handles that enabled async notification.
func WithNotifier(n Notifier) Option {
	return func(o *pipeOptions) {
		o.notifier = n
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *pipeOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics exports ring statistics and pipe events to Prometheus.
// A nil registry is ignored.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(o *pipeOptions) {
		o.registry = registry
	}
}

func applyOptions(options ...Option) *pipeOptions {
	opts := &pipeOptions{
		capacity:  func() int { return DefaultCapacity },
		allocator: DefaultAllocator,
	}
	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}
	if opts.logger == nil {
		opts.logger = slog.Default()
	}
	return opts
}

// OpenOption configures a handle at open time.
type OpenOption func(*Handle)

// WithNonBlocking opens the handle in non-blocking mode: calls that would
// wait return ErrWouldBlock instead.
func WithNonBlocking() OpenOption {
	return func(h *Handle) {
		h.nonBlocking.Store(true)
	}
}
