// Package registry owns the fixed set of scullpipe instances, addressed by
// name, and the buffer-size parameter they allocate with.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/raceant/scull/errors"
	"github.com/raceant/scull/health"
	"github.com/raceant/scull/pipe"
)

// Defaults follow the classic scullpipe module parameters.
const (
	DefaultCount      = 4
	DefaultBufferSize = pipe.DefaultCapacity
	DefaultNamePrefix = "scullpipe"
)

// Config describes the pipe set.
type Config struct {
	Count      int    `json:"count" yaml:"count"`
	BufferSize int    `json:"buffer_size" yaml:"buffer_size"`
	NamePrefix string `json:"name_prefix" yaml:"name_prefix"`
}

// DefaultConfig returns four 4000-byte pipes named scullpipe0..3.
func DefaultConfig() Config {
	return Config{
		Count:      DefaultCount,
		BufferSize: DefaultBufferSize,
		NamePrefix: DefaultNamePrefix,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Count <= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: count must be positive, got %d", errors.ErrInvalidConfig, c.Count),
			"Config", "Validate", "check count")
	}
	if err := validateBufferSize(c.BufferSize); err != nil {
		return errors.WrapInvalid(err, "Config", "Validate", "check buffer size")
	}
	if c.NamePrefix == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: name prefix is empty", errors.ErrInvalidConfig),
			"Config", "Validate", "check name prefix")
	}
	return nil
}

func validateBufferSize(n int) error {
	if n < 2 || n > pipe.MaxCapacity {
		return fmt.Errorf("%w: buffer size %d outside [2, %d]",
			errors.ErrInvalidCapacity, n, pipe.MaxCapacity)
	}
	return nil
}

// Registry holds the pipes. The set is fixed at construction.
type Registry struct {
	pipes  []*pipe.Pipe
	byName map[string]*pipe.Pipe
	logger *slog.Logger

	bufferSize atomic.Int64

	mu     sync.RWMutex
	closed bool
}

// New creates cfg.Count pipes named NamePrefix+index. The options are applied
// to every pipe; capacity is always taken from the registry's buffer size.
func New(cfg Config, logger *slog.Logger, opts ...pipe.Option) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{
		pipes:  make([]*pipe.Pipe, 0, cfg.Count),
		byName: make(map[string]*pipe.Pipe, cfg.Count),
		logger: logger.With("component", "registry"),
	}
	r.bufferSize.Store(int64(cfg.BufferSize))

	capacity := pipe.WithCapacityFunc(func() int { return int(r.bufferSize.Load()) })
	pipeOpts := append(append([]pipe.Option{pipe.WithLogger(logger)}, opts...), capacity)

	for i := 0; i < cfg.Count; i++ {
		name := cfg.NamePrefix + strconv.Itoa(i)
		p, err := pipe.New(name, pipeOpts...)
		if err != nil {
			return nil, errors.Wrap(err, "Registry", "New", "create pipe "+name)
		}
		r.pipes = append(r.pipes, p)
		r.byName[name] = p
	}

	r.logger.Info("pipes registered",
		"count", cfg.Count, "buffer_size", cfg.BufferSize, "prefix", cfg.NamePrefix)
	return r, nil
}

// Len returns the number of pipes.
func (r *Registry) Len() int {
	return len(r.pipes)
}

// Names returns pipe names in index order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.pipes))
	for i, p := range r.pipes {
		names[i] = p.Name()
	}
	return names
}

// Lookup returns the pipe with the given name.
func (r *Registry) Lookup(name string) (*pipe.Pipe, error) {
	p, ok := r.byName[name]
	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrNoSuchPipe, name),
			"Registry", "Lookup", "find pipe")
	}
	return p, nil
}

// Pipe returns the pipe at index i.
func (r *Registry) Pipe(i int) (*pipe.Pipe, error) {
	if i < 0 || i >= len(r.pipes) {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: index %d", errors.ErrNoSuchPipe, i),
			"Registry", "Pipe", "find pipe")
	}
	return r.pipes[i], nil
}

// Open looks up name and opens a handle on it.
func (r *Registry) Open(ctx context.Context, name string, mode pipe.Mode, opts ...pipe.OpenOption) (*pipe.Handle, error) {
	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return nil, errors.WrapInvalid(errors.ErrAlreadyStopped, "Registry", "Open", "check state")
	}

	p, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	return p.Open(ctx, mode, opts...)
}

// SetBufferSize changes the capacity used by subsequent allocations. Pipes
// that currently hold storage keep their size until they next go idle.
func (r *Registry) SetBufferSize(n int) error {
	if err := validateBufferSize(n); err != nil {
		return errors.WrapInvalid(err, "Registry", "SetBufferSize", "validate size")
	}
	old := r.bufferSize.Swap(int64(n))
	r.logger.Info("buffer size changed", "old", old, "new", n)
	return nil
}

// BufferSize returns the capacity the next allocation will use.
func (r *Registry) BufferSize() int {
	return int(r.bufferSize.Load())
}

// Statuses returns a snapshot of every pipe in index order.
func (r *Registry) Statuses() []pipe.Status {
	out := make([]pipe.Status, len(r.pipes))
	for i, p := range r.pipes {
		out[i] = p.Status()
	}
	return out
}

// Health reports one sub-status per pipe. A pipe with writers but no
// readers is degraded, since every write on it fails.
func (r *Registry) Health() health.Status {
	subs := make([]health.Status, 0, len(r.pipes))
	for _, st := range r.Statuses() {
		name := st.Name
		switch {
		case !st.Allocated:
			subs = append(subs, health.NewHealthy(name, "idle"))
		case st.Writers > 0 && st.Readers == 0:
			subs = append(subs, health.NewDegraded(name, "writers attached without readers"))
		default:
			subs = append(subs, health.NewHealthy(name,
				fmt.Sprintf("%d readers, %d writers, %d bytes buffered",
					st.Readers, st.Writers, st.DataAvailable)))
		}
	}
	return health.Aggregate("pipes", subs)
}

// StatusHandler serves Statuses as JSON. With ?name= it serves one pipe.
func (r *Registry) StatusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if name := req.URL.Query().Get("name"); name != "" {
			p, err := r.Lookup(name)
			if err != nil {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			_ = json.NewEncoder(w).Encode(p.Status())
			return
		}

		_ = json.NewEncoder(w).Encode(r.Statuses())
	})
}

// Close stops further opens. Handles already open keep working until
// their owners close them.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	for _, st := range r.Statuses() {
		if st.Readers > 0 || st.Writers > 0 {
			r.logger.Warn("pipe still open at shutdown",
				"pipe", st.Name, "readers", st.Readers, "writers", st.Writers)
		}
	}
	return nil
}
