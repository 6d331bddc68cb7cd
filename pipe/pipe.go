package pipe

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/raceant/scull/errors"
	"github.com/raceant/scull/metric"
	"github.com/raceant/scull/pkg/buffer"
)

// Pipe is one named FIFO instance. Storage is allocated when the first
// handle opens and released when the last one closes.
type Pipe struct {
	name string
	gate *gate

	dataReady  signal
	spaceReady signal

	// guarded by gate
	ring      *buffer.Ring
	readers   int
	writers   int
	observers []uuid.UUID

	capacity  func() int
	allocator Allocator
	notifier  Notifier
	logger    *slog.Logger

	stats       *buffer.Statistics
	ringMetrics *buffer.Metrics
	core        *metric.Metrics
}

// New creates an unallocated pipe.
func New(name string, options ...Option) (*Pipe, error) {
	opts := applyOptions(options...)

	p := &Pipe{
		name:      name,
		gate:      newGate(),
		capacity:  opts.capacity,
		allocator: opts.allocator,
		notifier:  opts.notifier,
		logger:    opts.logger.With("component", "pipe", "pipe", name),
		stats:     buffer.NewStatistics(),
	}

	if opts.registry != nil {
		m, err := buffer.NewMetrics(opts.registry, name)
		if err != nil {
			return nil, errors.Wrap(err, "Pipe", "New", "metrics registration")
		}
		p.ringMetrics = m
		p.core = opts.registry.CoreMetrics()
	}

	return p, nil
}

// Name returns the pipe name.
func (p *Pipe) Name() string {
	return p.name
}

// Stats returns the pipe's lifetime statistics.
func (p *Pipe) Stats() *buffer.Statistics {
	return p.stats
}

// Open attaches a new handle with the given intent, allocating storage if
// this is the first open since the pipe was last idle.
func (p *Pipe) Open(ctx context.Context, mode Mode, options ...OpenOption) (*Handle, error) {
	if !mode.valid() {
		return nil, p.fail("open", errors.WrapInvalid(
			fmt.Errorf("%w: %d", errors.ErrInvalidMode, mode), "Pipe", "Open", "validate mode"))
	}

	if err := p.gate.lock(ctx); err != nil {
		return nil, p.fail("open", err)
	}
	defer p.gate.unlock()

	if p.ring == nil {
		if err := p.allocateLocked(); err != nil {
			return nil, p.fail("open", err)
		}
	}

	if mode.CanRead() {
		p.readers++
	}
	if mode.CanWrite() {
		p.writers++
	}

	h := &Handle{id: uuid.New(), pipe: p, mode: mode}
	for _, opt := range options {
		if opt != nil {
			opt(h)
		}
	}

	if p.core != nil {
		p.core.RecordOpen(p.name, mode.String(), p.readers, p.writers)
	}
	p.logger.Debug("handle opened",
		"handle", h.id, "mode", mode.String(),
		"readers", p.readers, "writers", p.writers)

	return h, nil
}

func (p *Pipe) allocateLocked() error {
	size := p.capacity()
	storage, err := p.allocator(size)
	if err != nil {
		if !stderrors.Is(err, errors.ErrAllocationFailed) {
			err = fmt.Errorf("%w: %w", errors.ErrAllocationFailed, err)
		}
		return errors.WrapInvalid(err, "Pipe", "Open", "storage allocation")
	}
	ring, err := buffer.WrapStorage(storage)
	if err != nil {
		return errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrAllocationFailed, err),
			"Pipe", "Open", "storage allocation")
	}

	p.ring = ring
	p.stats.Allocate()
	p.stats.UpdateFill(0)
	if p.ringMetrics != nil {
		p.ringMetrics.RecordAllocation()
		p.ringMetrics.UpdateFill(0, ring.Usable())
	}
	if p.core != nil {
		p.core.SetStorage(p.name, ring.Cap())
	}
	p.logger.Debug("storage allocated", "capacity", ring.Cap())
	return nil
}

// release detaches h. It is the body of Handle.Close.
func (p *Pipe) release(h *Handle) {
	p.gate.lockUninterruptible()
	defer p.gate.unlock()

	p.removeObserverLocked(h)

	if h.mode.CanRead() {
		p.readers--
	}
	if h.mode.CanWrite() {
		p.writers--
	}

	// Waiters recheck: readers may now see end of stream, writers a broken
	// pipe, and calls in flight on h itself return ErrHandleClosed.
	p.dataReady.broadcast()
	p.spaceReady.broadcast()

	if p.core != nil {
		p.core.SetHandles(p.name, p.readers, p.writers)
	}
	p.logger.Debug("handle closed",
		"handle", h.id, "readers", p.readers, "writers", p.writers)

	if p.readers == 0 && p.writers == 0 && p.ring != nil {
		p.ring = nil
		p.stats.Free()
		p.stats.UpdateFill(0)
		if p.ringMetrics != nil {
			p.ringMetrics.UpdateFill(0, 0)
		}
		if p.core != nil {
			p.core.SetStorage(p.name, 0)
		}
		p.logger.Debug("storage released")
	}
}

func (p *Pipe) read(ctx context.Context, h *Handle, dst []byte) (int, error) {
	for {
		n, wait, err := p.tryRead(ctx, h, dst)
		if wait == nil {
			if err != nil && err != io.EOF {
				return n, p.fail("read", err)
			}
			return n, err
		}
		if err := p.suspend(ctx, "read", wait); err != nil {
			return 0, p.fail("read", err)
		}
	}
}

// tryRead performs one pass under the gate. A non-nil wait channel means the
// ring was empty and the caller should suspend on it, then retry.
func (p *Pipe) tryRead(ctx context.Context, h *Handle, dst []byte) (int, <-chan struct{}, error) {
	if err := p.gate.lock(ctx); err != nil {
		return 0, nil, err
	}
	defer p.gate.unlock()

	if h.closed.Load() {
		return 0, nil, errors.ErrHandleClosed
	}

	if p.ring.IsEmpty() {
		if p.writers == 0 {
			return 0, nil, io.EOF
		}
		if h.NonBlocking() {
			p.recordWouldBlock()
			return 0, nil, errors.ErrWouldBlock
		}
		return 0, p.dataReady.wait(), nil
	}

	n := p.ring.Read(dst)
	fill := p.ring.DataAvailable()
	p.stats.Read(n)
	p.stats.UpdateFill(fill)
	if p.ringMetrics != nil {
		p.ringMetrics.RecordRead(n, fill, p.ring.Usable())
	}

	p.spaceReady.broadcast()
	return n, nil, nil
}

func (p *Pipe) write(ctx context.Context, h *Handle, src []byte) (int, error) {
	written := 0
	for written < len(src) {
		n, wait, err := p.tryWrite(ctx, h, src[written:])
		written += n
		if err != nil {
			return written, p.fail("write", err)
		}
		if wait == nil {
			continue
		}
		if err := p.suspend(ctx, "write", wait); err != nil {
			return written, p.fail("write", err)
		}
	}
	return written, nil
}

// tryWrite copies as much of src as fits. A non-nil wait channel means the
// ring was full and the caller should suspend on it, then retry.
func (p *Pipe) tryWrite(ctx context.Context, h *Handle, src []byte) (int, <-chan struct{}, error) {
	if err := p.gate.lock(ctx); err != nil {
		return 0, nil, err
	}
	defer p.gate.unlock()

	if h.closed.Load() {
		return 0, nil, errors.ErrHandleClosed
	}

	if p.ring.SpaceFree() == 0 {
		// Nobody can ever drain a full ring without readers.
		if p.readers == 0 {
			return 0, nil, errors.ErrChannelBroken
		}
		if h.NonBlocking() {
			p.recordWouldBlock()
			return 0, nil, errors.ErrWouldBlock
		}
		return 0, p.spaceReady.wait(), nil
	}

	n := p.ring.Write(src)
	fill := p.ring.DataAvailable()
	p.stats.Write(n)
	p.stats.UpdateFill(fill)
	if p.ringMetrics != nil {
		p.ringMetrics.RecordWrite(n, fill, p.ring.Usable())
	}

	p.dataReady.broadcast()
	p.notifyLocked()
	return n, nil, nil
}

// suspend blocks, without the gate, until wait is closed or ctx ends.
func (p *Pipe) suspend(ctx context.Context, op string, wait <-chan struct{}) error {
	p.stats.Wait()
	if p.ringMetrics != nil {
		p.ringMetrics.RecordWait()
	}

	start := time.Now()
	defer func() {
		if p.core != nil {
			p.core.RecordWait(p.name, op, time.Since(start))
		}
	}()

	select {
	case <-wait:
		return nil
	case <-ctx.Done():
		return errors.Cancelled(ctx.Err())
	}
}

func (p *Pipe) recordWouldBlock() {
	p.stats.WouldBlock()
	if p.ringMetrics != nil {
		p.ringMetrics.RecordWouldBlock()
	}
}

func (p *Pipe) fail(op string, err error) error {
	if p.core != nil {
		p.core.RecordError(p.name, op, errors.Kind(err))
	}
	if !errors.IsTransient(err) {
		p.logger.Debug("pipe operation failed", "op", op, "error", err)
	}
	return err
}

// Readiness reports which operations would proceed without waiting.
type Readiness struct {
	// Readable is true when the ring holds data.
	Readable bool `json:"readable"`
	// Writable is true when the ring has free space.
	Writable bool `json:"writable"`
	// HangUp is true when no writer is attached; an empty ring reads io.EOF.
	HangUp bool `json:"hang_up"`
	// Broken is true when no reader is attached; a full ring fails writes
	// with ErrChannelBroken.
	Broken bool `json:"broken"`
}

// Poll reports the pipe's current readiness. An idle pipe reports nothing.
func (p *Pipe) Poll() Readiness {
	p.gate.lockUninterruptible()
	defer p.gate.unlock()
	return p.readinessLocked()
}

func (p *Pipe) readinessLocked() Readiness {
	if p.ring == nil {
		return Readiness{}
	}
	return Readiness{
		Readable: p.ring.DataAvailable() > 0,
		Writable: p.ring.SpaceFree() > 0,
		HangUp:   p.writers == 0,
		Broken:   p.readers == 0,
	}
}

// WaitReady blocks until a read or write wanted by the caller would not
// wait, and returns the readiness observed. A wanted read also proceeds on
// HangUp and a wanted write on Broken, since both then return at once.
// An empty want returns immediately.
func (p *Pipe) WaitReady(ctx context.Context, want Readiness) (Readiness, error) {
	for {
		if err := p.gate.lock(ctx); err != nil {
			return Readiness{}, err
		}
		r := p.readinessLocked()
		if (!want.Readable && !want.Writable) ||
			(want.Readable && (r.Readable || r.HangUp)) ||
			(want.Writable && (r.Writable || r.Broken)) {
			p.gate.unlock()
			return r, nil
		}
		var dataCh, spaceCh <-chan struct{}
		if want.Readable {
			dataCh = p.dataReady.wait()
		}
		if want.Writable {
			spaceCh = p.spaceReady.wait()
		}
		p.gate.unlock()

		select {
		case <-dataCh:
		case <-spaceCh:
		case <-ctx.Done():
			return Readiness{}, errors.Cancelled(ctx.Err())
		}
	}
}

// Status is a point-in-time snapshot of a pipe.
type Status struct {
	Name          string              `json:"name"`
	Allocated     bool                `json:"allocated"`
	Capacity      int                 `json:"capacity"`
	Readers       int                 `json:"readers"`
	Writers       int                 `json:"writers"`
	DataAvailable int                 `json:"data_available"`
	SpaceFree     int                 `json:"space_free"`
	Observers     int                 `json:"observers"`
	Stats         buffer.StatsSummary `json:"stats"`
}

// Status returns a snapshot taken under the gate.
func (p *Pipe) Status() Status {
	p.gate.lockUninterruptible()
	defer p.gate.unlock()

	s := Status{
		Name:      p.name,
		Readers:   p.readers,
		Writers:   p.writers,
		Observers: len(p.observers),
		Stats:     p.stats.Summary(),
	}
	if p.ring != nil {
		s.Allocated = true
		s.Capacity = p.ring.Cap()
		s.DataAvailable = p.ring.DataAvailable()
		s.SpaceFree = p.ring.SpaceFree()
	}
	return s
}
