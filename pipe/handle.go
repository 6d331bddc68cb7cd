package pipe

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/raceant/scull/errors"
)

// Handle is one open attachment to a Pipe. It implements io.ReadWriteCloser;
// Read and Write block without a deadline, ReadContext and WriteContext
// abandon the wait when ctx ends.
//
// A handle may be shared between goroutines. Close may run concurrently with
// a blocked call on the same handle, which then returns ErrHandleClosed.
type Handle struct {
	id   uuid.UUID
	pipe *Pipe
	mode Mode

	nonBlocking atomic.Bool
	closed      atomic.Bool
}

// ID returns the handle's unique identifier.
func (h *Handle) ID() uuid.UUID { return h.id }

// Mode returns the intent the handle was opened with.
func (h *Handle) Mode() Mode { return h.mode }

// Pipe returns the pipe the handle is attached to.
func (h *Handle) Pipe() *Pipe { return h.pipe }

// NonBlocking reports whether calls fail with ErrWouldBlock instead of waiting.
func (h *Handle) NonBlocking() bool { return h.nonBlocking.Load() }

// SetNonBlocking switches the handle between blocking and non-blocking mode.
// Calls already waiting are not affected.
func (h *Handle) SetNonBlocking(on bool) { h.nonBlocking.Store(on) }

// Read implements io.Reader. It returns io.EOF once the pipe is empty and no
// writer remains.
func (h *Handle) Read(p []byte) (int, error) {
	return h.ReadContext(context.Background(), p)
}

// ReadContext reads up to len(p) bytes, waiting for data unless the handle is
// non-blocking.
func (h *Handle) ReadContext(ctx context.Context, p []byte) (int, error) {
	if !h.mode.CanRead() {
		return 0, h.pipe.fail("read", errors.ErrNotReadable)
	}
	if h.closed.Load() {
		return 0, errors.ErrHandleClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	return h.pipe.read(ctx, h, p)
}

// Write implements io.Writer.
func (h *Handle) Write(p []byte) (int, error) {
	return h.WriteContext(context.Background(), p)
}

// WriteContext writes all of p, waiting for space as needed. A non-blocking
// handle writes what fits and returns ErrWouldBlock with the short count.
// If the last reader goes away mid-write the bytes written so far are
// returned with ErrChannelBroken.
func (h *Handle) WriteContext(ctx context.Context, p []byte) (int, error) {
	if !h.mode.CanWrite() {
		return 0, h.pipe.fail("write", errors.ErrNotWritable)
	}
	if h.closed.Load() {
		return 0, errors.ErrHandleClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	return h.pipe.write(ctx, h, p)
}

// Poll returns the pipe's readiness restricted to the handle's intent.
func (h *Handle) Poll() Readiness {
	return h.mask(h.pipe.Poll())
}

// WaitReady blocks until the handle can read or write without waiting,
// including reads that return io.EOF and writes that fail with a broken pipe.
func (h *Handle) WaitReady(ctx context.Context) (Readiness, error) {
	want := h.mask(Readiness{Readable: true, Writable: true})
	r, err := h.pipe.WaitReady(ctx, want)
	if err != nil {
		return Readiness{}, err
	}
	return h.mask(r), nil
}

func (h *Handle) mask(r Readiness) Readiness {
	return Readiness{
		Readable: r.Readable && h.mode.CanRead(),
		Writable: r.Writable && h.mode.CanWrite(),
		HangUp:   r.HangUp && h.mode.CanRead(),
		Broken:   r.Broken && h.mode.CanWrite(),
	}
}

// SetAsync enables or disables data-available notification for this handle.
func (h *Handle) SetAsync(on bool) error {
	if h.closed.Load() {
		return errors.ErrHandleClosed
	}
	p := h.pipe
	p.gate.lockUninterruptible()
	defer p.gate.unlock()

	// Close may have won the race for the gate.
	if h.closed.Load() {
		return errors.ErrHandleClosed
	}
	if on {
		p.addObserverLocked(h)
	} else {
		p.removeObserverLocked(h)
	}
	return nil
}

// Close detaches the handle. It always succeeds; later calls are no-ops.
func (h *Handle) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	h.pipe.release(h)
	return nil
}
