package pipe

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/raceant/scull/errors"
)

// gate serializes every state transition on one pipe. Unlike sync.Mutex,
// acquisition can be abandoned when the caller's context ends.
type gate struct {
	sem *semaphore.Weighted
}

func newGate() *gate {
	return &gate{sem: semaphore.NewWeighted(1)}
}

// lock acquires the gate or returns ErrCancelled once ctx is done. On error
// the gate is not held.
func (g *gate) lock(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.Cancelled(err)
	}
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return errors.Cancelled(err)
	}
	return nil
}

// lockUninterruptible is reserved for close, which always succeeds.
func (g *gate) lockUninterruptible() {
	_ = g.sem.Acquire(context.Background(), 1)
}

func (g *gate) unlock() {
	g.sem.Release(1)
}
