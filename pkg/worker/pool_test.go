package worker

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raceant/scull/errors"
	"github.com/raceant/scull/metric"
)

func TestNewPool(t *testing.T) {
	noop := func(context.Context, int) error { return nil }

	p, err := NewPool(3, 10, noop)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stats().Workers)
	assert.Equal(t, 10, p.Stats().QueueSize)

	p, err = NewPool(0, 0, noop)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Stats().Workers)
	assert.Equal(t, 256, p.Stats().QueueSize)

	_, err = NewPool[int](1, 1, nil)
	assert.ErrorIs(t, err, ErrNilProcessor)
	assert.True(t, errors.IsInvalid(err))
}

func TestPool_Lifecycle(t *testing.T) {
	p, err := NewPool(1, 1, func(context.Context, int) error { return nil })
	require.NoError(t, err)

	assert.ErrorIs(t, p.Submit(1), ErrPoolNotStarted)
	assert.NoError(t, p.Stop(time.Second), "stop before start is a no-op")

	require.NoError(t, p.Start(context.Background()))
	assert.ErrorIs(t, p.Start(context.Background()), ErrPoolAlreadyStarted)

	require.NoError(t, p.Stop(time.Second))
	require.NoError(t, p.Stop(time.Second))
	assert.ErrorIs(t, p.Submit(1), ErrPoolStopped)
}

func TestPool_ProcessesAll(t *testing.T) {
	var sum atomic.Int64
	p, err := NewPool(4, 100, func(_ context.Context, n int) error {
		sum.Add(int64(n))
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))

	for i := 1; i <= 100; i++ {
		require.NoError(t, p.Submit(i))
	}
	require.NoError(t, p.Stop(5*time.Second), "stop drains the queue")

	assert.Equal(t, int64(5050), sum.Load())
	stats := p.Stats()
	assert.Equal(t, int64(100), stats.Submitted)
	assert.Equal(t, int64(100), stats.Processed)
	assert.Zero(t, stats.Failed)
}

func TestPool_QueueFullDrops(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	p, err := NewPool(1, 1, func(context.Context, int) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))

	require.NoError(t, p.Submit(1))
	<-started
	require.NoError(t, p.Submit(2))
	assert.ErrorIs(t, p.Submit(3), ErrQueueFull)
	assert.Equal(t, int64(1), p.Stats().Dropped)

	close(release)
	require.NoError(t, p.Stop(time.Second))
}

func TestPool_ErrorHandler(t *testing.T) {
	boom := stderrors.New("boom")

	var mu sync.Mutex
	var failedItems []int
	p, err := NewPool(1, 10,
		func(_ context.Context, n int) error {
			if n%2 == 0 {
				return boom
			}
			return nil
		},
		WithErrorHandler(func(n int, err error) {
			mu.Lock()
			defer mu.Unlock()
			assert.ErrorIs(t, err, boom)
			failedItems = append(failedItems, n)
		}))
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))

	for i := 1; i <= 4; i++ {
		require.NoError(t, p.Submit(i))
	}
	require.NoError(t, p.Stop(time.Second))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{2, 4}, failedItems)
	assert.Equal(t, int64(2), p.Stats().Failed)
}

func TestPool_StopTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	p, err := NewPool(1, 1, func(ctx context.Context, _ int) error {
		<-block
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, p.Submit(1))

	assert.ErrorIs(t, p.Stop(20*time.Millisecond), ErrStopTimeout)
}

func TestPool_ContextCancelStopsWorkers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p, err := NewPool(2, 4, func(context.Context, int) error { return nil })
	require.NoError(t, err)
	require.NoError(t, p.Start(ctx))

	cancel()
	assert.NoError(t, p.Stop(time.Second))
}

func TestPool_Metrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	p, err := NewPool(1, 4, func(context.Context, string) error { return nil },
		WithMetricsRegistry[string](registry, "test"))
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))

	require.NoError(t, p.Submit("a"))
	require.NoError(t, p.Submit("b"))
	require.NoError(t, p.Stop(time.Second))

	assert.Equal(t, 2.0, testutil.ToFloat64(p.metrics.submitted))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.metrics.processed))

	_, err = NewPool(1, 4, func(context.Context, string) error { return nil },
		WithMetricsRegistry[string](registry, "test"))
	assert.Error(t, err, "duplicate pool name")
}
