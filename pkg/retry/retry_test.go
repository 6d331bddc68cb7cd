package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBusy = errors.New("busy")

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(5), func() error {
		attempts++
		if attempts < 3 {
			return errBusy
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_AllAttemptsFail(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		attempts++
		return errBusy
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, errBusy)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Equal(t, 3, attempts)
}

func TestDo_RetryablePredicateStopsEarly(t *testing.T) {
	fatal := errors.New("fatal")
	cfg := fastConfig(10)
	cfg.Retryable = func(err error) bool { return errors.Is(err, errBusy) }

	attempts := 0
	err := Do(context.Background(), cfg, func() error {
		attempts++
		if attempts == 2 {
			return fatal
		}
		return errBusy
	})

	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 2, attempts)
}

func TestDo_NonRetryable(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(10), func() error {
		attempts++
		return NonRetryable(errBusy)
	})

	assert.True(t, IsNonRetryable(err))
	assert.ErrorIs(t, err, errBusy)
	assert.Equal(t, 1, attempts)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxAttempts: 100, InitialDelay: 20 * time.Millisecond, MaxDelay: time.Second, Multiplier: 1}

	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	err := Do(ctx, cfg, func() error { return errBusy })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDo_InvalidConfig(t *testing.T) {
	err := Do(context.Background(), Config{InitialDelay: -1}, func() error { return nil })
	assert.Error(t, err)

	err = Do(context.Background(), Config{InitialDelay: time.Second, MaxDelay: time.Millisecond}, func() error { return nil })
	assert.Error(t, err)
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	n, err := DoWithResult(context.Background(), fastConfig(3), func() (int, error) {
		attempts++
		if attempts < 2 {
			return 0, errBusy
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, n)
}
