package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(999), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			assert.Equal(t, test.expected, test.class.String())
		})
	}
}

func TestClassify_PipeErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{"would block", ErrWouldBlock, ErrorTransient},
		{"cancelled", Cancelled(context.Canceled), ErrorTransient},
		{"deadline", Cancelled(context.DeadlineExceeded), ErrorTransient},
		{"allocation", ErrAllocationFailed, ErrorInvalid},
		{"broken", ErrChannelBroken, ErrorInvalid},
		{"not readable", ErrNotReadable, ErrorInvalid},
		{"not writable", ErrNotWritable, ErrorInvalid},
		{"closed handle", ErrHandleClosed, ErrorInvalid},
		{"bad mode", ErrInvalidMode, ErrorInvalid},
		{"no such pipe", ErrNoSuchPipe, ErrorInvalid},
		{"wrapped broken", Wrap(ErrChannelBroken, "Handle", "Write", "copy"), ErrorInvalid},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, Classify(test.err))
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection timeout", ErrConnectionTimeout, true},
		{"context canceled", context.Canceled, true},
		{"timeout in message", fmt.Errorf("operation timeout occurred"), true},
		{"broken pipe", ErrChannelBroken, false},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: fmt.Errorf("test")}, true},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, IsTransient(test.err))
		})
	}
}

func TestCancelled_MatchesBoth(t *testing.T) {
	err := Cancelled(context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, ErrCancelled, Cancelled(nil))
}

func TestKind(t *testing.T) {
	assert.Equal(t, "none", Kind(nil))
	assert.Equal(t, "would_block", Kind(ErrWouldBlock))
	assert.Equal(t, "cancelled", Kind(Cancelled(context.Canceled)))
	assert.Equal(t, "allocation_failed", Kind(ErrAllocationFailed))
	assert.Equal(t, "channel_broken", Kind(fmt.Errorf("write: %w", ErrChannelBroken)))
	assert.Equal(t, "bad_handle", Kind(ErrNotReadable))
	assert.Equal(t, "other", Kind(errors.New("boom")))
}

func TestWrapFamily(t *testing.T) {
	base := errors.New("disk gone")

	assert.Nil(t, Wrap(nil, "C", "M", "a"))
	assert.Nil(t, WrapTransient(nil, "C", "M", "a"))

	wrapped := Wrap(base, "Pipe", "Open", "allocate")
	assert.Equal(t, "Pipe.Open: allocate failed: disk gone", wrapped.Error())
	assert.ErrorIs(t, wrapped, base)

	inv := WrapInvalid(base, "Pipe", "Open", "mode")
	assert.True(t, IsInvalid(inv))
	var ce *ClassifiedError
	require.True(t, errors.As(inv, &ce))
	assert.Equal(t, "Pipe", ce.Component)
	assert.Equal(t, "Open", ce.Operation)

	assert.True(t, IsFatal(WrapFatal(base, "Pipe", "Open", "allocate")))
	assert.True(t, IsTransient(WrapTransient(base, "Pipe", "Read", "wait")))
}

func TestRetryConfig(t *testing.T) {
	rc := DefaultRetryConfig()

	assert.True(t, rc.ShouldRetry(ErrWouldBlock, 0))
	assert.False(t, rc.ShouldRetry(ErrChannelBroken, 0))
	assert.False(t, rc.ShouldRetry(Cancelled(context.Canceled), 0), "only listed errors retry")
	assert.False(t, rc.ShouldRetry(ErrWouldBlock, rc.MaxRetries))
	assert.False(t, rc.ShouldRetry(nil, 0))

	cfg := rc.ToRetryConfig()
	assert.Equal(t, rc.MaxRetries+1, cfg.MaxAttempts)
	require.NotNil(t, cfg.Retryable)
	assert.True(t, cfg.Retryable(ErrWouldBlock))
	assert.False(t, cfg.Retryable(ErrChannelBroken))
}

func TestBackoffDelay(t *testing.T) {
	rc := RetryConfig{InitialDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond, BackoffFactor: 2}

	assert.Equal(t, 10*time.Millisecond, rc.BackoffDelay(0))
	assert.Equal(t, 20*time.Millisecond, rc.BackoffDelay(1))
	assert.Equal(t, 40*time.Millisecond, rc.BackoffDelay(2))
	assert.Equal(t, 50*time.Millisecond, rc.BackoffDelay(5))
}
