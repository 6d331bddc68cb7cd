// Package retry provides exponential backoff for callers of non-blocking pipe
// operations. The pipe core reports ErrWouldBlock immediately; a caller that
// prefers polling over blocking wraps its call in Do.
//
//	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
//	    _, err := h.Write(chunk)
//	    return err
//	})
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

var (
	randMu     sync.Mutex
	randSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// NonRetryableError wraps errors that should not be retried
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return fmt.Sprintf("non-retryable: %v", e.Err)
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// NonRetryable wraps an error to stop Do immediately.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

// IsNonRetryable checks if an error is marked as non-retryable
func IsNonRetryable(err error) bool {
	var nre *NonRetryableError
	return errors.As(err, &nre)
}

// Config provides retry configuration
type Config struct {
	MaxAttempts  int           // Total attempts including the first; <= 0 means one
	InitialDelay time.Duration // Delay before the second attempt
	MaxDelay     time.Duration // Upper bound for any delay
	Multiplier   float64       // Growth factor between delays
	AddJitter    bool          // Add up to 25% random delay

	// Retryable decides whether an error is worth another attempt.
	// Nil retries every error not marked NonRetryable.
	Retryable func(error) bool
}

// DefaultConfig returns the backoff used when polling a pipe.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  20,
		InitialDelay: time.Millisecond,
		MaxDelay:     50 * time.Millisecond,
		Multiplier:   2.0,
		AddJitter:    true,
	}
}

func (cfg Config) normalize() (Config, error) {
	if cfg.InitialDelay < 0 || cfg.MaxDelay < 0 || cfg.Multiplier < 0 {
		return cfg, errors.New("retry: negative delay or multiplier")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialDelay == 0 {
		cfg.InitialDelay = time.Millisecond
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = 50 * time.Millisecond
	}
	if cfg.Multiplier == 0 {
		cfg.Multiplier = 2.0
	}
	if cfg.Multiplier > 1000 {
		cfg.Multiplier = 1000
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		return cfg, errors.New("retry: MaxDelay must be >= InitialDelay")
	}
	return cfg, nil
}

// Do runs fn until it succeeds, returns a non-retryable error, the attempts
// run out or ctx is done.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	cfg, err := cfg.normalize()
	if err != nil {
		return err
	}

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if IsNonRetryable(err) {
			return err
		}
		if cfg.Retryable != nil && !cfg.Retryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return fmt.Errorf("retry cancelled before attempt %d: %w", attempt+1, ctx.Err())
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		sleep := delay
		if cfg.AddJitter && delay >= 4 {
			randMu.Lock()
			sleep += time.Duration(randSource.Int63n(int64(delay / 4)))
			randMu.Unlock()
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled during backoff for attempt %d: %w", attempt+1, ctx.Err())
		case <-timer.C:
		}

		next := float64(delay) * cfg.Multiplier
		if next > float64(cfg.MaxDelay) {
			delay = cfg.MaxDelay
		} else {
			delay = time.Duration(next)
		}
	}

	return fmt.Errorf("retry failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// DoWithResult executes fn with retry and returns both result and error
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func() error {
		var innerErr error
		result, innerErr = fn()
		return innerErr
	})
	return result, err
}
