// Package errors provides standardized error handling patterns for scull components.
// It includes error classification, the pipe error taxonomy, and helper functions
// for consistent error wrapping and classification across the system.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/raceant/scull/pkg/retry"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorTransient represents temporary errors that may be retried
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents errors due to invalid input or configuration
	ErrorInvalid
	// ErrorFatal represents unrecoverable errors that should stop processing
	ErrorFatal
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Pipe errors. Every failure of a pipe call is scoped to that call.
var (
	// ErrWouldBlock is returned by a non-blocking call whose condition is unmet.
	// No state changed; the caller should retry later.
	ErrWouldBlock = errors.New("operation would block")

	// ErrCancelled is returned when a blocking call is interrupted while waiting
	// for the gate or for data/space. No state changed.
	ErrCancelled = errors.New("operation cancelled")

	// ErrAllocationFailed is returned by open when pipe storage cannot be obtained.
	ErrAllocationFailed = errors.New("pipe storage allocation failed")

	// ErrChannelBroken is returned by write when the ring is full and no reader remains.
	ErrChannelBroken = errors.New("broken pipe: no readers")

	// ErrNotReadable is returned when reading from a handle opened without read intent.
	ErrNotReadable = errors.New("handle not open for reading")

	// ErrNotWritable is returned when writing to a handle opened without write intent.
	ErrNotWritable = errors.New("handle not open for writing")

	// ErrHandleClosed is returned by operations on a closed handle.
	ErrHandleClosed = errors.New("handle closed")

	// ErrInvalidMode is returned by open when neither read nor write intent is given.
	ErrInvalidMode = errors.New("invalid open mode")

	// ErrInvalidCapacity is returned for ring capacities that cannot hold a byte.
	ErrInvalidCapacity = errors.New("invalid buffer capacity")

	// ErrNoSuchPipe is returned by the registry for unknown pipe names.
	ErrNoSuchPipe = errors.New("no such pipe")
)

// Standard error variables for common conditions
var (
	// ErrAlreadyStopped is returned once a client or registry has been closed.
	ErrAlreadyStopped = errors.New("already stopped")

	// Connection and networking errors
	ErrNoConnection      = errors.New("no connection available")
	ErrConnectionLost    = errors.New("connection lost")
	ErrConnectionTimeout = errors.New("connection timeout")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingConfig = errors.New("missing required configuration")

	// Resource errors
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrRateLimited       = errors.New("rate limited")
)

// ClassifiedError wraps an error with its classification
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// Cancelled builds the error returned when a blocking pipe call is abandoned.
// Both ErrCancelled and the context cause match with errors.Is.
func Cancelled(cause error) error {
	if cause == nil {
		return ErrCancelled
	}
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}

// IsTransient checks if an error is transient and should be retried
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorTransient
	}

	if errors.Is(err, ErrWouldBlock) ||
		errors.Is(err, ErrCancelled) ||
		errors.Is(err, ErrConnectionTimeout) ||
		errors.Is(err, ErrConnectionLost) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return true
	}

	// Pipe conditions that cannot clear by waiting are never transient.
	if errors.Is(err, ErrChannelBroken) ||
		errors.Is(err, ErrAllocationFailed) ||
		errors.Is(err, ErrHandleClosed) {
		return false
	}

	errStr := strings.ToLower(err.Error())
	transientPatterns := []string{
		"timeout",
		"connection",
		"network",
		"temporary",
		"unavailable",
		"busy",
		"retry",
	}

	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// IsFatal checks if an error is fatal and should stop processing
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}

	if errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingConfig) ||
		errors.Is(err, ErrResourceExhausted) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	fatalPatterns := []string{
		"fatal",
		"panic",
		"invalid config",
		"missing config",
		"out of memory",
	}

	for _, pattern := range fatalPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// IsInvalid checks if an error is due to invalid input
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorInvalid
	}

	return errors.Is(err, ErrNotReadable) ||
		errors.Is(err, ErrNotWritable) ||
		errors.Is(err, ErrChannelBroken) ||
		errors.Is(err, ErrAllocationFailed) ||
		errors.Is(err, ErrHandleClosed) ||
		errors.Is(err, ErrInvalidMode) ||
		errors.Is(err, ErrInvalidCapacity) ||
		errors.Is(err, ErrNoSuchPipe)
}

// Classify returns the error class for an error
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorTransient
	}

	if IsTransient(err) {
		return ErrorTransient
	}
	if IsFatal(err) {
		return ErrorFatal
	}
	if IsInvalid(err) {
		return ErrorInvalid
	}

	// Unknown errors default to transient so callers may retry
	return ErrorTransient
}

// Kind returns a short label for pipe errors, used as a metric label.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrWouldBlock):
		return "would_block"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrAllocationFailed):
		return "allocation_failed"
	case errors.Is(err, ErrChannelBroken):
		return "channel_broken"
	case errors.Is(err, ErrNotReadable), errors.Is(err, ErrNotWritable),
		errors.Is(err, ErrInvalidMode), errors.Is(err, ErrHandleClosed):
		return "bad_handle"
	default:
		return "other"
	}
}

func newClassified(class ErrorClass, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapTransient wraps an error as transient with context
func WrapTransient(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorTransient, wrappedErr, component, method, wrappedErr.Error())
}

// WrapFatal wraps an error as fatal with context
func WrapFatal(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorFatal, wrappedErr, component, method, wrappedErr.Error())
}

// WrapInvalid wraps an error as invalid with context
func WrapInvalid(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorInvalid, wrappedErr, component, method, wrappedErr.Error())
}

// RetryConfig defines how callers retry pipe operations that returned a
// transient error such as ErrWouldBlock. The pipe core never retries on
// behalf of its callers.
type RetryConfig struct {
	MaxRetries      int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffFactor   float64
	RetryableErrors []error
}

// DefaultRetryConfig returns the retry policy used for non-blocking writers.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      50,
		InitialDelay:    time.Millisecond,
		MaxDelay:        100 * time.Millisecond,
		BackoffFactor:   2.0,
		RetryableErrors: []error{ErrWouldBlock},
	}
}

// ShouldRetry determines if an error should be retried based on config
func (rc RetryConfig) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= rc.MaxRetries {
		return false
	}

	if !IsTransient(err) {
		return false
	}

	if len(rc.RetryableErrors) > 0 {
		for _, retryableErr := range rc.RetryableErrors {
			if errors.Is(err, retryableErr) {
				return true
			}
		}
		return false
	}

	return true
}

// ToRetryConfig converts RetryConfig to the retry package's Config.
// MaxRetries counts additional attempts, so one is added for the first try.
func (rc RetryConfig) ToRetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:  rc.MaxRetries + 1,
		InitialDelay: rc.InitialDelay,
		MaxDelay:     rc.MaxDelay,
		Multiplier:   rc.BackoffFactor,
		AddJitter:    true,
		Retryable: func(err error) bool {
			return rc.ShouldRetry(err, 0)
		},
	}
}

// BackoffDelay calculates the delay for a retry attempt
func (rc RetryConfig) BackoffDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return rc.InitialDelay
	}

	delay := rc.InitialDelay
	for i := 0; i < attempt; i++ {
		delay = time.Duration(float64(delay) * rc.BackoffFactor)
		if delay > rc.MaxDelay {
			delay = rc.MaxDelay
			break
		}
	}

	return delay
}
