// Package errors provides standardized error handling for scull components.
//
// # Overview
//
// Errors are split into three classes: Transient (the same call may succeed
// later), Invalid (the call was wrong and will stay wrong) and Fatal (the
// call failed for a reason the caller cannot wait out).
//
// # Pipe Errors
//
// Every failure a pipe reports is scoped to one call and surfaces to the
// immediate caller:
//
//   - ErrWouldBlock: non-blocking call found its condition unmet (transient)
//   - ErrCancelled: a blocked call was interrupted; wraps the context error (transient)
//   - ErrAllocationFailed: open could not obtain storage (invalid, scoped to the call)
//   - ErrChannelBroken: write found the ring full with no readers left (invalid, scoped to the call)
//
// End of stream is not an error class. A read on an empty pipe whose
// writers have all gone returns io.EOF, which callers treat as orderly
// completion.
//
// # Error Wrapping Pattern
//
// All wrapping follows the format:
//
//	"component.method: action failed: %w"
//
// Classification-aware wrappers keep the class through the chain:
//
//	errors.WrapTransient(err, "Component", "Method", "action")
//	errors.WrapInvalid(err, "Component", "Method", "action")
//	errors.WrapFatal(err, "Component", "Method", "action")
//
// Sentinels stay reachable through any wrapper:
//
//	if errors.Is(err, errors.ErrWouldBlock) {
//	    // come back later
//	}
//
// # Retrying
//
// The pipe core never retries on behalf of its callers. RetryConfig
// converts to a pkg/retry configuration for callers that poll:
//
//	cfg := errors.DefaultRetryConfig().ToRetryConfig()
//	err := retry.Do(ctx, cfg, func() error {
//	    _, err := h.Write(p)
//	    return err
//	})
package errors
