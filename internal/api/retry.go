package api

import (
	"context"
	"fmt"
	"time"

	"github.com/quocvuong92/ollama-ctl/internal/logging"
)

// Retry configuration constants
const (
	MaxRetryAttempts  = 3
	InitialBackoff    = 500 * time.Millisecond
	MaxBackoff        = 5 * time.Second
	BackoffMultiplier = 2.0
)

// CalculateBackoff returns the backoff duration for a given attempt number
func CalculateBackoff(attempt int) time.Duration {
	backoff := InitialBackoff
	for i := 0; i < attempt; i++ {
		backoff = time.Duration(float64(backoff) * BackoffMultiplier)
		if backoff > MaxBackoff {
			backoff = MaxBackoff
			break
		}
	}
	return backoff
}

// RetryableFunc is a function that can be retried
type RetryableFunc[T any] func() (T, error)

// WithRetry runs fn up to attempts times. Only refused connections and
// timeouts are retried (see IsRetryable); backend errors and malformed
// responses are returned immediately. Streaming calls must not use it.
func WithRetry[T any](ctx context.Context, attempts int, backoff func(attempt int) time.Duration, fn RetryableFunc[T]) (T, error) {
	var lastErr error
	var zero T

	if attempts < 1 {
		attempts = 1
	}
	if backoff == nil {
		backoff = CalculateBackoff
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("operation cancelled: %w", err)
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return zero, err
		}

		if attempt < attempts-1 {
			wait := backoff(attempt)
			logging.Debug("Retrying backend call", logging.Fields{
				"attempt": attempt + 1,
				"wait_ms": wait.Milliseconds(),
				"error":   err.Error(),
			})
			select {
			case <-ctx.Done():
				return zero, fmt.Errorf("operation cancelled: %w", ctx.Err())
			case <-time.After(wait):
			}
		}
	}

	return zero, lastErr
}
