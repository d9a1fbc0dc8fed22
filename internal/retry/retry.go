// Package retry provides a small, explicit retry helper for
// application-level operations that need the same exponential-backoff
// policy as the HTTP client but aren't themselves HTTP requests (for
// example, LLM API calls).
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// IsRetryable decides whether an error returned by fn warrants another
// attempt.
type IsRetryable func(error) bool

// Do calls fn up to attempts times, sleeping with exponential backoff
// plus jitter between attempts. It returns nil on the first success,
// the error itself when isRetryable rejects it, ctx.Err() if ctx is
// canceled while waiting between attempts, or the last error wrapped
// with the attempt count once every attempt is exhausted.
func Do(ctx context.Context, attempts int, backoff time.Duration, isRetryable IsRetryable, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(backoff, attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if isRetryable != nil && !isRetryable(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("retry: exhausted %d attempts: %w", attempts, lastErr)
}

// backoffDelay doubles the base delay per attempt, capped and jittered
// by up to 25% to avoid synchronized retries across callers.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	d := float64(base) * math.Pow(2, float64(attempt-1))
	const maxDelay = float64(30 * time.Second)
	if d > maxDelay {
		d = maxDelay
	}
	jitter := d * 0.25 * rand.Float64()
	return time.Duration(d + jitter)
}
