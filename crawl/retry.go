package crawl

import (
	"context"
	"time"

	"github.com/fwojciec/siteclone"
)

// AttemptFunc performs a single capture attempt.
type AttemptFunc[T any] func(ctx context.Context) (T, error)

// LogFunc is the signature for a logging function.
type LogFunc func(format string, args ...any)

// DefaultRetryDelays returns the backoff delays of the default policy: 1s, 2s, 3s.
func DefaultRetryDelays() []time.Duration {
	return siteclone.DefaultPolicy().RetryDelays()
}

// WithRetry runs attempt until it succeeds, returns an error that is not
// retryable, or len(delays)+1 attempts have been made. The returned int is
// the number of attempts made.
func WithRetry[T any](ctx context.Context, url string, attempt AttemptFunc[T], logger LogFunc, delays []time.Duration) (T, int, error) {
	var zero T
	maxAttempts := len(delays) + 1

	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		v, err := attempt(ctx)
		if err == nil {
			return v, i + 1, nil
		}
		lastErr = err

		if !siteclone.IsRetryable(err) || i >= maxAttempts-1 {
			return zero, i + 1, lastErr
		}

		// Check context before sleeping
		if ctx.Err() != nil {
			return zero, i + 1, ctx.Err()
		}

		if logger != nil {
			logger("retry %s (attempt %d): %v", url, i+2, err)
		}

		timer := time.NewTimer(delays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, i + 1, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, maxAttempts, lastErr
}
