package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sriram-PR/page-auditor/pkg/utils"
)

// BackoffFunc returns the wait before the given attempt (attempt >= 1)
type BackoffFunc func(attempt int) time.Duration

// FixedBackoff waits the same duration before every retry
func FixedBackoff(d time.Duration) BackoffFunc {
	return func(int) time.Duration { return d }
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retry calls fn up to maxAttempts times, waiting backoff(attempt) before each retry,
// and stops at the first success. It returns the value of the successful call, the number
// of attempts made and, on failure, the last error wrapped in utils.ErrRetryFailed.
// Errors marked Permanent and cancellation of ctx end the loop early.
func Retry[T any](ctx context.Context, maxAttempts int, backoff BackoffFunc, fn func(ctx context.Context, attempt int) (T, error)) (T, int, error) {
	var zero T
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 && backoff != nil {
			if d := backoff(attempt); d > 0 {
				timer := time.NewTimer(d)
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
					return zero, attempts, fmt.Errorf("%w: cancelled during backoff: %w", lastErr, ctx.Err())
				}
			}
		}
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				return zero, attempts, err
			}
			return zero, attempts, fmt.Errorf("%w: %w", lastErr, err)
		}

		attempts++
		v, err := fn(ctx, attempt)
		if err == nil {
			return v, attempts, nil
		}
		lastErr = err

		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, attempts, perm.err
		}
	}
	if attempts == 1 {
		return zero, attempts, lastErr
	}
	return zero, attempts, fmt.Errorf("%w: %w", utils.ErrRetryFailed, lastErr)
}
