package fetch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/page-auditor/pkg/utils"
)

var errFlaky = errors.New("flaky transport")

func TestRetry_FirstAttemptSucceeds(t *testing.T) {
	calls := 0
	v, attempts, err := Retry(context.Background(), 3, FixedBackoff(time.Millisecond), func(ctx context.Context, attempt int) (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	var seen []int
	v, attempts, err := Retry(context.Background(), 3, FixedBackoff(time.Millisecond), func(ctx context.Context, attempt int) (int, error) {
		seen = append(seen, attempt)
		if attempt < 2 {
			return 0, errFlaky
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []int{0, 1, 2}, seen)
}

func TestRetry_AllAttemptsFail(t *testing.T) {
	_, attempts, err := Retry(context.Background(), 2, FixedBackoff(time.Millisecond), func(ctx context.Context, attempt int) (int, error) {
		return 0, errFlaky
	})
	require.Error(t, err)
	assert.Equal(t, 2, attempts)
	assert.ErrorIs(t, err, errFlaky)
	assert.ErrorIs(t, err, utils.ErrRetryFailed)
}

func TestRetry_SingleAttemptNotWrapped(t *testing.T) {
	_, attempts, err := Retry(context.Background(), 1, nil, func(ctx context.Context, attempt int) (int, error) {
		return 0, errFlaky
	})
	assert.Equal(t, 1, attempts)
	assert.Equal(t, errFlaky, err)
}

func TestRetry_ZeroAttemptsMeansOne(t *testing.T) {
	_, attempts, _ := Retry(context.Background(), 0, nil, func(ctx context.Context, attempt int) (int, error) {
		return 0, errFlaky
	})
	assert.Equal(t, 1, attempts)
}

func TestRetry_PermanentStopsEarly(t *testing.T) {
	_, attempts, err := Retry(context.Background(), 5, FixedBackoff(time.Millisecond), func(ctx context.Context, attempt int) (int, error) {
		return 0, Permanent(utils.ErrTooManyRedirects)
	})
	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, utils.ErrTooManyRedirects)
	assert.NotErrorIs(t, err, utils.ErrRetryFailed)
	assert.Nil(t, Permanent(nil))
}

func TestRetry_FixedBackoffIsApplied(t *testing.T) {
	start := time.Now()
	_, attempts, _ := Retry(context.Background(), 3, FixedBackoff(30*time.Millisecond), func(ctx context.Context, attempt int) (int, error) {
		return 0, errFlaky
	})
	assert.Equal(t, 3, attempts)
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestRetry_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, attempts, err := Retry(ctx, 3, FixedBackoff(5*time.Second), func(ctx context.Context, attempt int) (int, error) {
		return 0, errFlaky
	})
	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, errFlaky)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRetry_CancelledBeforeFirstAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	_, attempts, err := Retry(ctx, 3, nil, func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, nil
	})
	assert.Equal(t, 0, attempts)
	assert.Equal(t, 0, calls)
	assert.ErrorIs(t, err, context.Canceled)
}
