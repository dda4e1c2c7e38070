package fetch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_DisabledIsNoop(t *testing.T) {
	rl := NewRateLimiter(0, testLogger())
	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, rl.Wait(context.Background(), "example.com"))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	var nilLimiter *RateLimiter
	assert.NoError(t, nilLimiter.Wait(context.Background(), "example.com"))
}

func TestRateLimiter_NoDelayOnFirstRequest(t *testing.T) {
	rl := NewRateLimiter(5*time.Second, testLogger())

	start := time.Now()
	require.NoError(t, rl.Wait(context.Background(), "fresh-host.com"))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestRateLimiter_SpacesSameHost(t *testing.T) {
	rl := NewRateLimiter(100*time.Millisecond, testLogger())
	host := "example.com"

	require.NoError(t, rl.Wait(context.Background(), host))
	start := time.Now()
	require.NoError(t, rl.Wait(context.Background(), host))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestRateLimiter_HostsAreIndependent(t *testing.T) {
	rl := NewRateLimiter(time.Second, testLogger())

	require.NoError(t, rl.Wait(context.Background(), "a.example"))
	start := time.Now()
	require.NoError(t, rl.Wait(context.Background(), "b.example"))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestRateLimiter_RespectsContextCancellation(t *testing.T) {
	rl := NewRateLimiter(5*time.Second, testLogger())
	host := "example.com"
	require.NoError(t, rl.Wait(context.Background(), host))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := rl.Wait(ctx, host)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}
