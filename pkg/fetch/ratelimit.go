package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimiter spaces requests to the same host by a minimum delay
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter // hostname -> limiter
	delay    time.Duration
	log      *logrus.Entry
}

// NewRateLimiter creates a RateLimiter. A non-positive delay disables limiting.
func NewRateLimiter(delay time.Duration, log *logrus.Entry) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		delay:    delay,
		log:      log,
	}
}

// Wait blocks until a request to host is allowed or ctx is done
func (rl *RateLimiter) Wait(ctx context.Context, host string) error {
	if rl == nil || rl.delay <= 0 {
		return nil
	}
	lim := rl.limiterFor(host)
	r := lim.Reserve()
	if !r.OK() {
		return nil
	}
	wait := r.Delay()
	if wait <= 0 {
		return nil
	}
	rl.log.WithFields(logrus.Fields{"host": host, "sleep": wait}).Debug("Rate limit applying sleep")
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}

func (rl *RateLimiter) limiterFor(host string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	lim, ok := rl.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Every(rl.delay), 1)
		rl.limiters[host] = lim
	}
	return lim
}
