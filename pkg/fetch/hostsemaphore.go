package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/Sriram-PR/page-auditor/pkg/utils"
)

// hostSlots is the permit set of one probed host
type hostSlots struct {
	sem       *semaphore.Weighted
	users     int64     // holders plus waiters
	idleSince time.Time // set when users drops to zero
}

// HostSemaphorePool caps how many probes of a run may be outstanding against one host.
// The link and image queues share a pool, so the cap holds across both probe kinds.
// Hosts are keyed by the probe's normalized hostname.
type HostSemaphorePool struct {
	mu    sync.Mutex
	hosts map[string]*hostSlots
	limit int64
	log   *logrus.Entry
}

// NewHostSemaphorePool creates a pool allowing maxPerHost concurrent probes per host.
// maxPerHost comes from a validated config and must be positive.
func NewHostSemaphorePool(maxPerHost int, log *logrus.Entry) *HostSemaphorePool {
	return &HostSemaphorePool{
		hosts: make(map[string]*hostSlots),
		limit: int64(maxPerHost),
		log:   log,
	}
}

// Hold waits for a free slot on host and returns the function that gives it back.
// The wait is part of the probe: ctx is the probe's own deadline, so a probe that
// cannot get a slot in time fails as a timeout.
func (p *HostSemaphorePool) Hold(ctx context.Context, host string) (release func(), err error) {
	slots := p.join(host)

	start := time.Now()
	if err := slots.sem.Acquire(ctx, 1); err != nil {
		p.leave(slots)
		return nil, fmt.Errorf("%w for %s after %v: %w", utils.ErrSemaphoreTimeout, host, time.Since(start).Round(time.Millisecond), err)
	}
	if waited := time.Since(start); waited > 100*time.Millisecond {
		p.log.WithFields(logrus.Fields{"host": host, "waited": waited}).Debug("Probe waited for a host slot")
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			slots.sem.Release(1)
			p.leave(slots)
		})
	}, nil
}

func (p *HostSemaphorePool) join(host string) *hostSlots {
	p.mu.Lock()
	defer p.mu.Unlock()
	slots, ok := p.hosts[host]
	if !ok {
		slots = &hostSlots{sem: semaphore.NewWeighted(p.limit)}
		p.hosts[host] = slots
	}
	slots.users++
	return slots
}

func (p *HostSemaphorePool) leave(slots *hostSlots) {
	p.mu.Lock()
	defer p.mu.Unlock()
	slots.users--
	if slots.users == 0 {
		slots.idleSince = time.Now()
	}
}

// RunEviction drops hosts that have been idle for a whole interval until ctx is done.
// Long-lived owners such as the MCP server run it in a goroutine.
func (p *HostSemaphorePool) RunEviction(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := p.evictIdle(interval); n > 0 {
				p.log.WithFields(logrus.Fields{"evicted": n, "remaining": p.Len()}).Debug("Evicted idle probe hosts")
			}
		case <-ctx.Done():
			return
		}
	}
}

func (p *HostSemaphorePool) evictIdle(maxIdle time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	evicted := 0
	for host, slots := range p.hosts {
		if slots.users == 0 && time.Since(slots.idleSince) >= maxIdle {
			delete(p.hosts, host)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of hosts currently tracked
func (p *HostSemaphorePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.hosts)
}
