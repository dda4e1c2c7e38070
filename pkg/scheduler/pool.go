// Package scheduler drains a target queue through a bounded pool of concurrent probes.
package scheduler

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/Sriram-PR/page-auditor/pkg/models"
	"github.com/Sriram-PR/page-auditor/pkg/queue"
)

// Checker probes one target and always returns a terminal result. *probe.Prober satisfies it.
type Checker interface {
	Check(ctx context.Context, t models.CheckTarget) models.ProbeResult
}

// EmitFunc receives each completed result with the queue's progress after it.
// Calls from one pool are serialized and arrive in completion order.
type EmitFunc func(r models.ProbeResult, p models.Progress)

// Abort is the cooperative stop flag shared by the pools of one run.
// Once Set returns, no pool observing the flag dequeues another target.
type Abort struct {
	mu  sync.RWMutex
	set bool
}

// Set raises the flag
func (a *Abort) Set() {
	a.mu.Lock()
	a.set = true
	a.mu.Unlock()
}

// IsSet reports whether the flag has been raised
func (a *Abort) IsSet() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.set
}

// dequeue pops the next target unless the flag is raised. Set waits for an in-progress dequeue.
func (a *Abort) dequeue(q *queue.TargetQueue) (models.CheckTarget, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.set {
		return models.CheckTarget{}, false
	}
	return q.Pop()
}

// Pool keeps at most `concurrency` probes from one queue in flight and refills
// freed capacity as soon as a probe completes.
type Pool struct {
	name        models.QueueName
	queue       *queue.TargetQueue
	checker     Checker
	concurrency int
	abort       *Abort
	log         *logrus.Entry

	mu        sync.Mutex // Serializes progress accounting and emission
	processed int
}

// NewPool creates a pool for one queue. concurrency below 1 is treated as 1.
func NewPool(name models.QueueName, q *queue.TargetQueue, checker Checker, concurrency int, abort *Abort, log *logrus.Entry) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	if abort == nil {
		abort = &Abort{}
	}
	return &Pool{
		name:        name,
		queue:       q,
		checker:     checker,
		concurrency: concurrency,
		abort:       abort,
		log:         log.WithField("queue", name),
	}
}

// Drain runs until the queue is empty, the abort flag is raised or ctx is done, then waits
// for every started probe to finish. total is the denominator reported in progress events.
// It returns the number of probes started; each of them produced exactly one emit call.
func (p *Pool) Drain(ctx context.Context, total int, emit EmitFunc) int {
	sem := semaphore.NewWeighted(int64(p.concurrency))
	var wg sync.WaitGroup
	started := 0

	p.log.WithFields(logrus.Fields{"total": total, "concurrency": p.concurrency}).Info("Draining queue")
	for {
		if err := sem.Acquire(ctx, 1); err != nil {
			p.log.Debugf("Stopped waiting for capacity: %v", err)
			break
		}
		if ctx.Err() != nil {
			sem.Release(1)
			break
		}
		t, ok := p.abort.dequeue(p.queue)
		if !ok {
			sem.Release(1)
			break
		}

		started++
		wg.Add(1)
		go func(t models.CheckTarget) {
			defer wg.Done()
			defer sem.Release(1)
			r := p.checker.Check(ctx, t)
			p.record(r, total, emit)
		}(t)
	}

	wg.Wait()
	if p.abort.IsSet() {
		p.log.WithFields(logrus.Fields{"started": started, "left": p.queue.Len()}).Info("Queue drain aborted")
	} else {
		p.log.WithField("started", started).Info("Queue drained")
	}
	return started
}

// Processed returns how many probes have completed
func (p *Pool) Processed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.processed
}

func (p *Pool) record(r models.ProbeResult, total int, emit EmitFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processed++
	p.log.WithFields(logrus.Fields{"url": r.URL, "status": r.Status, "processed": p.processed}).Debug("Probe complete")
	if emit != nil {
		emit(r, models.Progress{Queue: p.name, Processed: p.processed, Total: total})
	}
}
