// Package queue orders check targets so that cheap, fast probes run before slow ones.
package queue

import (
	"container/heap"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/page-auditor/pkg/models"
	"github.com/Sriram-PR/page-auditor/pkg/parse"
)

// Priority bands. Lower values pop first; targets within a band keep insertion order.
const (
	PriorityInline      = -1 // Image data URIs: settled without network access
	PriorityNormal      = 0
	PriorityProblematic = 1 // Registered domains: slow and retried, so they go last
)

// PriorityFor picks the band for a target
func PriorityFor(t models.CheckTarget) int {
	if t.Kind == models.KindImage && parse.Classify(t.URL) == models.ResourceDataURI {
		return PriorityInline
	}
	if parse.IsProblematicDomain(t.URL) {
		return PriorityProblematic
	}
	return PriorityNormal
}

// --- Priority Queue Implementation ---

// PQItem represents an item in the priority queue
type PQItem struct {
	target   models.CheckTarget
	priority int
	seq      uint64 // Insertion order, breaks ties within a band
	index    int    // The index of the item in the heap (required by heap interface)
}

// PriorityQueue implements heap.Interface
type PriorityQueue []*PQItem

func (pq PriorityQueue) Len() int { return len(pq) }

func (pq PriorityQueue) Less(i, j int) bool {
	if pq[i].priority != pq[j].priority {
		return pq[i].priority < pq[j].priority
	}
	return pq[i].seq < pq[j].seq
}

func (pq PriorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

// Push adds an element to the heap
func (pq *PriorityQueue) Push(x any) {
	n := len(*pq)
	item := x.(*PQItem)
	item.index = n
	*pq = append(*pq, item)
}

// Pop removes and returns the minimum element from the heap
func (pq *PriorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // avoid memory leak
	item.index = -1 // for safety
	*pq = old[0 : n-1]
	return item
}

// TargetQueue wraps PriorityQueue with concurrency controls. A run loads it completely,
// seals it with Close and then drains it, so Pop never waits for producers.
type TargetQueue struct {
	pq     PriorityQueue
	mu     sync.Mutex
	seq    uint64
	closed bool
	log    *logrus.Entry
}

// NewTargetQueue creates a new thread-safe target queue
func NewTargetQueue(log *logrus.Entry) *TargetQueue {
	q := &TargetQueue{log: log}
	heap.Init(&q.pq)
	return q
}

// Add pushes a target with the priority chosen by PriorityFor
func (q *TargetQueue) Add(t models.CheckTarget) {
	q.AddWithPriority(t, PriorityFor(t))
}

// AddWithPriority pushes a target into an explicit band
func (q *TargetQueue) AddWithPriority(t models.CheckTarget, priority int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.log.Warnf("Attempted to add target to closed queue: %s", t.URL)
		return
	}

	heap.Push(&q.pq, &PQItem{target: t, priority: priority, seq: q.seq})
	q.seq++
}

// Pop removes and returns the next target, or false when the queue is empty
func (q *TargetQueue) Pop() (models.CheckTarget, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pq) == 0 {
		return models.CheckTarget{}, false
	}
	item := heap.Pop(&q.pq).(*PQItem)
	return item.target, true
}

// Close seals the queue; later Adds are dropped with a warning
func (q *TargetQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

// Len returns the current number of queued targets
func (q *TargetQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pq)
}
