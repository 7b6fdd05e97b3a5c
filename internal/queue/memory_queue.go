package queue

import (
	"sync"
	"time"
)

// InMemoryQueue is a FlowQueue backed by a slice FIFO and a map of
// in-progress heartbeats, guarded by a single mutex so PopPending's
// dequeue-then-insert step is externally indivisible.
//
// RequeueExpired walks the whole in-progress set (O(N)); acceptable at the
// reference scale this engine targets. A min-heap by heartbeat would make it
// O(log N) per expiration without changing observable behavior.
type InMemoryQueue struct {
	mu         sync.Mutex
	pending    []string
	inProgress map[string]time.Time
}

// NewInMemoryQueue creates an empty InMemoryQueue.
func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		inProgress: make(map[string]time.Time),
	}
}

var _ FlowQueue = (*InMemoryQueue)(nil)

func (q *InMemoryQueue) PushPending(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, id)
}

func (q *InMemoryQueue) PopPending() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return "", false
	}

	id := q.pending[0]
	q.pending = q.pending[1:]
	q.inProgress[id] = time.Now()
	return id, true
}

func (q *InMemoryQueue) PushInProgress(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.inProgress[id] = time.Now()
}

func (q *InMemoryQueue) PopInProgress(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inProgress, id)
}

func (q *InMemoryQueue) ResetHeartbeat(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.inProgress[id]; ok {
		q.inProgress[id] = time.Now()
	}
}

func (q *InMemoryQueue) RequeueExpired(visibilityTimeout time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	var expired []string
	for id, lastHeartbeat := range q.inProgress {
		if now.Sub(lastHeartbeat) > visibilityTimeout {
			expired = append(expired, id)
		}
	}

	for _, id := range expired {
		delete(q.inProgress, id)
		q.pending = append(q.pending, id)
	}
}
