package pipeline

import (
	"sync"
	"time"
)

// FailedEvent is a build event whose delivery gave up after retries.
type FailedEvent struct {
	Event     Event
	Error     error
	Attempts  int
	Timestamp time.Time
}

// DeadLetterQueue parks undeliverable build events for later inspection.
// With a positive limit only the newest entries are kept.
type DeadLetterQueue struct {
	mu      sync.RWMutex
	entries []FailedEvent
	limit   int
}

// NewDeadLetterQueue returns an empty queue; limit <= 0 means unbounded.
func NewDeadLetterQueue(limit int) *DeadLetterQueue {
	return &DeadLetterQueue{limit: limit}
}

// Enqueue parks fe, evicting the oldest entry when the queue is full.
func (q *DeadLetterQueue) Enqueue(fe FailedEvent) {
	if fe.Timestamp.IsZero() {
		fe.Timestamp = time.Now()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.limit > 0 && len(q.entries) == q.limit {
		copy(q.entries, q.entries[1:])
		q.entries = q.entries[:len(q.entries)-1]
	}
	q.entries = append(q.entries, fe)
}

// GetAll returns a snapshot, oldest first.
func (q *DeadLetterQueue) GetAll() []FailedEvent {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return append([]FailedEvent(nil), q.entries...)
}

// ForBuild returns the parked events of one build.
func (q *DeadLetterQueue) ForBuild(buildID string) []FailedEvent {
	q.mu.RLock()
	defer q.mu.RUnlock()
	var out []FailedEvent
	for _, fe := range q.entries {
		if fe.Event.BuildID == buildID {
			out = append(out, fe)
		}
	}
	return out
}

// Drain empties the queue and returns what it held.
func (q *DeadLetterQueue) Drain() []FailedEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.entries
	q.entries = nil
	return out
}

// Count returns the number of parked events.
func (q *DeadLetterQueue) Count() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.entries)
}
