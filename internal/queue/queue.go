package queue

import (
	"context"
	"sync"

	"elderpass/internal/checkin"
)

// Queue is the submission buffer between the request path and the flush
// scheduler. Drain protocol: Snapshot the current contents, write each event
// durably in order, and RemoveFront only after that event's write succeeds.
type Queue interface {
	// Enqueue appends an event at the tail.
	Enqueue(ctx context.Context, evt checkin.Event) error
	// Snapshot returns a copy of the current contents without mutating the
	// queue, so a drain can iterate while enqueues continue.
	Snapshot(ctx context.Context) ([]checkin.Event, error)
	// RemoveFront pops exactly one event from the head. Called only after
	// that event's durable write is confirmed.
	RemoveFront(ctx context.Context) error
	// Len reports the number of queued events.
	Len(ctx context.Context) (int, error)
}

// Memory is the in-process queue: a mutex-guarded slice, bounded only by
// process memory. Enqueue never fails and never blocks.
type Memory struct {
	mu     sync.Mutex
	events []checkin.Event
}

// NewMemory creates an empty in-memory queue.
func NewMemory() *Memory {
	return &Memory{}
}

// Enqueue appends at the tail.
func (q *Memory) Enqueue(_ context.Context, evt checkin.Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, evt)
	return nil
}

// Snapshot returns a copy of the queued events in FIFO order.
func (q *Memory) Snapshot(_ context.Context) ([]checkin.Event, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]checkin.Event, len(q.events))
	copy(out, q.events)
	return out, nil
}

// RemoveFront pops the head event.
func (q *Memory) RemoveFront(_ context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return nil
	}
	q.events = q.events[1:]
	return nil
}

// Len reports the queue depth.
func (q *Memory) Len(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events), nil
}
