package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"elderpass/internal/checkin"
)

func event(id string) checkin.Event {
	return checkin.Event{EntryID: id, StudentID: "STU001", Direction: checkin.DirectionIn, Time: time.Now()}
}

func TestMemoryFIFO(t *testing.T) {
	ctx := context.Background()
	q := NewMemory()

	for i := 0; i < 5; i++ {
		if err := q.Enqueue(ctx, event(fmt.Sprintf("e%d", i))); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	for i := 0; i < 5; i++ {
		snap, err := q.Snapshot(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if snap[0].EntryID != fmt.Sprintf("e%d", i) {
			t.Fatalf("head = %s, want e%d", snap[0].EntryID, i)
		}
		if err := q.RemoveFront(ctx); err != nil {
			t.Fatal(err)
		}
	}

	if n, _ := q.Len(ctx); n != 0 {
		t.Errorf("queue not empty after draining: %d", n)
	}
}

func TestMemorySnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	q := NewMemory()
	_ = q.Enqueue(ctx, event("a"))

	snap, _ := q.Snapshot(ctx)
	snap[0].EntryID = "mutated"

	again, _ := q.Snapshot(ctx)
	if again[0].EntryID != "a" {
		t.Error("mutating a snapshot must not affect the queue")
	}
}

func TestMemorySnapshotUnaffectedByLaterEnqueues(t *testing.T) {
	ctx := context.Background()
	q := NewMemory()
	_ = q.Enqueue(ctx, event("a"))

	snap, _ := q.Snapshot(ctx)
	_ = q.Enqueue(ctx, event("b"))

	if len(snap) != 1 {
		t.Errorf("snapshot grew after a later enqueue: %d", len(snap))
	}
	if n, _ := q.Len(ctx); n != 2 {
		t.Errorf("queue len = %d, want 2", n)
	}
}

func TestMemoryRemoveFrontOnEmpty(t *testing.T) {
	if err := NewMemory().RemoveFront(context.Background()); err != nil {
		t.Errorf("RemoveFront on empty queue must be a no-op, got %v", err)
	}
}

func TestMemoryConcurrentEnqueue(t *testing.T) {
	ctx := context.Background()
	q := NewMemory()

	const writers, each = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < each; i++ {
				_ = q.Enqueue(ctx, event(fmt.Sprintf("w%d-%d", w, i)))
			}
		}(w)
	}
	wg.Wait()

	if n, _ := q.Len(ctx); n != writers*each {
		t.Fatalf("len = %d, want %d", n, writers*each)
	}

	// per-writer order must be preserved even though writers interleave
	snap, _ := q.Snapshot(ctx)
	next := make(map[string]int)
	for _, evt := range snap {
		var w, i int
		if _, err := fmt.Sscanf(evt.EntryID, "w%d-%d", &w, &i); err != nil {
			t.Fatalf("unexpected entry id %q", evt.EntryID)
		}
		key := fmt.Sprintf("w%d", w)
		if i != next[key] {
			t.Fatalf("writer %d order broken: got %d, want %d", w, i, next[key])
		}
		next[key]++
	}
}
