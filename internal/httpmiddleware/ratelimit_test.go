package httpmiddleware

import (
	"testing"
	"time"
)

func TestRateLimiterExhaustsAndRefills(t *testing.T) {
	l := NewRateLimiter(60) // one token per second
	now := time.Now()

	for i := 0; i < 60; i++ {
		if !l.take("10.0.0.1", now) {
			t.Fatalf("request %d rejected within capacity", i)
		}
	}
	if l.take("10.0.0.1", now) {
		t.Fatal("request beyond capacity must be rejected")
	}

	// two seconds later two tokens have refilled
	later := now.Add(2 * time.Second)
	if !l.take("10.0.0.1", later) || !l.take("10.0.0.1", later) {
		t.Fatal("refilled tokens not granted")
	}
	if l.take("10.0.0.1", later) {
		t.Fatal("third request after two-token refill must be rejected")
	}
}

func TestRateLimiterIsolatesClients(t *testing.T) {
	l := NewRateLimiter(1)
	now := time.Now()

	if !l.take("10.0.0.1", now) {
		t.Fatal("first client rejected")
	}
	if l.take("10.0.0.1", now) {
		t.Fatal("first client over limit must be rejected")
	}
	if !l.take("10.0.0.2", now) {
		t.Fatal("second client must have its own bucket")
	}
}
