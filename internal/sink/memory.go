package sink

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"elderpass/internal/checkin"
)

// Memory keeps partitions in process memory. It honors the same contract as
// Postgres and backs SINK_BACKEND=memory for development, plus the injected
// fake in scheduler and analysis tests.
type Memory struct {
	loc *time.Location

	mu         sync.Mutex
	partitions map[string][]checkin.Event
}

// NewMemory creates an empty in-memory sink using loc for partition keys.
func NewMemory(loc *time.Location) *Memory {
	return &Memory{loc: loc, partitions: make(map[string][]checkin.Event)}
}

// Write appends the event to its day partition.
func (m *Memory) Write(_ context.Context, evt checkin.Event) error {
	day := DayKey(evt.Time, m.loc)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.partitions[day] = append(m.partitions[day], evt)
	return nil
}

// ReadDay returns one day's events in append order.
func (m *Memory) ReadDay(_ context.Context, day string) ([]checkin.Event, error) {
	if !ValidDayKey(day) {
		return nil, fmt.Errorf("%w: bad day key %q", ErrSinkUnavailable, day)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	events := m.partitions[day]
	out := make([]checkin.Event, len(events))
	copy(out, events)
	return out, nil
}

// ReadAll returns every event, partitions in day order.
func (m *Memory) ReadAll(_ context.Context) ([]checkin.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	days := make([]string, 0, len(m.partitions))
	for day := range m.partitions {
		days = append(days, day)
	}
	sort.Strings(days)
	var all []checkin.Event
	for _, day := range days {
		all = append(all, m.partitions[day]...)
	}
	return all, nil
}

// Partitions lists existing day keys, ascending.
func (m *Memory) Partitions(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	days := make([]string, 0, len(m.partitions))
	for day := range m.partitions {
		days = append(days, day)
	}
	sort.Strings(days)
	return days, nil
}
