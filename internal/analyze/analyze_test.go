package analyze

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"elderpass/internal/checkin"
	"elderpass/internal/flush"
	"elderpass/internal/queue"
	"elderpass/internal/sink"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func event(id string, dir checkin.Direction, at time.Time) checkin.Event {
	return checkin.Event{StudentID: id, Direction: dir, Time: at}
}

var base = time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)

func TestAnalyzeGroupsAndSorts(t *testing.T) {
	ctx := context.Background()
	store := sink.NewMemory(time.UTC)

	// deliberately written out of chronological order
	_ = store.Write(ctx, event("STU001", checkin.DirectionOut, base.Add(30*time.Minute)))
	_ = store.Write(ctx, event("STU002", checkin.DirectionIn, base.Add(5*time.Minute)))
	_ = store.Write(ctx, event("STU001", checkin.DirectionIn, base))

	report, err := NewEngine(store, testLogger()).Analyze(ctx, "")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(report.Students) != 2 {
		t.Fatalf("students = %d, want 2", len(report.Students))
	}

	rec := report.Students["STU001"]
	if rec == nil || len(rec.Events) != 2 {
		t.Fatalf("STU001 record wrong: %+v", rec)
	}
	if rec.Events[0].Direction != checkin.DirectionIn || rec.Events[1].Direction != checkin.DirectionOut {
		t.Errorf("STU001 events not sorted ascending by time: %+v", rec.Events)
	}
}

func TestProblematicCountRules(t *testing.T) {
	cases := []struct {
		name string
		ins  int
		outs int
		want bool
	}{
		{"balanced 2/2", 2, 2, false},
		{"unbalanced 2/1", 2, 1, true},
		{"only in", 1, 0, true},
		{"only out", 0, 3, true},
		{"balanced 1/1", 1, 1, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			store := sink.NewMemory(time.UTC)
			at := base
			for i := 0; i < tc.ins; i++ {
				_ = store.Write(ctx, event("STU001", checkin.DirectionIn, at))
				at = at.Add(time.Minute)
			}
			for i := 0; i < tc.outs; i++ {
				_ = store.Write(ctx, event("STU001", checkin.DirectionOut, at))
				at = at.Add(time.Minute)
			}

			report, err := NewEngine(store, testLogger()).Analyze(ctx, "")
			if err != nil {
				t.Fatal(err)
			}
			rec := report.Students["STU001"]
			if rec.IsProblematic != tc.want {
				t.Errorf("IsProblematic = %v, want %v", rec.IsProblematic, tc.want)
			}
			flagged := len(report.Problematic) == 1 && report.Problematic[0] == "STU001"
			if flagged != tc.want {
				t.Errorf("Problematic list = %v, want flagged=%v", report.Problematic, tc.want)
			}
		})
	}
}

func TestStudentsWithoutEventsAreAbsent(t *testing.T) {
	report, err := NewEngine(sink.NewMemory(time.UTC), testLogger()).Analyze(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Students) != 0 || len(report.Problematic) != 0 {
		t.Fatalf("empty store must yield an empty report: %+v", report)
	}
}

func TestAnalyzeDayFilter(t *testing.T) {
	ctx := context.Background()
	store := sink.NewMemory(time.UTC)
	_ = store.Write(ctx, event("STU001", checkin.DirectionIn, base))
	_ = store.Write(ctx, event("STU002", checkin.DirectionIn, base.AddDate(0, 0, 1)))

	report, err := NewEngine(store, testLogger()).Analyze(ctx, "2024-03-05")
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Students) != 1 {
		t.Fatalf("day filter leaked other partitions: %+v", report.Students)
	}
	if _, ok := report.Students["STU001"]; !ok {
		t.Error("expected STU001 in 2024-03-05 scope")
	}
}

func TestAnalyzeRejectsBadDayFilter(t *testing.T) {
	if _, err := NewEngine(sink.NewMemory(time.UTC), testLogger()).Analyze(context.Background(), "03/05/2024"); err == nil {
		t.Fatal("expected error for malformed day filter")
	}
}

type downSink struct{ *sink.Memory }

func (d downSink) ReadAll(context.Context) ([]checkin.Event, error) {
	return nil, fmt.Errorf("%w: injected", sink.ErrSinkUnavailable)
}

func TestAnalyzeSurfacesSinkFailure(t *testing.T) {
	engine := NewEngine(downSink{sink.NewMemory(time.UTC)}, testLogger())
	_, err := engine.Analyze(context.Background(), "")
	if !errors.Is(err, sink.ErrSinkUnavailable) {
		t.Fatalf("expected ErrSinkUnavailable, got %v", err)
	}
}

// End to end: three queued events, one successful flush tick, then analysis.
func TestQueueFlushAnalyzeScenario(t *testing.T) {
	ctx := context.Background()
	q := queue.NewMemory()
	store := sink.NewMemory(time.UTC)

	t1 := base
	t2 := base.Add(45 * time.Minute)
	t3 := base.Add(50 * time.Minute)
	_ = q.Enqueue(ctx, event("STU001", checkin.DirectionIn, t1))
	_ = q.Enqueue(ctx, event("STU001", checkin.DirectionOut, t2))
	_ = q.Enqueue(ctx, event("STU002", checkin.DirectionIn, t3))

	if err := flush.NewScheduler(q, store, time.Second, testLogger()).DrainOnce(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	all, err := store.ReadAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("durable rows = %d, want 3", len(all))
	}
	wantOrder := []string{"STU001", "STU001", "STU002"}
	for i, evt := range all {
		if evt.StudentID != wantOrder[i] {
			t.Errorf("row %d = %s, want %s", i, evt.StudentID, wantOrder[i])
		}
	}

	report, err := NewEngine(store, testLogger()).Analyze(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if report.Students["STU001"].IsProblematic {
		t.Error("STU001 (IN=1, OUT=1) must not be problematic")
	}
	if !report.Students["STU002"].IsProblematic {
		t.Error("STU002 (IN=1, OUT=0) must be problematic")
	}
	if len(report.Problematic) != 1 || report.Problematic[0] != "STU002" {
		t.Errorf("Problematic = %v, want [STU002]", report.Problematic)
	}
}
