package flush

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"elderpass/internal/queue"
	"elderpass/internal/sink"
)

// Scheduler periodically drains the submission queue into the durable sink.
// Delivery is at-least-once with FIFO-preserving partial progress: an event
// leaves the queue only after its write succeeds, and a failure stops the
// drain at that event so the next tick resumes there.
type Scheduler struct {
	queue    queue.Queue
	sink     sink.Sink
	interval time.Duration
	logger   *slog.Logger

	// draining guards against overlapping drains. A tick that fires while a
	// previous drain is still writing would otherwise read the same queue
	// head and double-submit.
	draining atomic.Bool
}

// NewScheduler builds a scheduler. Interval defaults to 10s when
// non-positive.
func NewScheduler(q queue.Queue, s sink.Sink, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Scheduler{queue: q, sink: s, interval: interval, logger: logger}
}

// Run ticks until ctx is cancelled, then makes one final synchronous
// best-effort drain before returning. The final drain runs on a context
// detached from the cancelled one; if it fails, the remaining events are
// lost and logged as such.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("flush scheduler started", "interval", s.interval)
	for {
		select {
		case <-ticker.C:
			if err := s.DrainOnce(ctx); err != nil {
				s.logger.Error("drain failed, will retry next tick", "err", err)
			}
		case <-ctx.Done():
			s.shutdownDrain(ctx)
			return
		}
	}
}

func (s *Scheduler) shutdownDrain(ctx context.Context) {
	s.logger.Info("shutting down, draining queue")
	final := context.WithoutCancel(ctx)
	if err := s.DrainOnce(final); err != nil {
		remaining, lenErr := s.queue.Len(final)
		if lenErr != nil {
			remaining = -1
		}
		s.logger.Error("final drain failed, queued events lost", "err", err, "lost", remaining)
		return
	}
	s.logger.Info("final drain complete")
}

// DrainOnce runs a single drain attempt: snapshot the queue and, for each
// event in FIFO order, write then pop. On the first write failure it stops
// immediately, leaving the failed event and everything behind it queued. A
// call that finds another drain in flight is a no-op.
func (s *Scheduler) DrainOnce(ctx context.Context) error {
	if !s.draining.CompareAndSwap(false, true) {
		s.logger.Debug("drain already in progress, skipping tick")
		return nil
	}
	defer s.draining.Store(false)

	depth, err := s.queue.Len(ctx)
	if err != nil {
		return err
	}
	queueDepth.Set(float64(depth))
	if depth == 0 {
		return nil
	}

	start := time.Now()
	defer func() { drainDuration.Observe(time.Since(start).Seconds()) }()

	snapshot, err := s.queue.Snapshot(ctx)
	if err != nil {
		flushFailures.Inc()
		return err
	}
	s.logger.Info("draining queue", "events", len(snapshot))

	for _, evt := range snapshot {
		if err := s.sink.Write(ctx, evt); err != nil {
			flushFailures.Inc()
			return err
		}
		if err := s.queue.RemoveFront(ctx); err != nil {
			flushFailures.Inc()
			return err
		}
		flushedTotal.Inc()
	}

	if depth, err := s.queue.Len(ctx); err == nil {
		queueDepth.Set(float64(depth))
	}
	return nil
}
