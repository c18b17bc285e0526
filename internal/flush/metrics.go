package flush

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "elderpass_queue_depth",
		Help: "Check events waiting for durable persistence.",
	})
	flushedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "elderpass_flushed_events_total",
		Help: "Check events durably written by the flush scheduler.",
	})
	flushFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "elderpass_flush_failures_total",
		Help: "Drain attempts stopped by a sink failure.",
	})
	drainDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "elderpass_drain_duration_seconds",
		Help:    "Wall time of each drain attempt.",
		Buckets: prometheus.DefBuckets,
	})
)
