// Package metrics holds the Prometheus collectors served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts ingest HTTP requests by response code.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collectd_http_requests_total",
		Help: "Ingest HTTP requests by status code.",
	}, []string{"code"})

	// RecordsEnqueued counts flat records accepted onto the queue.
	RecordsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collectd_records_enqueued_total",
		Help: "Flat records accepted onto the ingest queue.",
	})

	// RecordsDropped counts records that could not be enqueued or decoded,
	// by reason.
	RecordsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collectd_records_dropped_total",
		Help: "Records dropped before reaching the queue, by reason.",
	}, []string{"reason"})

	// BatchesFlushed counts successful sink flushes.
	BatchesFlushed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collectd_batches_flushed_total",
		Help: "Batches successfully handed to the sink.",
	})

	// RecordsFlushed counts records written through the sink.
	RecordsFlushed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collectd_records_flushed_total",
		Help: "Flat records written through the sink.",
	})

	// FlushErrors counts sink flush failures. A failure is fatal to the
	// batch writer, so this counter moves at most once per process.
	FlushErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collectd_flush_errors_total",
		Help: "Sink flush failures.",
	})
)

// RegisterQueueDepth exposes the ingest queue depth as a gauge. Call once
// after the queue is constructed.
func RegisterQueueDepth(depth func() int) {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "collectd_queue_depth",
		Help: "Records pushed but not yet consumed by the batch writer.",
	}, func() float64 { return float64(depth()) })
}
