// Package metrics holds the Prometheus collectors shared by the server and
// CLI. Collectors register on the default registry; cmd/server exposes them
// on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Receipts ───────────────────────────────────────────────────────────────

// CompressionDuration tracks how long a receipt takes to fit the byte budget.
var CompressionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "tithe",
	Subsystem: "receipts",
	Name:      "compression_duration_seconds",
	Help:      "Time spent compressing a receipt image.",
	Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
})

// CompressedBytes tracks the encoded size of compressed receipts.
var CompressedBytes = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "tithe",
	Subsystem: "receipts",
	Name:      "compressed_bytes",
	Help:      "Encoded size of compressed receipt images.",
	Buckets:   prometheus.ExponentialBuckets(16*1024, 2, 8),
})

// CompressionsOverBudget counts receipts that stayed above the byte budget.
var CompressionsOverBudget = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "tithe",
	Subsystem: "receipts",
	Name:      "over_budget_total",
	Help:      "Receipts still larger than the target after compression.",
})

// CompressionFailures counts receipts that could not be decoded.
var CompressionFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "tithe",
	Subsystem: "receipts",
	Name:      "decode_failures_total",
	Help:      "Receipt images that could not be decoded.",
})

// ─── Archives ───────────────────────────────────────────────────────────────

// ArchiveExports counts archive requests by outcome
// ("ok", "nothing_selected", "nothing_to_export", "error").
var ArchiveExports = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "tithe",
	Subsystem: "archive",
	Name:      "exports_total",
	Help:      "Archive export requests by outcome.",
}, []string{"outcome"})

// ArchiveEntries tracks how many receipts each archive contains.
var ArchiveEntries = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "tithe",
	Subsystem: "archive",
	Name:      "entries",
	Help:      "Number of receipts written per archive.",
	Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
})

// ─── Store ──────────────────────────────────────────────────────────────────

// StoreOperations counts session store calls by operation and result.
var StoreOperations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "tithe",
	Subsystem: "store",
	Name:      "operations_total",
	Help:      "Session store operations by operation and result.",
}, []string{"op", "result"})

// ─── Events ─────────────────────────────────────────────────────────────────

// EventsPublished counts session events sent to the broker by type and result.
var EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "tithe",
	Subsystem: "events",
	Name:      "published_total",
	Help:      "Session events published by type and result.",
}, []string{"type", "result"})

// ObserveCompression records one finished compression.
func ObserveCompression(start time.Time, bytes, target int) {
	CompressionDuration.Observe(time.Since(start).Seconds())
	CompressedBytes.Observe(float64(bytes))
	if bytes > target {
		CompressionsOverBudget.Inc()
	}
}

// ObserveStore records one store call.
func ObserveStore(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	StoreOperations.WithLabelValues(op, result).Inc()
}

// ObservePublish records one event publish attempt.
func ObservePublish(eventType string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	EventsPublished.WithLabelValues(eventType, result).Inc()
}
