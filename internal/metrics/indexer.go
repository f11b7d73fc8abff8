package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Index operation labels.
const (
	OpIndex   = "index"
	OpDelete  = "delete"
	OpBulk    = "bulk"
	OpSearch  = "search"
	OpReindex = "reindex"

	StatusOK      = "ok"
	StatusError   = "error"
	StatusInvalid = "invalid"
)

// Indexer Prometheus metrics.
var (
	IndexOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "popolodex",
			Name:      "index_operations_total",
			Help:      "Total number of search index operations",
		},
		[]string{"op", "status"},
	)

	ReindexDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "popolodex",
			Name:      "reindex_duration_seconds",
			Help:      "Full collection reindex duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"collection"},
	)

	ReindexDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "popolodex",
			Name:      "reindex_documents_total",
			Help:      "Total number of documents submitted by reindex",
		},
		[]string{"collection"},
	)
)

// ObserveIndexOp counts one index operation outcome.
func ObserveIndexOp(op, status string) {
	IndexOperationsTotal.WithLabelValues(op, status).Inc()
}

// ObserveReindex records a finished reindex.
func ObserveReindex(collection string, docs int, took time.Duration) {
	ReindexDuration.WithLabelValues(collection).Observe(took.Seconds())
	ReindexDocumentsTotal.WithLabelValues(collection).Add(float64(docs))
}
