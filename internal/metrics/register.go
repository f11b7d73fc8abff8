// Package metrics holds the Prometheus collectors of the API and the indexer.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var registerOnce sync.Once

// Register adds every collector to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestDuration,
			httpRequestsTotal,
			httpInFlight,
			IndexOperationsTotal,
			ReindexDuration,
			ReindexDocumentsTotal,
		)
	})
}
