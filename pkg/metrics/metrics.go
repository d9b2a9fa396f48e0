// Package metrics holds the Prometheus collectors shared across packages.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultBuckets provides a common set of histogram buckets in seconds that can
// be reused across the application for latency metrics.
var DefaultBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10} //nolint: gochecknoglobals

// Transaction outcomes recorded by ObserveTx.
const (
	TxCommitted  = "committed"
	TxRolledBack = "rolled_back"
	TxFailed     = "failed"
)

// TxDuration tracks how long storage transactions take, labelled by backend
// and outcome.
var TxDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{ //nolint: gochecknoglobals
	Namespace: "civic",
	Subsystem: "storage",
	Name:      "tx_duration_seconds",
	Help:      "Duration of storage transactions.",
	Buckets:   DefaultBuckets,
}, []string{"backend", "outcome"})

// ObserveTx records a finished transaction that started at start.
func ObserveTx(backend, outcome string, start time.Time) {
	TxDuration.WithLabelValues(backend, outcome).Observe(time.Since(start).Seconds())
}
