// Package metrics exposes the engine's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all collectors, registered on the default registry.
type Metrics struct {
	BeaconsProcessed prometheus.Counter
	BeaconsDropped   *prometheus.CounterVec
	BeaconsFailed    prometheus.Counter
	IngestDuration   prometheus.Histogram

	ScannerRuns        prometheus.Counter
	ScannerCartsFound  prometheus.Counter
	ScannerEnrollments prometheus.Counter
	ScannerFailures    prometheus.Counter
}

// New registers and returns the collectors.
func New() *Metrics {
	return &Metrics{
		BeaconsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "merchpulse_beacons_processed_total",
			Help: "Beacons durably recorded.",
		}),
		BeaconsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "merchpulse_beacons_dropped_total",
			Help: "Beacons intentionally dropped by the filter.",
		}, []string{"reason"}),
		BeaconsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "merchpulse_beacons_failed_total",
			Help: "Beacons that failed on a store error.",
		}),
		IngestDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "merchpulse_ingest_duration_seconds",
			Help:    "End-to-end beacon pipeline latency.",
			Buckets: prometheus.DefBuckets,
		}),
		ScannerRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "merchpulse_scanner_runs_total",
			Help: "Abandoned-cart scanner executions.",
		}),
		ScannerCartsFound: promauto.NewCounter(prometheus.CounterOpts{
			Name: "merchpulse_scanner_carts_found_total",
			Help: "Qualifying abandoned carts found by the scanner.",
		}),
		ScannerEnrollments: promauto.NewCounter(prometheus.CounterOpts{
			Name: "merchpulse_scanner_enrollments_total",
			Help: "Recovery enrollments created by the scanner.",
		}),
		ScannerFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "merchpulse_scanner_failures_total",
			Help: "Per-session enrollment failures during scans.",
		}),
	}
}
