package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SyncTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "packages_remote_sync_total",
			Help: "Total number of remote synchronizations by result",
		},
		[]string{"provider", "result"},
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "packages_remote_sync_duration_seconds",
			Help:    "Remote synchronization duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"provider"},
	)

	LastSyncEnd = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "packages_last_remote_sync_end_timestamp",
			Help: "Unix timestamp of when the last synchronization of a remote ended",
		},
		[]string{"remote"},
	)

	PackagesReconciled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "packages_reconciled_total",
			Help: "Packages created, updated or disabled by synchronization",
		},
		[]string{"provider", "change"},
	)
)
