package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "patchbay"
)

var (
	executeDurationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60}

	// Dispatch metrics
	ExecuteDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "execute_duration_seconds",
		Help:      "Time taken for an action dispatch, including plugin execution.",
		Buckets:   executeDurationBuckets,
	}, []string{"integration_id", "action"})

	ExecutesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "executes_total",
		Help:      "Count of action dispatches.",
	}, []string{"integration_id", "action", "status"})

	// Lifecycle metrics
	ConnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "connects_total",
		Help:      "Count of connect attempts.",
	}, []string{"integration_id", "status"})

	LiveConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "live_connections",
		Help:      "Number of live runtime connectors.",
	}, []string{"integration_id"})

	ConnectionTestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "connection_tests_total",
		Help:      "Count of connection tests.",
	}, []string{"integration_id", "status"})
)
