// Package metrics provides Prometheus metrics for the prescriber API:
// HTTP request counters and histograms plus domain counters for catalog
// syncs, learn operations and catalog searches. All metrics register with
// the default registry at package initialization.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	SyncRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_sync_records_total",
			Help: "Catalog snapshot records processed, by entity and outcome",
		},
		[]string{"entity", "action"},
	)

	SyncFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_sync_failures_total",
			Help: "Catalog sync failures, by entity and stage",
		},
		[]string{"entity", "stage"},
	)

	LearnOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treatment_learn_total",
			Help: "Learn operations, by outcome",
		},
		[]string{"result"},
	)

	SearchQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_search_total",
			Help: "Catalog search queries, by catalog",
		},
		[]string{"catalog"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(SyncRecordsTotal)
	prometheus.MustRegister(SyncFailuresTotal)
	prometheus.MustRegister(LearnOperationsTotal)
	prometheus.MustRegister(SearchQueriesTotal)
}
