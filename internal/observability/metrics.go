// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Platform API metrics
	APIRequests         *prometheus.CounterVec
	APIRetries          prometheus.Counter
	APICallLatency      *prometheus.HistogramVec
	ExecutionsTotal     *prometheus.CounterVec
	ExecutionPollsTotal prometheus.Counter

	// Backfill metrics
	TransferEventsFetched prometheus.Counter
	TransferEventsStored  prometheus.Counter
	TransferEventsSkipped prometheus.Counter
	BackfillErrors        *prometheus.CounterVec

	// Verification metrics
	AddressesChecked  prometheus.Counter
	AddressesVerified prometheus.Counter

	// Report metrics
	ReportsGenerated prometheus.Counter
	ReportRows       prometheus.Histogram

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "tron_netflow"
	}

	return &Metrics{
		// Platform API metrics
		APIRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dune",
			Name:      "api_requests_total",
			Help:      "Total number of Dune API requests by endpoint and status",
		}, []string{"endpoint", "status"}),
		APIRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dune",
			Name:      "api_retries_total",
			Help:      "Total number of Dune API request retries",
		}),
		APICallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dune",
			Name:      "api_call_latency_seconds",
			Help:      "Dune API call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		ExecutionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dune",
			Name:      "executions_total",
			Help:      "Total number of query executions by terminal state",
		}, []string{"state"}),
		ExecutionPollsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dune",
			Name:      "execution_polls_total",
			Help:      "Total number of execution status polls",
		}),

		// Backfill metrics
		TransferEventsFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backfill",
			Name:      "transfer_events_fetched_total",
			Help:      "Total number of transfer events fetched from the platform",
		}),
		TransferEventsStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backfill",
			Name:      "transfer_events_stored_total",
			Help:      "Total number of transfer events stored to database",
		}),
		TransferEventsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backfill",
			Name:      "transfer_events_skipped_total",
			Help:      "Total number of transfer events skipped as duplicates",
		}),
		BackfillErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backfill",
			Name:      "errors_total",
			Help:      "Total number of backfill errors by type",
		}, []string{"error_type"}),

		// Verification metrics
		AddressesChecked: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verification",
			Name:      "addresses_checked_total",
			Help:      "Total number of addresses checked for activity",
		}),
		AddressesVerified: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verification",
			Name:      "addresses_verified_total",
			Help:      "Total number of addresses with matching transfer activity",
		}),

		// Report metrics
		ReportsGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "reports_generated_total",
			Help:      "Total number of net-flow reports generated",
		}),
		ReportRows: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "rows_per_report",
			Help:      "Number of day rows per generated report",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler exposing the registered metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
