// Package metrics provides Prometheus metrics for the clover service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ComparisonsTotal tracks record comparisons by whether they were comparable
	ComparisonsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "matching",
			Name:      "comparisons_total",
			Help:      "Total number of record comparisons",
		},
		[]string{"entity_type", "comparable"},
	)

	// DuplicatesFoundTotal tracks duplicate candidates reported
	DuplicatesFoundTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "matching",
			Name:      "duplicates_found_total",
			Help:      "Total number of duplicate candidates reported",
		},
		[]string{"entity_type"},
	)

	// RowAssessmentsTotal tracks reconciled rows by assessment
	RowAssessmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "reconciliation",
			Name:      "rows_total",
			Help:      "Total number of reconciled rows by assessment",
		},
		[]string{"entity_type", "assessment"},
	)

	// RowWarningsTotal tracks row-level warnings
	RowWarningsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "reconciliation",
			Name:      "row_warnings_total",
			Help:      "Total number of row warnings",
		},
		[]string{"entity_type"},
	)

	// ReconciliationDuration tracks reconciliation run duration in seconds
	ReconciliationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "reconciliation",
			Name:      "duration_seconds",
			Help:      "Duration of reconciliation runs in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"entity_type", "status"},
	)

	// CacheRequestsTotal tracks result cache lookups
	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "cache",
			Name:      "requests_total",
			Help:      "Total number of result cache lookups",
		},
		[]string{"result"}, // hit, miss, error
	)

	// ImportMessagesTotal tracks consumed import batch messages
	ImportMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "kafka",
			Name:      "import_messages_total",
			Help:      "Total number of import batch messages processed",
		},
		[]string{"status"},
	)

	// HTTPRequestsTotal tracks inbound HTTP requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of inbound HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	// HTTPRequestDuration tracks inbound HTTP request duration
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of inbound HTTP requests in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)
)
