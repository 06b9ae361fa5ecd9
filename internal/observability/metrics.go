package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	LedgerTransactions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_transactions_total",
			Help: "Ledger transactions by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	LedgerRecordDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ledger_record_duration_seconds",
			Help:    "Duration of recording a ledger transaction in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// InitMetrics registers the collectors with reg. Call once per process.
func InitMetrics(reg prometheus.Registerer) {
	reg.MustRegister(HTTPRequests, HTTPDuration, LedgerTransactions, LedgerRecordDuration)
}
