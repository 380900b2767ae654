// Package metrics holds the Prometheus collectors exported on /metrics
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts HTTP requests by method, route and status
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medqueue_http_requests_total",
		Help: "The total number of HTTP requests",
	}, []string{"method", "path", "status"})

	// RequestDuration observes HTTP handling time by route
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "medqueue_http_request_duration_seconds",
		Help:    "The request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	// RateLimitExceededTotal counts requests rejected by a limiter
	RateLimitExceededTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medqueue_rate_limit_exceeded_total",
		Help: "The total number of rate limited requests",
	}, []string{"limiter"})

	// LoginOutcomesTotal counts state machine results by operation and outcome
	LoginOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medqueue_auth_outcomes_total",
		Help: "Login security outcomes",
	}, []string{"operation", "outcome"})

	// AccountLocksTotal counts transitions into the locked state
	AccountLocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medqueue_account_locks_total",
		Help: "The total number of account lockouts",
	})

	// EmailDeliveriesTotal counts email sends by template and status
	EmailDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medqueue_email_deliveries_total",
		Help: "Email delivery attempts",
	}, []string{"template", "status"})

	// QueueOperationsTotal counts queue allocator operations
	QueueOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medqueue_queue_operations_total",
		Help: "Queue allocator operations",
	}, []string{"operation", "status"})

	// SerialConflictsTotal counts serial allocations retried after a unique violation
	SerialConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medqueue_queue_serial_conflicts_total",
		Help: "Serial allocations retried after a conflict",
	})

	// JobRunsTotal counts scheduled job executions
	JobRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medqueue_job_runs_total",
		Help: "Scheduled job executions",
	}, []string{"job", "status"})
)

// Status turns an error into the status label used by the counters above
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
