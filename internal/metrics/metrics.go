package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks total HTTP requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration tracks HTTP request duration
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// QuotesTotal counts quote requests by outcome (quoted, unavailable, invalid)
	QuotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rental_quotes_total",
			Help: "Total number of rental quotes by outcome",
		},
		[]string{"result"},
	)

	// RentalsCreated counts persisted rentals
	RentalsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rentals_created_total",
			Help: "Total number of rentals created",
		},
	)

	// AvailabilityConflicts counts requested lines rejected for lack of stock
	AvailabilityConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rental_availability_conflicts_total",
			Help: "Requested lines that could not be served",
		},
		[]string{"reason"},
	)

	// StatusTransitions counts rental status changes
	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rental_status_transitions_total",
			Help: "Rental status changes by source and target status",
		},
		[]string{"from", "to"},
	)

	// LockWait observes how long reservations waited for their product locks
	LockWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rental_lock_wait_seconds",
			Help:    "Time spent acquiring reservation locks",
			Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"result"},
	)

	// CircuitBreakerState tracks circuit breaker state (0=closed, 1=open, 2=half-open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"circuit_name"},
	)

	// CircuitBreakerFailures tracks calls that failed through a breaker
	CircuitBreakerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of circuit breaker failures",
		},
		[]string{"circuit_name"},
	)

	// JobRuns counts scheduled job executions by outcome
	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduled_job_runs_total",
			Help: "Scheduled job executions",
		},
		[]string{"job", "result"},
	)
)
