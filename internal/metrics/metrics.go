// Package metrics defines the Prometheus instruments for the submission
// pipeline. All metrics are registered via promauto at package init.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Admission metrics
var (
	// AdmissionDecisions counts admission outcomes ("accepted"/"rejected").
	AdmissionDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admission_decisions_total",
			Help: "Admission decisions by outcome",
		},
		[]string{"outcome"},
	)

	// QuotaExhaustions counts rejections per quota.
	QuotaExhaustions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_exhaustions_total",
			Help: "Submissions rejected per quota",
		},
		[]string{"quota_id"},
	)

	// CounterRollbacks counts rollback operations after rejection or
	// cancellation.
	CounterRollbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quota_counter_rollbacks_total",
			Help: "Period counter decrements from rejected or cancelled admissions",
		},
	)
)

// Classification metrics
var (
	ClassificationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "classification_duration_seconds",
			Help:    "Time spent classifying one submission",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25},
		},
	)

	PersonaAssignments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "persona_assignments_total",
			Help: "Persona assignments by persona ID",
		},
		[]string{"persona"},
	)
)

// Alert correlation metrics
var (
	AlertsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctl_alerts_created_total",
			Help: "CTL alerts created by level",
		},
		[]string{"level"},
	)

	AlertsReused = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ctl_alerts_reused_total",
			Help: "Correlations deduplicated against an existing open alert",
		},
	)

	TicketLinkFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ctl_ticket_link_failures_total",
			Help: "Ticket creation failures for newly created alerts",
		},
	)
)

// Storage metrics
var (
	// StoreRetries counts retried contention errors by store ("counter"/"alert").
	StoreRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_contention_retries_total",
			Help: "Retried storage contention errors by store",
		},
		[]string{"store"},
	)

	RedisOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Redis operations by command and status",
		},
		[]string{"operation", "status"},
	)

	RedisOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Redis operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	RedisConnectionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redis_connection_errors_total",
			Help: "Redis connection errors",
		},
	)

	CircuitBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_changes_total",
			Help: "Circuit breaker state transitions by component",
		},
		[]string{"component", "state"},
	)

	// CircuitBreakerState reports the current state (0=closed, 1=half-open, 2=open).
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)

// Pipeline metrics
var (
	PipelineJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_jobs_total",
			Help: "Pipeline jobs by result (accepted/rejected/error/cancelled)",
		},
		[]string{"result"},
	)

	PipelineQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_queue_depth",
			Help: "Submissions waiting for a pipeline worker",
		},
	)
)
