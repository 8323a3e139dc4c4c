// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_messages_processed_total",
			Help: "Total number of inbound messages handled by the conversation engine",
		},
		[]string{"result"},
	)

	ValidationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_validation_failures_total",
			Help: "Total number of rejected answers per intake step",
		},
		[]string{"step"},
	)

	ApplicationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_applications_created_total",
			Help: "Total number of completed applications inserted into the store",
		},
	)

	SubmissionAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_submission_attempts_total",
			Help: "Total number of executor attempts by outcome",
		},
		[]string{"outcome"},
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "scheduler_cycle_duration_seconds",
			Help: "Duration of one scheduler poll cycle in seconds",
		},
	)

	PendingRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scheduler_pending_records",
			Help: "Number of pending records seen in the last poll cycle",
		},
	)
)
