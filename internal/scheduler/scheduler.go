// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"strings"
	"time"

	"loanbot/internal/common/logger"
	"loanbot/internal/common/metrics"
	"loanbot/internal/common/observability"
	"loanbot/internal/executor"
	"loanbot/internal/models"
)

// RecordStore is the slice of the application store the scheduler needs.
type RecordStore interface {
	FetchPending(ctx context.Context, limit int) ([]*models.ApplicationRecord, error)
	ClaimProcessing(ctx context.Context, id string) (bool, error)
	ApplyOutcome(ctx context.Context, id string, newStatus models.Status, attemptDelta int, responseText, verificationCode string) error
	RequeueStale(ctx context.Context, maxAge time.Duration) (int64, error)
}

// Notifier is told about records that reached permanent_error.
type Notifier interface {
	RecordFailed(ctx context.Context, rec *models.ApplicationRecord, reason string)
}

// Config holds the scheduler settings.
type Config struct {
	PollInterval  time.Duration
	BatchSize     int
	MaxRetries    int
	SubmitTimeout time.Duration
	StaleClaimAge time.Duration
}

// Scheduler continuously drives pending applications through the
// submission executor. One cycle runs at a time; within a cycle each
// record is attempted at most once and failures are isolated per record.
type Scheduler struct {
	store    RecordStore
	executor executor.Executor
	notifier Notifier
	obs      *observability.Observability
	config   Config
	logger   logger.Logger

	// trigger overrides the wall-clock ticker in tests.
	trigger <-chan time.Time
}

func New(store RecordStore, exec executor.Executor, notifier Notifier, obs *observability.Observability, cfg Config, log logger.Logger) *Scheduler {
	return &Scheduler{
		store:    store,
		executor: exec,
		notifier: notifier,
		obs:      obs,
		config:   cfg,
		logger:   log.WithFields(map[string]interface{}{"component": "scheduler"}),
	}
}

// NewWithTrigger builds a scheduler whose cycles fire on the given
// channel instead of a ticker, so tests run without wall-clock delays.
func NewWithTrigger(store RecordStore, exec executor.Executor, notifier Notifier, obs *observability.Observability, cfg Config, log logger.Logger, trigger <-chan time.Time) *Scheduler {
	s := New(store, exec, notifier, obs, cfg, log)
	s.trigger = trigger
	return s
}

// Run polls until ctx is cancelled. Shutdown is graceful: the in-flight
// record finishes (bounded by the executor timeout) and no new cycle is
// scheduled.
func (s *Scheduler) Run(ctx context.Context) {
	trigger := s.trigger
	if trigger == nil {
		ticker := time.NewTicker(s.config.PollInterval)
		defer ticker.Stop()
		trigger = ticker.C
	}

	s.logger.Info("scheduler started", map[string]interface{}{
		"pollInterval": s.config.PollInterval.String(),
		"batchSize":    s.config.BatchSize,
		"maxRetries":   s.config.MaxRetries,
	})

	s.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped", nil)
			return
		case <-trigger:
			s.RunCycle(ctx)
		}
	}
}

// RunCycle executes one poll cycle: requeue stale claims, fetch a batch
// of pending records, attempt each once.
func (s *Scheduler) RunCycle(ctx context.Context) {
	start := time.Now()
	defer func() {
		metrics.CycleDuration.Observe(time.Since(start).Seconds())
	}()

	if _, err := s.store.RequeueStale(ctx, s.config.StaleClaimAge); err != nil {
		s.logger.Warn("stale requeue failed", map[string]interface{}{"error": err})
	}

	batch, err := s.store.FetchPending(ctx, s.config.BatchSize)
	if err != nil {
		// Storage outage stalls progress for this cycle, never crashes.
		s.logger.Error("fetch pending failed", map[string]interface{}{"error": err})
		return
	}
	metrics.PendingRecords.Set(float64(len(batch)))

	if len(batch) == 0 {
		return
	}
	s.logger.Info("processing batch", map[string]interface{}{"count": len(batch)})

	for _, rec := range batch {
		select {
		case <-ctx.Done():
			s.logger.Info("shutdown requested, abandoning rest of batch", map[string]interface{}{
				"remaining": len(batch),
			})
			return
		default:
		}
		s.processRecord(ctx, rec)
	}
}

// processRecord runs one attempt: claim, execute under the submit
// timeout, classify, persist the transition. Errors are logged and the
// record is left for the next cycle.
func (s *Scheduler) processRecord(ctx context.Context, rec *models.ApplicationRecord) {
	claimed, err := s.store.ClaimProcessing(ctx, rec.ID)
	if err != nil {
		s.logger.Error("claim failed", map[string]interface{}{
			"applicationId": rec.ID,
			"error":         err,
		})
		return
	}
	if !claimed {
		// Someone else moved it since the fetch; nothing to do.
		return
	}

	// The executor gets its own deadline, detached from loop shutdown,
	// so an in-flight submission completes during graceful stop.
	submitCtx, cancel := context.WithTimeout(context.Background(), s.config.SubmitTimeout)
	attemptStart := time.Now()
	result := s.executor.Submit(submitCtx, rec)
	cancel()

	outcome := result.Kind.String()
	metrics.SubmissionAttempts.WithLabelValues(outcome).Inc()
	if s.obs != nil {
		s.obs.RecordSubmission(ctx, outcome)
		s.obs.RecordSubmissionDuration(ctx, time.Since(attemptStart), outcome)
	}

	writeCtx, cancelWrite := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelWrite()

	switch result.Kind {
	case executor.KindSuccess:
		s.applyOutcome(writeCtx, rec, models.StatusSuccess, responseText(result), "")
		s.logger.Info("submission succeeded", map[string]interface{}{
			"applicationId": rec.ID,
			"trackingRef":   result.TrackingRef,
		})

	case executor.KindNeedsVerification:
		s.applyOutcome(writeCtx, rec, models.StatusNeedsVerification, responseText(result), result.VerificationCode)
		s.logger.Info("submission needs verification", map[string]interface{}{
			"applicationId": rec.ID,
		})

	case executor.KindPermanentError:
		s.applyOutcome(writeCtx, rec, models.StatusPermanentError, responseText(result), "")
		s.logger.Warn("submission permanently failed", map[string]interface{}{
			"applicationId": rec.ID,
			"message":       result.Message,
		})
		s.notifyFailed(writeCtx, rec, result.Message)

	case executor.KindTransientError, executor.KindUnavailable:
		newCount := rec.AttemptCount + 1
		if newCount < s.config.MaxRetries {
			s.applyOutcome(writeCtx, rec, models.StatusPending, responseText(result), "")
			s.logger.Info("submission failed transiently, will retry", map[string]interface{}{
				"applicationId": rec.ID,
				"attemptCount":  newCount,
			})
		} else {
			s.applyOutcome(writeCtx, rec, models.StatusPermanentError, responseText(result), "")
			s.logger.Warn("submission exhausted retries", map[string]interface{}{
				"applicationId": rec.ID,
				"attemptCount":  newCount,
			})
			s.notifyFailed(writeCtx, rec, result.Message)
		}
	}
}

func (s *Scheduler) applyOutcome(ctx context.Context, rec *models.ApplicationRecord, status models.Status, response, verificationCode string) {
	if err := s.store.ApplyOutcome(ctx, rec.ID, status, 1, response, verificationCode); err != nil {
		// Leave the record as-is; the stale requeue returns it to
		// pending next cycle.
		s.logger.Error("outcome write failed", map[string]interface{}{
			"applicationId": rec.ID,
			"newStatus":     string(status),
			"error":         err,
		})
	}
}

func (s *Scheduler) notifyFailed(ctx context.Context, rec *models.ApplicationRecord, reason string) {
	if s.notifier != nil {
		s.notifier.RecordFailed(ctx, rec, reason)
	}
}

func responseText(result executor.Result) string {
	parts := make([]string, 0, 2)
	if result.Message != "" {
		parts = append(parts, result.Message)
	}
	if result.TrackingRef != "" {
		parts = append(parts, "tracking: "+result.TrackingRef)
	}
	return strings.Join(parts, " | ")
}
