package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pulsehub/pulse-engagement-hub/internal/domain/notification"
	"github.com/pulsehub/pulse-engagement-hub/pkg/circuitbreaker"
	"github.com/pulsehub/pulse-engagement-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCH OUTBOX JOB
// ══════════════════════════════════════════════════════════════════════════════

// DispatchOutboxJob delivers queued user notifications to the external
// notifier. Records are picked up in creation order; each delivery runs
// through a retrier and a circuit breaker so a dead notifier cannot stall
// the whole queue. A record that keeps failing is marked exhausted after
// MaxAttempts and left behind for manual review.
type DispatchOutboxJob struct {
	outbox   notification.OutboxRepository
	notifier notification.Notifier
	breaker  *circuitbreaker.CircuitBreaker
	retrier  *retry.Retrier
	logger   *slog.Logger

	config DispatchOutboxConfig
}

// DispatchOutboxConfig contains configuration for the dispatcher.
type DispatchOutboxConfig struct {
	// BatchSize is the maximum number of records delivered per run.
	BatchSize int

	// MaxAttempts is the per-record attempt ceiling before a record is
	// marked exhausted.
	MaxAttempts int

	// Timeout bounds one dispatch run.
	Timeout time.Duration
}

// DefaultDispatchOutboxConfig returns sensible defaults.
func DefaultDispatchOutboxConfig() DispatchOutboxConfig {
	return DispatchOutboxConfig{
		BatchSize:   100,
		MaxAttempts: 5,
		Timeout:     2 * time.Minute,
	}
}

// NewDispatchOutboxJob creates a new outbox dispatcher job.
func NewDispatchOutboxJob(
	outbox notification.OutboxRepository,
	notifier notification.Notifier,
	logger *slog.Logger,
	config DispatchOutboxConfig,
) *DispatchOutboxJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultDispatchOutboxConfig().BatchSize
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultDispatchOutboxConfig().MaxAttempts
	}

	j := &DispatchOutboxJob{
		outbox:   outbox,
		notifier: notifier,
		retrier:  retry.NotifierRetrier(),
		logger:   logger,
		config:   config,
	}
	j.breaker = circuitbreaker.NotifierBreaker(func(name string, from, to circuitbreaker.State) {
		logger.Warn("notifier circuit breaker state changed",
			"breaker", name,
			"from", from.String(),
			"to", to.String(),
		)
	})
	return j
}

// Name returns the job name.
func (j *DispatchOutboxJob) Name() string {
	return "dispatch_outbox"
}

// Description returns a human-readable description.
func (j *DispatchOutboxJob) Description() string {
	return "Delivers pending outbox notifications to the external notifier"
}

// Run delivers one batch of pending outbox records.
func (j *DispatchOutboxJob) Run(ctx context.Context) error {
	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	records, err := j.outbox.ListPending(ctx, j.config.BatchSize)
	if err != nil {
		return fmt.Errorf("dispatch_outbox: list pending: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	j.logger.Debug("dispatching outbox records", "count", len(records))

	var sent, failed int
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("dispatch_outbox: %w", err)
		}

		if err := j.deliver(ctx, rec); err != nil {
			failed++
			rec.MarkFailed(err.Error(), j.config.MaxAttempts)
			if rec.Status == notification.OutboxExhausted {
				j.logger.Error("outbox record exhausted",
					"record_id", rec.ID,
					"user_id", rec.UserID,
					"kind", string(rec.Kind),
					"attempts", rec.Attempts,
					"error", err,
				)
			}
		} else {
			sent++
			rec.MarkSent(time.Now().UTC())
		}

		if err := j.outbox.Update(ctx, rec); err != nil {
			j.logger.Error("failed to update outbox record",
				"record_id", rec.ID,
				"error", err,
			)
		}
	}

	j.logger.Info("dispatch_outbox job completed",
		"sent", sent,
		"failed", failed,
	)
	return nil
}

// deliver sends one record through the breaker and the retrier. The
// breaker sits outside the retry loop: once it opens, remaining records
// in the batch fail fast instead of hammering a dead endpoint.
func (j *DispatchOutboxJob) deliver(ctx context.Context, rec *notification.OutboxRecord) error {
	msg := rec.Message()
	return j.breaker.Execute(ctx, func(ctx context.Context) error {
		return j.retrier.Do(ctx, func(ctx context.Context) error {
			return j.notifier.Send(ctx, msg)
		})
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// PURGE OUTBOX JOB
// ══════════════════════════════════════════════════════════════════════════════

// PurgeOutboxJob removes delivered outbox records after a retention
// period. Exhausted records are intentionally never purged automatically.
type PurgeOutboxJob struct {
	outbox    notification.OutboxRepository
	retention time.Duration
	logger    *slog.Logger
}

// NewPurgeOutboxJob creates a new purge job. A non-positive retention
// defaults to 7 days.
func NewPurgeOutboxJob(outbox notification.OutboxRepository, retention time.Duration, logger *slog.Logger) *PurgeOutboxJob {
	if logger == nil {
		logger = slog.Default()
	}
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	return &PurgeOutboxJob{outbox: outbox, retention: retention, logger: logger}
}

// Name returns the job name.
func (j *PurgeOutboxJob) Name() string {
	return "purge_outbox"
}

// Description returns a human-readable description.
func (j *PurgeOutboxJob) Description() string {
	return "Removes delivered outbox records past the retention period"
}

// Run deletes sent records older than the retention threshold.
func (j *PurgeOutboxJob) Run(ctx context.Context) error {
	threshold := time.Now().UTC().Add(-j.retention)
	deleted, err := j.outbox.PurgeSent(ctx, threshold)
	if err != nil {
		return fmt.Errorf("purge_outbox: %w", err)
	}
	if deleted > 0 {
		j.logger.Info("purged sent outbox records", "count", deleted)
	}
	return nil
}
