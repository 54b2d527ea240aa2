package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/pulsehub/pulse-engagement-hub/internal/application/command"
	"github.com/pulsehub/pulse-engagement-hub/internal/domain/ledger"
)

// ══════════════════════════════════════════════════════════════════════════════
// VERIFY AGGREGATES JOB
// ══════════════════════════════════════════════════════════════════════════════

// VerifyAggregatesJob replays every user's ledger and compares the result
// with the stored aggregate. The aggregate is a projection; the ledger is
// the source of truth. A divergent user is halted by the reconcile handler
// and surfaced as a high-severity event, never silently corrected.
type VerifyAggregatesJob struct {
	ledgerRepo ledger.Repository
	reconciler *command.ReconcileAggregateHandler
	logger     *slog.Logger

	config VerifyAggregatesConfig

	lastStats atomic.Value // *VerifyStats
}

// VerifyAggregatesConfig contains configuration for the verification pass.
type VerifyAggregatesConfig struct {
	// BatchSize is the page size for walking aggregates.
	BatchSize int

	// Timeout bounds one full pass.
	Timeout time.Duration
}

// DefaultVerifyAggregatesConfig returns sensible defaults.
func DefaultVerifyAggregatesConfig() VerifyAggregatesConfig {
	return VerifyAggregatesConfig{
		BatchSize: 100,
		Timeout:   10 * time.Minute,
	}
}

// VerifyStats contains statistics from one verification pass.
type VerifyStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Checked     int
	Consistent  int
	Divergent   int
	Errors      []error
}

// NewVerifyAggregatesJob creates a new verification job.
func NewVerifyAggregatesJob(
	ledgerRepo ledger.Repository,
	reconciler *command.ReconcileAggregateHandler,
	logger *slog.Logger,
	config VerifyAggregatesConfig,
) *VerifyAggregatesJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultVerifyAggregatesConfig().BatchSize
	}

	return &VerifyAggregatesJob{
		ledgerRepo: ledgerRepo,
		reconciler: reconciler,
		logger:     logger,
		config:     config,
	}
}

// Name returns the job name.
func (j *VerifyAggregatesJob) Name() string {
	return "verify_aggregates"
}

// Description returns a human-readable description.
func (j *VerifyAggregatesJob) Description() string {
	return "Replays ledgers and halts users whose aggregates diverge"
}

// Run verifies all stored aggregates against their ledgers.
func (j *VerifyAggregatesJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &VerifyStats{StartedAt: startedAt}

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	j.logger.Info("starting verify_aggregates job")

	opts := ledger.ListOptions{Limit: j.config.BatchSize}
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("verify_aggregates: %w", err)
		}

		aggs, err := j.ledgerRepo.ListAggregates(ctx, opts)
		if err != nil {
			return fmt.Errorf("verify_aggregates: list aggregates: %w", err)
		}
		if len(aggs) == 0 {
			break
		}

		for _, agg := range aggs {
			stats.Checked++

			// On divergence the handler returns both the comparison and the
			// verification error; a nil result means the check itself failed.
			res, err := j.reconciler.Handle(ctx, command.ReconcileAggregateCommand{UserID: agg.UserID})
			if res == nil {
				stats.Errors = append(stats.Errors, err)
				j.logger.Error("failed to verify aggregate",
					"user_id", agg.UserID,
					"error", err,
				)
				continue
			}

			if res.Consistent {
				stats.Consistent++
				continue
			}

			stats.Divergent++
			j.logger.Error("aggregate diverged from ledger replay",
				"user_id", agg.UserID,
				"stored_balance", res.StoredBalance,
				"replayed_balance", res.ReplayedBalance,
				"stored_lifetime", res.StoredLifetime,
				"replayed_lifetime", res.ReplayedLifetime,
				"entries_replayed", res.EntriesReplayed,
			)
		}

		opts.Offset += len(aggs)
		if len(aggs) < j.config.BatchSize {
			break
		}
	}

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastStats.Store(stats)

	j.logger.Info("verify_aggregates job completed",
		"duration", stats.Duration.String(),
		"checked", stats.Checked,
		"divergent", stats.Divergent,
		"errors", len(stats.Errors),
	)
	return nil
}

// LastStats returns statistics from the last completed pass.
func (j *VerifyAggregatesJob) LastStats() *VerifyStats {
	stats, _ := j.lastStats.Load().(*VerifyStats)
	return stats
}
