package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pulsehub/pulse-engagement-hub/internal/application/command"
	"github.com/pulsehub/pulse-engagement-hub/internal/domain/badge"
	"github.com/pulsehub/pulse-engagement-hub/internal/domain/ledger"
	"github.com/pulsehub/pulse-engagement-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE BONUSES JOB
// ══════════════════════════════════════════════════════════════════════════════

// ReconcileBonusesJob repairs badge awards whose bonus points were never
// credited. The award flow grants the badge first and records the bonus
// second; when the second step fails, the award is left without a
// bonus_entry_id and this job picks it up. Recording goes through the
// same command path as the original attempt, and the ledger's uniqueness
// guarantee on (user, badge_award reference) keeps the repair idempotent:
// a bonus that actually landed is relinked, never credited twice.
type ReconcileBonusesJob struct {
	badgeRepo    badge.Repository
	ledgerRepo   ledger.Repository
	recordPoints *command.RecordPointsHandler
	logger       *slog.Logger

	config ReconcileBonusesConfig
}

// ReconcileBonusesConfig contains configuration for the reconciliation.
type ReconcileBonusesConfig struct {
	// BatchSize is the maximum number of awards repaired per run.
	BatchSize int

	// Timeout bounds one run.
	Timeout time.Duration
}

// DefaultReconcileBonusesConfig returns sensible defaults.
func DefaultReconcileBonusesConfig() ReconcileBonusesConfig {
	return ReconcileBonusesConfig{
		BatchSize: 100,
		Timeout:   2 * time.Minute,
	}
}

// NewReconcileBonusesJob creates a new bonus reconciliation job.
func NewReconcileBonusesJob(
	badgeRepo badge.Repository,
	ledgerRepo ledger.Repository,
	recordPoints *command.RecordPointsHandler,
	logger *slog.Logger,
	config ReconcileBonusesConfig,
) *ReconcileBonusesJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultReconcileBonusesConfig().BatchSize
	}

	return &ReconcileBonusesJob{
		badgeRepo:    badgeRepo,
		ledgerRepo:   ledgerRepo,
		recordPoints: recordPoints,
		logger:       logger,
		config:       config,
	}
}

// Name returns the job name.
func (j *ReconcileBonusesJob) Name() string {
	return "reconcile_bonuses"
}

// Description returns a human-readable description.
func (j *ReconcileBonusesJob) Description() string {
	return "Credits or relinks badge bonuses that failed during the award flow"
}

// Run repairs one batch of awards with missing bonus entries.
func (j *ReconcileBonusesJob) Run(ctx context.Context) error {
	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	awards, err := j.badgeRepo.ListWithoutBonus(ctx, j.config.BatchSize)
	if err != nil {
		return fmt.Errorf("reconcile_bonuses: list awards: %w", err)
	}
	if len(awards) == 0 {
		return nil
	}

	j.logger.Info("reconciling badge bonuses", "count", len(awards))

	var repaired, failed int
	for _, award := range awards {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("reconcile_bonuses: %w", err)
		}

		if err := j.repair(ctx, award); err != nil {
			failed++
			j.logger.Error("failed to reconcile badge bonus",
				"award_id", award.ID,
				"user_id", award.UserID,
				"badge_id", award.BadgeID,
				"error", err,
			)
			continue
		}
		repaired++
	}

	j.logger.Info("reconcile_bonuses job completed",
		"repaired", repaired,
		"failed", failed,
	)
	return nil
}

// repair finds or records the bonus entry for one award and links it.
func (j *ReconcileBonusesJob) repair(ctx context.Context, award *badge.Award) error {
	// The bonus may have been recorded while the link write failed.
	entry, err := j.ledgerRepo.FindEntryByReference(ctx, award.UserID, "badge_award", award.ID)
	switch {
	case err == nil:
		return j.link(ctx, award, entry.ID)

	case errors.Is(err, shared.ErrEntryNotFound):
		// Fall through to recording.

	default:
		return fmt.Errorf("find bonus entry: %w", err)
	}

	def, ok := badge.Lookup(award.BadgeID)
	if !ok {
		return fmt.Errorf("unknown badge %q", award.BadgeID)
	}

	res, err := j.recordPoints.Handle(ctx, command.RecordPointsCommand{
		UserID:        award.UserID,
		Amount:        def.Tier.Bonus(),
		Type:          ledger.TransactionBonus,
		ReferenceType: "badge_award",
		ReferenceID:   award.ID,
		Description:   fmt.Sprintf("Bonus for badge %q (reconciled)", def.Name),
		ProcessedBy:   "bonus_reconciler",
	})
	if err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			// Lost a race with the award flow; the entry exists now.
			entry, findErr := j.ledgerRepo.FindEntryByReference(ctx, award.UserID, "badge_award", award.ID)
			if findErr != nil {
				return fmt.Errorf("refind bonus entry: %w", findErr)
			}
			return j.link(ctx, award, entry.ID)
		}
		return fmt.Errorf("record bonus: %w", err)
	}

	return j.link(ctx, award, res.EntryID)
}

func (j *ReconcileBonusesJob) link(ctx context.Context, award *badge.Award, entryID string) error {
	if err := j.badgeRepo.SetBonusEntry(ctx, award.ID, entryID); err != nil {
		return fmt.Errorf("link bonus entry: %w", err)
	}
	j.logger.Info("badge bonus reconciled",
		"award_id", award.ID,
		"user_id", award.UserID,
		"entry_id", entryID,
	)
	return nil
}
