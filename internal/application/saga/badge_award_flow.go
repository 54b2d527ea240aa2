// Package saga contains complex business processes that orchestrate
// multiple domain operations in a coordinated manner.
package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pulsehub/pulse-engagement-hub/internal/application/command"
	"github.com/pulsehub/pulse-engagement-hub/internal/domain/badge"
	"github.com/pulsehub/pulse-engagement-hub/internal/domain/ledger"
	"github.com/pulsehub/pulse-engagement-hub/internal/domain/notification"
	"github.com/pulsehub/pulse-engagement-hub/internal/domain/shared"
	"github.com/pulsehub/pulse-engagement-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// BADGE AWARD FLOW SAGA
// Flow: Snapshot Activity → Evaluate Criteria → Create Award (idempotent) →
//
//	Record Bonus Transaction → Queue Notification → Publish Events
//
// Awards are permanent: once the award row is committed it is never rolled
// back, even when the bonus transaction fails. An award without its bonus
// is a recoverable inconsistency reconciled by a background job; a
// duplicate award is not recoverable, which is why creation leans on the
// storage-level uniqueness of (user_id, badge_id).
// ══════════════════════════════════════════════════════════════════════════════

// EvaluateInput contains the data needed to evaluate badge criteria.
type EvaluateInput struct {
	// UserID - the user to evaluate badges for.
	UserID string

	// TriggerEvent - what triggered this evaluation (e.g., "points_earned").
	TriggerEvent string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate checks if the input is valid.
func (i EvaluateInput) Validate() error {
	if i.UserID == "" {
		return errors.New("badge_award_flow: user ID is required")
	}
	return nil
}

// AwardedBadge describes one badge granted by a flow run.
type AwardedBadge struct {
	Award      *badge.Award
	Definition badge.Definition

	// BonusRecorded is false when the bonus transaction failed and was
	// left for reconciliation.
	BonusRecorded bool
}

// FlowResult contains the outcome of a badge evaluation run.
type FlowResult struct {
	// UserID - the user who was evaluated.
	UserID string

	// NewAwards - badges granted by this run.
	NewAwards []AwardedBadge

	// TotalBonus - points awarded across all bonuses that succeeded.
	TotalBonus int

	// Tier - the engagement tier derived after the run.
	Tier badge.Tier

	// ProcessedAt - when the flow completed.
	ProcessedAt time.Time
}

// HasNewAwards returns true if any badge was granted.
func (r *FlowResult) HasNewAwards() bool {
	return len(r.NewAwards) > 0
}

// ══════════════════════════════════════════════════════════════════════════════
// SAGA IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// BadgeAwardFlow orchestrates badge evaluation, idempotent award creation,
// bonus transactions and notifications.
type BadgeAwardFlow struct {
	ledgerRepo   ledger.Repository
	badgeRepo    badge.Repository
	recordPoints *command.RecordPointsHandler
	outbox       notification.OutboxRepository
	eventBus     shared.EventPublisher
	log          *logger.Logger
}

// NewBadgeAwardFlow creates a new BadgeAwardFlow.
func NewBadgeAwardFlow(
	ledgerRepo ledger.Repository,
	badgeRepo badge.Repository,
	recordPoints *command.RecordPointsHandler,
	outbox notification.OutboxRepository,
	eventBus shared.EventPublisher,
	log *logger.Logger,
) *BadgeAwardFlow {
	return &BadgeAwardFlow{
		ledgerRepo:   ledgerRepo,
		badgeRepo:    badgeRepo,
		recordPoints: recordPoints,
		outbox:       outbox,
		eventBus:     eventBus,
		log:          log,
	}
}

// Execute evaluates all badge criteria for the user and grants every
// newly-satisfied badge exactly once. Safe to call redundantly: a
// concurrent or repeated evaluation of the same trigger loses the
// create-if-absent race and skips the badge.
func (f *BadgeAwardFlow) Execute(ctx context.Context, input EvaluateInput) (*FlowResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	agg, err := f.ledgerRepo.GetOrCreateAggregate(ctx, input.UserID)
	if err != nil {
		return nil, fmt.Errorf("badge_award_flow: load aggregate: %w", err)
	}
	if agg.ProcessingHalted {
		return nil, shared.ErrUserProcessingHalted
	}

	owned, err := f.badgeRepo.OwnedSet(ctx, input.UserID)
	if err != nil {
		return nil, fmt.Errorf("badge_award_flow: load owned badges: %w", err)
	}

	snapshot := badge.Snapshot{
		EventsAttended:   agg.EventsAttended,
		CommentsAuthored: agg.CommentsAuthored,
		RecognitionsSent: agg.RecognitionsSent,
		LifetimePoints:   agg.LifetimePoints,
		StreakDays:       agg.StreakDays,
		BadgeCount:       len(owned),
	}

	result := &FlowResult{
		UserID:      input.UserID,
		ProcessedAt: time.Now().UTC(),
	}

	for _, def := range badge.Eligible(snapshot, owned) {
		awarded, err := f.grantBadge(ctx, input, def)
		if err != nil {
			if errors.Is(err, shared.ErrAwardExists) {
				// Lost the create-if-absent race: another evaluation of
				// the same trigger already granted it.
				continue
			}
			return result, err
		}

		result.NewAwards = append(result.NewAwards, *awarded)
		if awarded.BonusRecorded {
			result.TotalBonus += def.Tier.Bonus()
		}
		snapshot.BadgeCount++
	}

	result.Tier = badge.EngagementTier(snapshot)
	f.refreshTier(ctx, input.UserID, result.Tier)

	return result, nil
}

// grantBadge creates the award row and records the bonus transaction.
// The award is committed first; a bonus failure is logged, published as a
// pending-bonus event and left for the reconciliation job.
func (f *BadgeAwardFlow) grantBadge(ctx context.Context, input EvaluateInput, def badge.Definition) (*AwardedBadge, error) {
	award := badge.NewAward(uuid.NewString(), input.UserID, def, fmt.Sprintf("triggered by %s", input.TriggerEvent))

	if err := f.badgeRepo.CreateIfAbsent(ctx, award); err != nil {
		return nil, err
	}

	awarded := &AwardedBadge{Award: award, Definition: def}

	bonusRes, err := f.recordPoints.Handle(ctx, command.RecordPointsCommand{
		UserID:        input.UserID,
		Amount:        def.Tier.Bonus(),
		Type:          ledger.TransactionBonus,
		ReferenceType: "badge_award",
		ReferenceID:   award.ID,
		Description:   fmt.Sprintf("Bonus for badge %q", def.Name),
		ProcessedBy:   "badge_engine",
		CorrelationID: input.CorrelationID,
	})
	if err != nil {
		// The award stays. Reconciliation picks it up by its missing
		// bonus_entry_id.
		f.log.Warn("badge bonus deferred to reconciliation",
			logger.UserID(input.UserID),
			logger.BadgeID(def.ID),
			logger.Err(err),
		)
		_ = f.eventBus.Publish(shared.NewBonusPendingEvent(input.UserID, def.ID, award.ID, err.Error()))
	} else {
		if err := f.badgeRepo.SetBonusEntry(ctx, award.ID, bonusRes.EntryID); err != nil {
			f.log.Warn("failed to link bonus entry to award",
				logger.BadgeID(def.ID),
				logger.Err(err),
			)
		} else {
			award.BonusEntryID = bonusRes.EntryID
			awarded.BonusRecorded = true
		}
	}

	f.queueBadgeNotification(ctx, input.UserID, def)
	_ = f.eventBus.Publish(shared.NewBadgeAwardedEvent(input.UserID, def.ID, string(def.Tier), def.Tier.Bonus(), award.ID))

	return awarded, nil
}

func (f *BadgeAwardFlow) queueBadgeNotification(ctx context.Context, userID string, def badge.Definition) {
	if f.outbox == nil {
		return
	}
	msg, err := notification.NewMessage(userID, notification.KindBadgeEarned, map[string]any{
		"badge_id":   def.ID,
		"badge_name": def.Name,
		"tier":       string(def.Tier),
		"bonus":      def.Tier.Bonus(),
	})
	if err != nil {
		return
	}
	_ = f.outbox.Enqueue(ctx, notification.NewOutboxRecord(uuid.NewString(), msg))
}

// refreshTier stores the derived tier on the aggregate as a display cache.
// The aggregate is re-read first: a granted bonus has already bumped the
// version, so a copy from before the grants would always lose the version
// check. Best-effort: the tier is always recomputable from its inputs.
func (f *BadgeAwardFlow) refreshTier(ctx context.Context, userID string, tier badge.Tier) {
	agg, err := f.ledgerRepo.GetAggregate(ctx, userID)
	if err != nil {
		f.log.Debug("tier cache refresh skipped",
			logger.UserID(userID),
			logger.Err(err),
		)
		return
	}
	if agg.Tier == string(tier) {
		return
	}
	agg.Tier = string(tier)
	if err := f.ledgerRepo.UpdateAggregate(ctx, agg); err != nil {
		f.log.Debug("tier cache refresh skipped",
			logger.UserID(userID),
			logger.Err(err),
		)
	}
}
