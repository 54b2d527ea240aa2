package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pulsehub/pulse-engagement-hub/internal/domain/ledger"
	"github.com/pulsehub/pulse-engagement-hub/internal/domain/notification"
	"github.com/pulsehub/pulse-engagement-hub/internal/domain/shared"
	"github.com/pulsehub/pulse-engagement-hub/internal/domain/streak"
	"github.com/pulsehub/pulse-engagement-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE STREAK COMMAND
// Applies a day of qualifying activity to the user's consecutive-day
// streak. The transition itself is a pure function; this handler persists
// the new state and queues milestone / broken-streak notifications.
// ══════════════════════════════════════════════════════════════════════════════

// UpdateStreakCommand contains the activity to apply.
type UpdateStreakCommand struct {
	// UserID is the internal ID of the user.
	UserID string

	// ActivityDate is when the activity occurred (defaults to now if zero).
	ActivityDate time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c UpdateStreakCommand) Validate() error {
	if c.UserID == "" {
		return shared.NewDomainError("command", "UpdateStreak", shared.ErrInvalidID, "user_id is required")
	}
	return nil
}

// UpdateStreakResult contains the streak state after the activity.
type UpdateStreakResult struct {
	// StreakDays is the streak length after the activity.
	StreakDays int

	// BestStreak is the all-time best streak.
	BestStreak int

	// Broken indicates a significant streak was lost.
	Broken bool

	// Milestone is the threshold reached (3, 7 or 30), or 0.
	Milestone int

	// Changed is false for repeated same-day activity.
	Changed bool

	// Events contains domain events generated.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// UpdateStreakHandler handles the UpdateStreakCommand.
type UpdateStreakHandler struct {
	ledgerRepo     ledger.Repository
	outbox         notification.OutboxRepository
	eventPublisher shared.EventPublisher
	retrier        *retry.Retrier
}

// NewUpdateStreakHandler creates a new UpdateStreakHandler.
func NewUpdateStreakHandler(
	ledgerRepo ledger.Repository,
	outbox notification.OutboxRepository,
	eventPublisher shared.EventPublisher,
) *UpdateStreakHandler {
	return &UpdateStreakHandler{
		ledgerRepo:     ledgerRepo,
		outbox:         outbox,
		eventPublisher: eventPublisher,
		retrier:        retry.AggregateRetrier(),
	}
}

// Handle executes the update streak command.
func (h *UpdateStreakHandler) Handle(ctx context.Context, cmd UpdateStreakCommand) (*UpdateStreakResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("update_streak: %w", err)
	}

	activityDate := cmd.ActivityDate
	if activityDate.IsZero() {
		activityDate = time.Now().UTC()
	}

	var result *UpdateStreakResult

	err := h.retrier.Do(ctx, func(ctx context.Context) error {
		agg, err := h.ledgerRepo.GetOrCreateAggregate(ctx, cmd.UserID)
		if err != nil {
			return retry.Permanent(fmt.Errorf("update_streak: load aggregate: %w", err))
		}
		if agg.ProcessingHalted {
			return retry.Permanent(shared.ErrUserProcessingHalted)
		}

		prior := streak.State{
			Days:             agg.StreakDays,
			Best:             agg.BestStreak,
			LastActivityDate: agg.LastActivityDate,
		}
		next, res := streak.Advance(prior, activityDate)

		result = &UpdateStreakResult{
			StreakDays: res.Days,
			BestStreak: next.Best,
			Broken:     res.Broken,
			Milestone:  res.Milestone,
			Changed:    res.Changed,
		}
		if !res.Changed {
			return nil
		}

		agg.StreakDays = next.Days
		agg.BestStreak = next.Best
		agg.LastActivityDate = next.LastActivityDate

		if err := h.ledgerRepo.UpdateAggregate(ctx, agg); err != nil {
			if errors.Is(err, shared.ErrOptimisticLock) {
				return retry.Retryable(err)
			}
			return err
		}

		result.Events = buildStreakEvents(cmd.UserID, prior, res, activityDate)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Notifications are queued, never blocking: delivery failures must not
	// roll back the streak update.
	h.queueNotifications(ctx, cmd.UserID, result)

	for _, event := range result.Events {
		_ = h.eventPublisher.Publish(event)
	}

	return result, nil
}

func buildStreakEvents(userID string, prior streak.State, res streak.Result, activityDate time.Time) []shared.Event {
	var events []shared.Event

	events = append(events, shared.NewStreakUpdatedEvent(userID, res.Days, activityDate))
	if res.Broken {
		events = append(events, shared.NewStreakBrokenEvent(userID, prior.Days))
	}
	if res.Milestone != 0 {
		events = append(events, shared.NewStreakMilestoneEvent(userID, res.Milestone))
	}
	return events
}

func (h *UpdateStreakHandler) queueNotifications(ctx context.Context, userID string, res *UpdateStreakResult) {
	if h.outbox == nil {
		return
	}

	if res.Milestone != 0 {
		msg, err := notification.NewMessage(userID, notification.KindStreakMilestone, map[string]any{
			"milestone":   res.Milestone,
			"streak_days": res.StreakDays,
		})
		if err == nil {
			_ = h.outbox.Enqueue(ctx, notification.NewOutboxRecord(uuid.NewString(), msg))
		}
	}

	if res.Broken {
		msg, err := notification.NewMessage(userID, notification.KindStreakBroken, map[string]any{
			"best_streak": res.BestStreak,
		})
		if err == nil {
			_ = h.outbox.Enqueue(ctx, notification.NewOutboxRecord(uuid.NewString(), msg))
		}
	}
}
