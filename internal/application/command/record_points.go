// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pulsehub/pulse-engagement-hub/internal/domain/ledger"
	"github.com/pulsehub/pulse-engagement-hub/internal/domain/shared"
	"github.com/pulsehub/pulse-engagement-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD POINTS COMMAND
// Appends an immutable ledger entry and updates the user aggregate
// atomically. The ledger is the source of truth: if the aggregate write
// keeps losing the optimistic-lock race, the caller reconciles via replay
// instead of blind-writing the cached state.
// ══════════════════════════════════════════════════════════════════════════════

// RecordPointsCommand contains the data for a point transaction.
type RecordPointsCommand struct {
	// UserID is the internal ID of the user.
	UserID string

	// Amount is the signed point delta. Must be non-zero.
	Amount int

	// Type is the transaction type (earn, redeem, bonus, adjustment).
	Type ledger.TransactionType

	// ReferenceType and ReferenceID identify the triggering domain event.
	ReferenceType string
	ReferenceID   string

	// Description is a human-readable explanation.
	Description string

	// ProcessedBy names the component issuing the transaction.
	ProcessedBy string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c RecordPointsCommand) Validate() error {
	if c.UserID == "" {
		return shared.NewDomainError("command", "RecordPoints", shared.ErrInvalidID, "user_id is required")
	}
	if c.Amount == 0 {
		return shared.ErrZeroPointAmount
	}
	if !c.Type.IsValid() {
		return shared.ErrUnknownTransaction
	}
	return nil
}

// RecordPointsResult contains the outcome of a point transaction.
type RecordPointsResult struct {
	// EntryID is the ID of the appended ledger entry.
	EntryID string

	// NewBalance is the user's balance after the transaction.
	NewBalance int

	// LifetimePoints is the user's lifetime total after the transaction.
	LifetimePoints int

	// NewLevel is the user's level after the transaction.
	NewLevel int

	// LeveledUp indicates the transaction crossed a level threshold.
	LeveledUp bool

	// Events contains domain events generated.
	Events []shared.Event

	// RecordedAt is when the entry was appended.
	RecordedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecordPointsHandler handles the RecordPointsCommand.
type RecordPointsHandler struct {
	ledgerRepo     ledger.Repository
	leaderboard    ledger.LeaderboardCache
	eventPublisher shared.EventPublisher
	retrier        *retry.Retrier
}

// NewRecordPointsHandler creates a new RecordPointsHandler.
func NewRecordPointsHandler(
	ledgerRepo ledger.Repository,
	leaderboard ledger.LeaderboardCache,
	eventPublisher shared.EventPublisher,
) *RecordPointsHandler {
	return &RecordPointsHandler{
		ledgerRepo:     ledgerRepo,
		leaderboard:    leaderboard,
		eventPublisher: eventPublisher,
		retrier:        retry.AggregateRetrier(),
	}
}

// Handle executes the record points command.
// The read-apply-write sequence runs under optimistic concurrency: a lost
// race on the aggregate version re-reads the aggregate and re-applies the
// entry, a bounded number of times.
func (h *RecordPointsHandler) Handle(ctx context.Context, cmd RecordPointsCommand) (*RecordPointsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("record_points: %w", err)
	}

	var result *RecordPointsResult

	err := h.retrier.Do(ctx, func(ctx context.Context) error {
		agg, err := h.ledgerRepo.GetOrCreateAggregate(ctx, cmd.UserID)
		if err != nil {
			return retry.Permanent(fmt.Errorf("record_points: load aggregate: %w", err))
		}

		entry, err := ledger.NewEntry(
			uuid.NewString(),
			cmd.UserID,
			cmd.Amount,
			cmd.Type,
			shared.Reference{Type: cmd.ReferenceType, ID: cmd.ReferenceID},
			cmd.Description,
			cmd.ProcessedBy,
		)
		if err != nil {
			return retry.Permanent(err)
		}

		leveledUp, err := agg.Apply(entry)
		if err != nil {
			return retry.Permanent(err)
		}
		agg.RecordActivity(cmd.ReferenceType)

		if err := h.ledgerRepo.AppendEntry(ctx, entry, agg); err != nil {
			if errors.Is(err, shared.ErrOptimisticLock) {
				return retry.Retryable(err)
			}
			return err
		}

		result = &RecordPointsResult{
			EntryID:        entry.ID,
			NewBalance:     agg.Balance,
			LifetimePoints: agg.LifetimePoints,
			NewLevel:       agg.Level,
			LeveledUp:      leveledUp,
			RecordedAt:     entry.CreatedAt,
		}
		result.Events = h.buildEvents(cmd, entry, agg, leveledUp)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Leaderboard and events are best-effort: the ledger write is already
	// durable and must not be rolled back by downstream failures.
	if h.leaderboard != nil && cmd.Amount > 0 {
		_ = h.leaderboard.UpdateScore(ctx, cmd.UserID, result.LifetimePoints)
	}
	for _, event := range result.Events {
		_ = h.eventPublisher.Publish(event)
	}

	return result, nil
}

func (h *RecordPointsHandler) buildEvents(cmd RecordPointsCommand, entry *ledger.Entry, agg *ledger.Aggregate, leveledUp bool) []shared.Event {
	events := make([]shared.Event, 0, 2)

	if cmd.Amount > 0 {
		e := shared.NewPointsEarnedEvent(cmd.UserID, cmd.Amount, agg.Balance, agg.LifetimePoints, cmd.ReferenceType, entry.ID)
		if cmd.CorrelationID != "" {
			e.BaseEvent = e.BaseEvent.WithCorrelationID(cmd.CorrelationID)
		}
		events = append(events, e)
	} else {
		e := shared.NewPointsRedeemedEvent(cmd.UserID, cmd.Amount, agg.Balance, entry.ID)
		if cmd.CorrelationID != "" {
			e.BaseEvent = e.BaseEvent.WithCorrelationID(cmd.CorrelationID)
		}
		events = append(events, e)
	}

	if leveledUp {
		events = append(events, shared.NewLevelUpEvent(cmd.UserID, agg.Level-1, agg.Level, agg.LifetimePoints))
	}

	return events
}

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE AGGREGATE COMMAND
// Recovery path: when the stored aggregate is suspected corrupt, the
// ledger is replayed from scratch and compared. Divergence halts the
// user's automatic processing and raises a high-severity alert; no silent
// correction is attempted.
// ══════════════════════════════════════════════════════════════════════════════

// ReconcileAggregateCommand requests a replay check for one user.
type ReconcileAggregateCommand struct {
	UserID string
}

// ReconcileAggregateResult reports the replay comparison.
type ReconcileAggregateResult struct {
	UserID           string
	Consistent       bool
	StoredBalance    int
	ReplayedBalance  int
	StoredLifetime   int
	ReplayedLifetime int
	EntriesReplayed  int
}

// ReconcileAggregateHandler replays a user's ledger and verifies the
// stored aggregate against it.
type ReconcileAggregateHandler struct {
	ledgerRepo     ledger.Repository
	eventPublisher shared.EventPublisher
}

// NewReconcileAggregateHandler creates a new ReconcileAggregateHandler.
func NewReconcileAggregateHandler(ledgerRepo ledger.Repository, eventPublisher shared.EventPublisher) *ReconcileAggregateHandler {
	return &ReconcileAggregateHandler{ledgerRepo: ledgerRepo, eventPublisher: eventPublisher}
}

// Handle replays the user's ledger in insertion order and compares the
// result with the stored aggregate. On divergence the user is halted.
func (h *ReconcileAggregateHandler) Handle(ctx context.Context, cmd ReconcileAggregateCommand) (*ReconcileAggregateResult, error) {
	if cmd.UserID == "" {
		return nil, shared.NewDomainError("command", "ReconcileAggregate", shared.ErrInvalidID, "user_id is required")
	}

	agg, err := h.ledgerRepo.GetAggregate(ctx, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("reconcile_aggregate: %w", err)
	}

	entries, err := h.ledgerRepo.ListAllEntries(ctx, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("reconcile_aggregate: list entries: %w", err)
	}

	replayed := ledger.Replay(cmd.UserID, entries)
	result := &ReconcileAggregateResult{
		UserID:           cmd.UserID,
		StoredBalance:    agg.Balance,
		ReplayedBalance:  replayed.Balance,
		StoredLifetime:   agg.LifetimePoints,
		ReplayedLifetime: replayed.LifetimePoints,
		EntriesReplayed:  len(entries),
	}

	if err := agg.VerifyAgainst(replayed); err != nil {
		if haltErr := h.ledgerRepo.HaltProcessing(ctx, cmd.UserID); haltErr != nil {
			return result, fmt.Errorf("reconcile_aggregate: halt user: %w", haltErr)
		}
		_ = h.eventPublisher.Publish(shared.NewInvariantViolatedEvent(
			cmd.UserID,
			agg.Balance, replayed.Balance,
			agg.LifetimePoints, replayed.LifetimePoints,
			"aggregate disagrees with ledger replay",
		))
		return result, err
	}

	result.Consistent = true
	return result, nil
}
