// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Ledger events
	EventPointsEarned   EventType = "ledger.points_earned"
	EventPointsRedeemed EventType = "ledger.points_redeemed"
	EventLevelUp        EventType = "ledger.level_up"

	// Badge events
	EventBadgeAwarded EventType = "badge.awarded"
	EventBonusPending EventType = "badge.bonus_pending"

	// Streak events
	EventStreakUpdated   EventType = "streak.updated"
	EventStreakBroken    EventType = "streak.broken"
	EventStreakMilestone EventType = "streak.milestone"

	// Goal events
	EventGoalEscalated EventType = "goal.escalated"
	EventGoalExtended  EventType = "goal.extended"

	// Notification events
	EventNotificationSent   EventType = "notification.sent"
	EventNotificationFailed EventType = "notification.failed"

	// System events
	EventInvariantViolated EventType = "system.invariant_violated"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Ledger Events
// ═══════════════════════════════════════════════════════════════════════════

// PointsEarnedEvent is emitted when a positive transaction is recorded.
type PointsEarnedEvent struct {
	BaseEvent
	UserID     string `json:"user_id"`
	Amount     int    `json:"amount"`
	NewBalance int    `json:"new_balance"`
	Lifetime   int    `json:"lifetime_points"`
	Source     string `json:"source"` // e.g., "event_attendance", "badge_bonus"
	EntryID    string `json:"entry_id"`
}

// Payload implements Event interface.
func (e PointsEarnedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":         e.UserID,
		"amount":          e.Amount,
		"new_balance":     e.NewBalance,
		"lifetime_points": e.Lifetime,
		"source":          e.Source,
		"entry_id":        e.EntryID,
	}
}

// NewPointsEarnedEvent creates a new PointsEarnedEvent.
func NewPointsEarnedEvent(userID string, amount, newBalance, lifetime int, source, entryID string) PointsEarnedEvent {
	return PointsEarnedEvent{
		BaseEvent:  NewBaseEvent(EventPointsEarned, userID),
		UserID:     userID,
		Amount:     amount,
		NewBalance: newBalance,
		Lifetime:   lifetime,
		Source:     source,
		EntryID:    entryID,
	}
}

// PointsRedeemedEvent is emitted when a negative transaction is recorded.
type PointsRedeemedEvent struct {
	BaseEvent
	UserID     string `json:"user_id"`
	Amount     int    `json:"amount"` // negative
	NewBalance int    `json:"new_balance"`
	EntryID    string `json:"entry_id"`
}

// Payload implements Event interface.
func (e PointsRedeemedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":     e.UserID,
		"amount":      e.Amount,
		"new_balance": e.NewBalance,
		"entry_id":    e.EntryID,
	}
}

// NewPointsRedeemedEvent creates a new PointsRedeemedEvent.
func NewPointsRedeemedEvent(userID string, amount, newBalance int, entryID string) PointsRedeemedEvent {
	return PointsRedeemedEvent{
		BaseEvent:  NewBaseEvent(EventPointsRedeemed, userID),
		UserID:     userID,
		Amount:     amount,
		NewBalance: newBalance,
		EntryID:    entryID,
	}
}

// LevelUpEvent is emitted when lifetime points cross a level threshold.
type LevelUpEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	OldLevel int    `json:"old_level"`
	NewLevel int    `json:"new_level"`
	Lifetime int    `json:"lifetime_points"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":         e.UserID,
		"old_level":       e.OldLevel,
		"new_level":       e.NewLevel,
		"lifetime_points": e.Lifetime,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(userID string, oldLevel, newLevel, lifetime int) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, userID),
		UserID:    userID,
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
		Lifetime:  lifetime,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Badge Events
// ═══════════════════════════════════════════════════════════════════════════

// BadgeAwardedEvent is emitted when a badge is awarded for the first time.
type BadgeAwardedEvent struct {
	BaseEvent
	UserID      string `json:"user_id"`
	BadgeID     string `json:"badge_id"`
	Tier        string `json:"tier"`
	BonusPoints int    `json:"bonus_points"`
	AwardID     string `json:"award_id"`
}

// Payload implements Event interface.
func (e BadgeAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.UserID,
		"badge_id":     e.BadgeID,
		"tier":         e.Tier,
		"bonus_points": e.BonusPoints,
		"award_id":     e.AwardID,
	}
}

// NewBadgeAwardedEvent creates a new BadgeAwardedEvent.
func NewBadgeAwardedEvent(userID, badgeID, tier string, bonusPoints int, awardID string) BadgeAwardedEvent {
	return BadgeAwardedEvent{
		BaseEvent:   NewBaseEvent(EventBadgeAwarded, userID),
		UserID:      userID,
		BadgeID:     badgeID,
		Tier:        tier,
		BonusPoints: bonusPoints,
		AwardID:     awardID,
	}
}

// BonusPendingEvent is emitted when an award committed but its bonus
// transaction did not. The reconcile job picks these up.
type BonusPendingEvent struct {
	BaseEvent
	UserID  string `json:"user_id"`
	BadgeID string `json:"badge_id"`
	AwardID string `json:"award_id"`
	Reason  string `json:"reason"`
}

// Payload implements Event interface.
func (e BonusPendingEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":  e.UserID,
		"badge_id": e.BadgeID,
		"award_id": e.AwardID,
		"reason":   e.Reason,
	}
}

// NewBonusPendingEvent creates a new BonusPendingEvent.
func NewBonusPendingEvent(userID, badgeID, awardID, reason string) BonusPendingEvent {
	return BonusPendingEvent{
		BaseEvent: NewBaseEvent(EventBonusPending, userID),
		UserID:    userID,
		BadgeID:   badgeID,
		AwardID:   awardID,
		Reason:    reason,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Streak Events
// ═══════════════════════════════════════════════════════════════════════════

// StreakUpdatedEvent is emitted whenever the streak counter changes.
type StreakUpdatedEvent struct {
	BaseEvent
	UserID     string    `json:"user_id"`
	StreakDays int       `json:"streak_days"`
	ActiveDate time.Time `json:"active_date"`
}

// Payload implements Event interface.
func (e StreakUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":     e.UserID,
		"streak_days": e.StreakDays,
		"active_date": e.ActiveDate.Format("2006-01-02"),
	}
}

// NewStreakUpdatedEvent creates a new StreakUpdatedEvent.
func NewStreakUpdatedEvent(userID string, streakDays int, activeDate time.Time) StreakUpdatedEvent {
	return StreakUpdatedEvent{
		BaseEvent:  NewBaseEvent(EventStreakUpdated, userID),
		UserID:     userID,
		StreakDays: streakDays,
		ActiveDate: activeDate,
	}
}

// StreakBrokenEvent is emitted when a significant streak (more than 3 days)
// is broken by a gap in activity.
type StreakBrokenEvent struct {
	BaseEvent
	UserID         string `json:"user_id"`
	PreviousStreak int    `json:"previous_streak"`
}

// Payload implements Event interface.
func (e StreakBrokenEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":         e.UserID,
		"previous_streak": e.PreviousStreak,
	}
}

// NewStreakBrokenEvent creates a new StreakBrokenEvent.
func NewStreakBrokenEvent(userID string, previousStreak int) StreakBrokenEvent {
	return StreakBrokenEvent{
		BaseEvent:      NewBaseEvent(EventStreakBroken, userID),
		UserID:         userID,
		PreviousStreak: previousStreak,
	}
}

// StreakMilestoneEvent is emitted when the streak crosses a milestone (3, 7, 30).
type StreakMilestoneEvent struct {
	BaseEvent
	UserID    string `json:"user_id"`
	Milestone int    `json:"milestone"`
}

// Payload implements Event interface.
func (e StreakMilestoneEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"milestone": e.Milestone,
	}
}

// NewStreakMilestoneEvent creates a new StreakMilestoneEvent.
func NewStreakMilestoneEvent(userID string, milestone int) StreakMilestoneEvent {
	return StreakMilestoneEvent{
		BaseEvent: NewBaseEvent(EventStreakMilestone, userID),
		UserID:    userID,
		Milestone: milestone,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Goal Events
// ═══════════════════════════════════════════════════════════════════════════

// GoalEscalatedEvent is emitted when the difficulty adjuster raises a goal's
// target because the user is ahead of schedule.
type GoalEscalatedEvent struct {
	BaseEvent
	UserID        string  `json:"user_id"`
	GoalID        string  `json:"goal_id"`
	OldTarget     float64 `json:"old_target"`
	NewTarget     float64 `json:"new_target"`
	OldDifficulty string  `json:"old_difficulty"`
	NewDifficulty string  `json:"new_difficulty"`
	NewReward     int     `json:"new_reward"`
}

// Payload implements Event interface.
func (e GoalEscalatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"goal_id":        e.GoalID,
		"old_target":     e.OldTarget,
		"new_target":     e.NewTarget,
		"old_difficulty": e.OldDifficulty,
		"new_difficulty": e.NewDifficulty,
		"new_reward":     e.NewReward,
	}
}

// NewGoalEscalatedEvent creates a new GoalEscalatedEvent.
func NewGoalEscalatedEvent(userID, goalID string, oldTarget, newTarget float64, oldDifficulty, newDifficulty string, newReward int) GoalEscalatedEvent {
	return GoalEscalatedEvent{
		BaseEvent:     NewBaseEvent(EventGoalEscalated, goalID),
		UserID:        userID,
		GoalID:        goalID,
		OldTarget:     oldTarget,
		NewTarget:     newTarget,
		OldDifficulty: oldDifficulty,
		NewDifficulty: newDifficulty,
		NewReward:     newReward,
	}
}

// GoalExtendedEvent is emitted when the difficulty adjuster moves a goal's
// deadline because the user is behind schedule.
type GoalExtendedEvent struct {
	BaseEvent
	UserID     string    `json:"user_id"`
	GoalID     string    `json:"goal_id"`
	OldEndDate time.Time `json:"old_end_date"`
	NewEndDate time.Time `json:"new_end_date"`
}

// Payload implements Event interface.
func (e GoalExtendedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.UserID,
		"goal_id":      e.GoalID,
		"old_end_date": e.OldEndDate.Format("2006-01-02"),
		"new_end_date": e.NewEndDate.Format("2006-01-02"),
	}
}

// NewGoalExtendedEvent creates a new GoalExtendedEvent.
func NewGoalExtendedEvent(userID, goalID string, oldEnd, newEnd time.Time) GoalExtendedEvent {
	return GoalExtendedEvent{
		BaseEvent:  NewBaseEvent(EventGoalExtended, goalID),
		UserID:     userID,
		GoalID:     goalID,
		OldEndDate: oldEnd,
		NewEndDate: newEnd,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// System Events
// ═══════════════════════════════════════════════════════════════════════════

// InvariantViolatedEvent is emitted when a replay-derived aggregate disagrees
// with the stored one. This is a high-severity signal: processing for the
// user is halted until the discrepancy is reviewed.
type InvariantViolatedEvent struct {
	BaseEvent
	UserID           string `json:"user_id"`
	StoredBalance    int    `json:"stored_balance"`
	ReplayedBalance  int    `json:"replayed_balance"`
	StoredLifetime   int    `json:"stored_lifetime"`
	ReplayedLifetime int    `json:"replayed_lifetime"`
	Detail           string `json:"detail"`
}

// Payload implements Event interface.
func (e InvariantViolatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":           e.UserID,
		"stored_balance":    e.StoredBalance,
		"replayed_balance":  e.ReplayedBalance,
		"stored_lifetime":   e.StoredLifetime,
		"replayed_lifetime": e.ReplayedLifetime,
		"detail":            e.Detail,
	}
}

// NewInvariantViolatedEvent creates a new InvariantViolatedEvent.
func NewInvariantViolatedEvent(userID string, storedBalance, replayedBalance, storedLifetime, replayedLifetime int, detail string) InvariantViolatedEvent {
	return InvariantViolatedEvent{
		BaseEvent:        NewBaseEvent(EventInvariantViolated, userID),
		UserID:           userID,
		StoredBalance:    storedBalance,
		ReplayedBalance:  replayedBalance,
		StoredLifetime:   storedLifetime,
		ReplayedLifetime: replayedLifetime,
		Detail:           detail,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Bus Contracts
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all event types.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
