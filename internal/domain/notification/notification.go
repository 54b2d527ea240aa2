// Package notification определяет, когда и что отправлять пользователю.
// Ядро решает о содержимом сообщений; механика доставки - внешний
// коллаборатор за интерфейсом Notifier.
package notification

import (
	"context"
	"time"

	"github.com/pulsehub/pulse-engagement-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// KINDS
// ══════════════════════════════════════════════════════════════════════════════

// Kind - тип пользовательского сообщения.
type Kind string

const (
	KindStreakMilestone Kind = "streak_milestone"
	KindStreakBroken    Kind = "streak_broken"
	KindBadgeEarned     Kind = "badge_earned"
	KindLevelUp         Kind = "level_up"
	KindGoalEscalated   Kind = "goal_escalated"
	KindGoalExtended    Kind = "goal_extended"
)

// IsValid проверяет, что тип сообщения известен.
func (k Kind) IsValid() bool {
	switch k {
	case KindStreakMilestone, KindStreakBroken, KindBadgeEarned,
		KindLevelUp, KindGoalEscalated, KindGoalExtended:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MESSAGE
// ══════════════════════════════════════════════════════════════════════════════

// Message - одно сообщение пользователю. Payload - плоская карта
// значений, семантику которой задаёт ядро (достигнутый порог серии,
// значения до/после подстройки, градация бейджа).
type Message struct {
	UserID  string
	Kind    Kind
	Payload map[string]any
}

// NewMessage создаёт сообщение с валидацией.
func NewMessage(userID string, kind Kind, payload map[string]any) (*Message, error) {
	if userID == "" {
		return nil, shared.NewDomainError("notification", "NewMessage", shared.ErrInvalidID, "user ID is required")
	}
	if !kind.IsValid() {
		return nil, shared.ErrInvalidKind
	}
	if payload == nil {
		payload = map[string]any{}
	}
	return &Message{UserID: userID, Kind: kind, Payload: payload}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFIER PORT
// ══════════════════════════════════════════════════════════════════════════════

// Notifier доставляет сообщения пользователю. Отказ доставки никогда
// не блокирует и не откатывает запись в журнал или выдачу бейджа:
// сообщение ставится в очередь и доставляется фоновым диспетчером.
type Notifier interface {
	Send(ctx context.Context, msg *Message) error
}

// ══════════════════════════════════════════════════════════════════════════════
// OUTBOX
// ══════════════════════════════════════════════════════════════════════════════

// OutboxStatus - статус записи исходящей очереди.
type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "pending"
	OutboxSent      OutboxStatus = "sent"
	OutboxFailed    OutboxStatus = "failed"
	OutboxExhausted OutboxStatus = "exhausted"
)

// OutboxRecord - сообщение в исходящей очереди. Запись создаётся в той же
// транзакции, что и породившее её изменение, и доставляется фоновым
// диспетчером с повторами.
type OutboxRecord struct {
	ID        string
	UserID    string
	Kind      Kind
	Payload   map[string]any
	Status    OutboxStatus
	Attempts  int
	LastError string
	CreatedAt time.Time
	SentAt    *time.Time
}

// NewOutboxRecord ставит сообщение в очередь.
func NewOutboxRecord(id string, msg *Message) *OutboxRecord {
	return &OutboxRecord{
		ID:        id,
		UserID:    msg.UserID,
		Kind:      msg.Kind,
		Payload:   msg.Payload,
		Status:    OutboxPending,
		CreatedAt: time.Now().UTC(),
	}
}

// Message восстанавливает сообщение из записи очереди.
func (r *OutboxRecord) Message() *Message {
	return &Message{UserID: r.UserID, Kind: r.Kind, Payload: r.Payload}
}

// MarkSent отмечает запись как доставленную.
func (r *OutboxRecord) MarkSent(at time.Time) {
	r.Status = OutboxSent
	r.SentAt = &at
}

// MarkFailed фиксирует неудачную попытку. После maxAttempts запись
// помечается exhausted и больше не ретраится автоматически.
func (r *OutboxRecord) MarkFailed(errMsg string, maxAttempts int) {
	r.Attempts++
	r.LastError = errMsg
	if r.Attempts >= maxAttempts {
		r.Status = OutboxExhausted
	} else {
		r.Status = OutboxFailed
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// OUTBOX REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// OutboxRepository определяет операции над исходящей очередью.
type OutboxRepository interface {
	// Enqueue добавляет запись в очередь.
	Enqueue(ctx context.Context, rec *OutboxRecord) error

	// ListPending возвращает записи, ожидающие доставки (pending и
	// failed), в порядке создания.
	ListPending(ctx context.Context, limit int) ([]*OutboxRecord, error)

	// Update сохраняет изменение статуса записи.
	Update(ctx context.Context, rec *OutboxRecord) error

	// PurgeSent удаляет доставленные записи старше указанного времени.
	PurgeSent(ctx context.Context, olderThan time.Time) (int, error)
}
