package badge

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// Реализация находится в infrastructure/persistence и обязана опираться
// на уникальное ограничение (user_id, badge_id) в хранилище.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции над записями о выданных бейджах.
type Repository interface {
	// CreateIfAbsent вставляет запись о выдаче бейджа.
	// Возвращает ErrAwardExists, если бейдж уже выдан пользователю -
	// это и делает двойную выдачу невозможной при конкурентной оценке
	// одного и того же триггера.
	CreateIfAbsent(ctx context.Context, award *Award) error

	// GetByUser возвращает все бейджи пользователя.
	GetByUser(ctx context.Context, userID string) ([]*Award, error)

	// OwnedSet возвращает множество ID бейджей пользователя.
	OwnedSet(ctx context.Context, userID string) (map[string]bool, error)

	// SetBonusEntry привязывает запись журнала с бонусом к награде.
	// Идемпотентно: повторная привязка того же бонуса не ошибка.
	SetBonusEntry(ctx context.Context, awardID, entryID string) error

	// ListWithoutBonus возвращает награды, бонус за которые ещё
	// не начислен (для фоновой сверки).
	ListWithoutBonus(ctx context.Context, limit int) ([]*Award, error)

	// CountByUser возвращает количество бейджей пользователя.
	CountByUser(ctx context.Context, userID string) (int, error)
}
