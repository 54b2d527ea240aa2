package goal

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// Реализация находится в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции над целями и историей их подстроек.
type Repository interface {
	// Create создаёт новую цель.
	Create(ctx context.Context, g *Goal) error

	// GetByID возвращает цель по ID.
	// Возвращает ErrGoalNotFound, если цель не найдена.
	GetByID(ctx context.Context, id string) (*Goal, error)

	// GetByUser возвращает цели пользователя.
	GetByUser(ctx context.Context, userID string) ([]*Goal, error)

	// ListActive возвращает активные цели постранично, в стабильном
	// порядке (для пакетного прохода подстройки).
	ListActive(ctx context.Context, offset, limit int) ([]*Goal, error)

	// ApplyAdjustment атомарно обновляет цель и добавляет запись
	// подстройки в одной транзакции, с проверкой версии цели.
	// Возвращает ErrGoalConflict, если цель была изменена параллельно -
	// перекрывающийся запуск уже подстроил её, повторять не нужно.
	ApplyAdjustment(ctx context.Context, g *Goal, adj *Adjustment) error

	// UpdateProgress обновляет текущее значение и процент прогресса
	// с проверкой версии.
	UpdateProgress(ctx context.Context, g *Goal) error

	// ListAdjustments возвращает историю подстроек цели в порядке
	// добавления.
	ListAdjustments(ctx context.Context, goalID string) ([]*Adjustment, error)
}
