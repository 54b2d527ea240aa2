package ledger

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем журнала.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции над журналом баллов.
// Журнал append-only: записи только вставляются и читаются.
type Repository interface {
	// ─────────────────────────────────────────────────────────────────────────
	// Ledger (append-only)
	// ─────────────────────────────────────────────────────────────────────────

	// AppendEntry атомарно вставляет запись журнала и обновляет агрегат
	// пользователя в одной транзакции. Обновление агрегата защищено
	// проверкой версии: при проигрыше гонки возвращается
	// ErrAggregateConflict, и вызывающий повторяет всю операцию заново.
	AppendEntry(ctx context.Context, entry *Entry, agg *Aggregate) error

	// ListEntries возвращает записи пользователя в порядке вставки (Seq).
	ListEntries(ctx context.Context, userID string, opts ListOptions) ([]*Entry, error)

	// ListAllEntries возвращает все записи пользователя в порядке вставки,
	// без пагинации. Используется для воспроизведения журнала.
	ListAllEntries(ctx context.Context, userID string) ([]*Entry, error)

	// CountEntries возвращает количество записей пользователя.
	CountEntries(ctx context.Context, userID string) (int, error)

	// FindEntryByReference ищет запись по ссылке на доменное событие.
	// Возвращает ErrEntryNotFound, если запись не найдена.
	FindEntryByReference(ctx context.Context, userID, referenceType, referenceID string) (*Entry, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Aggregates
	// ─────────────────────────────────────────────────────────────────────────

	// GetOrCreateAggregate возвращает агрегат пользователя, лениво создавая
	// пустой при первом обращении.
	GetOrCreateAggregate(ctx context.Context, userID string) (*Aggregate, error)

	// GetAggregate возвращает агрегат пользователя.
	// Возвращает ErrUserNotFound, если агрегат не существует.
	GetAggregate(ctx context.Context, userID string) (*Aggregate, error)

	// UpdateAggregate обновляет агрегат с проверкой версии.
	// Возвращает ErrAggregateConflict при несовпадении версии.
	UpdateAggregate(ctx context.Context, agg *Aggregate) error

	// HaltProcessing останавливает автоматическую обработку пользователя
	// после обнаружения нарушения инварианта.
	HaltProcessing(ctx context.Context, userID string) error

	// ListAggregates возвращает агрегаты постранично (для фоновых проверок).
	ListAggregates(ctx context.Context, opts ListOptions) ([]*Aggregate, error)

	// TopByLifetimePoints возвращает лучших пользователей по накопленным
	// баллам (для перестроения таблицы лидеров).
	TopByLifetimePoints(ctx context.Context, limit int) ([]*Aggregate, error)
}

// ListOptions содержит параметры пагинации.
type ListOptions struct {
	// Offset - смещение (для пагинации).
	Offset int

	// Limit - максимальное количество записей.
	Limit int

	// Since - фильтр по времени создания (опционально).
	Since *time.Time
}

// DefaultListOptions возвращает параметры по умолчанию.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Offset: 0,
		Limit:  50,
	}
}

// WithOffset устанавливает смещение.
func (o ListOptions) WithOffset(offset int) ListOptions {
	o.Offset = offset
	return o
}

// WithLimit устанавливает лимит.
func (o ListOptions) WithLimit(limit int) ListOptions {
	o.Limit = limit
	return o
}

// WithSince устанавливает фильтр по времени.
func (o ListOptions) WithSince(t time.Time) ListOptions {
	o.Since = &t
	return o
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// Кеш таблицы лидеров (обычно реализуется через Redis).
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardCache определяет операции кеша таблицы лидеров.
type LeaderboardCache interface {
	// UpdateScore обновляет счёт пользователя в таблице лидеров.
	UpdateScore(ctx context.Context, userID string, lifetimePoints int) error

	// Top возвращает лучших пользователей с их счётом.
	Top(ctx context.Context, limit int) ([]RankedUser, error)

	// Rank возвращает позицию пользователя (начиная с 1).
	Rank(ctx context.Context, userID string) (int, error)

	// Rebuild полностью перестраивает таблицу из агрегатов.
	Rebuild(ctx context.Context, users []RankedUser) error
}

// RankedUser - пользователь с позицией в таблице лидеров.
type RankedUser struct {
	UserID         string
	LifetimePoints int
	Rank           int
}
