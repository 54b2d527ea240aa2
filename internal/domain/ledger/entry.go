// Package ledger содержит доменную модель журнала баллов Pulse Engagement Hub.
// Журнал (ledger) - единственный источник истины для балансов: записи
// создаются один раз и никогда не изменяются и не удаляются.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package ledger

import (
	"strings"
	"time"

	"github.com/pulsehub/pulse-engagement-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TRANSACTION TYPE
// ══════════════════════════════════════════════════════════════════════════════

// TransactionType определяет тип транзакции баллов.
type TransactionType string

const (
	// TransactionEarn - начисление за активность (посещение события,
	// признание, опрос).
	TransactionEarn TransactionType = "earn"

	// TransactionRedeem - списание баллов (магазин наград).
	TransactionRedeem TransactionType = "redeem"

	// TransactionBonus - бонус за бейдж.
	TransactionBonus TransactionType = "bonus"

	// TransactionAdjustment - ручная корректировка администратором.
	TransactionAdjustment TransactionType = "adjustment"
)

// IsValid проверяет, что тип транзакции известен.
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionEarn, TransactionRedeem, TransactionBonus, TransactionAdjustment:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление типа.
func (t TransactionType) String() string {
	return string(t)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER ENTRY
// ══════════════════════════════════════════════════════════════════════════════

// Entry представляет одну неизменяемую запись журнала баллов.
// BalanceAfter - баланс пользователя после применения записи; он вычисляется
// из предыдущего баланса и Amount в момент создания и больше не меняется.
type Entry struct {
	// ID - уникальный идентификатор записи (UUID).
	ID string

	// Seq - порядковый номер вставки. Воспроизведение журнала (replay)
	// идёт строго по Seq, а не по времени события.
	Seq int64

	// UserID - идентификатор пользователя.
	UserID string

	// Amount - знаковое количество баллов. Никогда не ноль.
	Amount int

	// Type - тип транзакции.
	Type TransactionType

	// ReferenceType и ReferenceID указывают на доменное событие,
	// вызвавшее транзакцию (для трассировки).
	ReferenceType string
	ReferenceID   string

	// Description - человекочитаемое описание.
	Description string

	// BalanceAfter - баланс после применения записи (с учётом пола в ноль).
	BalanceAfter int

	// ProcessedBy - компонент, создавший запись (например "badge_engine").
	ProcessedBy string

	// CreatedAt - время создания записи.
	CreatedAt time.Time
}

// NewEntry создаёт новую запись журнала с валидацией входных данных.
// BalanceAfter заполняется позже, при применении к агрегату.
func NewEntry(id, userID string, amount int, txType TransactionType, ref shared.Reference, description, processedBy string) (*Entry, error) {
	if strings.TrimSpace(id) == "" {
		return nil, shared.NewDomainError("ledger", "NewEntry", shared.ErrInvalidID, "entry ID is required")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, shared.NewDomainError("ledger", "NewEntry", shared.ErrInvalidID, "user ID is required")
	}
	if amount == 0 {
		return nil, shared.ErrZeroPointAmount
	}
	if !txType.IsValid() {
		return nil, shared.ErrUnknownTransaction
	}

	return &Entry{
		ID:            id,
		UserID:        userID,
		Amount:        amount,
		Type:          txType,
		ReferenceType: ref.Type,
		ReferenceID:   ref.ID,
		Description:   strings.TrimSpace(description),
		ProcessedBy:   processedBy,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// IsCredit возвращает true для положительных транзакций.
func (e *Entry) IsCredit() bool {
	return e.Amount > 0
}

// Reference возвращает ссылку на исходное доменное событие.
func (e *Entry) Reference() shared.Reference {
	return shared.Reference{Type: e.ReferenceType, ID: e.ReferenceID}
}
