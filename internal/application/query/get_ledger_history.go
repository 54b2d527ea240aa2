package query

import (
	"context"
	"errors"
	"time"

	"github.com/pulsehub/pulse-engagement-hub/internal/domain/ledger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEDGER HISTORY QUERY
// Возвращает историю транзакций пользователя в порядке вставки.
// ══════════════════════════════════════════════════════════════════════════════

// GetLedgerHistoryQuery содержит параметры запроса истории.
type GetLedgerHistoryQuery struct {
	// UserID - внутренний ID пользователя.
	UserID string

	// Limit - количество записей (по умолчанию 50, максимум 200).
	Limit int

	// Offset - смещение для пагинации.
	Offset int

	// Since - фильтр по времени создания (опционально).
	Since *time.Time
}

// Validate проверяет корректность параметров запроса.
func (q *GetLedgerHistoryQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("user_id is required")
	}
	if q.Limit < 0 || q.Offset < 0 {
		return errors.New("limit and offset cannot be negative")
	}
	if q.Limit == 0 {
		q.Limit = 50
	}
	if q.Limit > 200 {
		q.Limit = 200
	}
	return nil
}

// LedgerEntryDTO - DTO записи журнала.
type LedgerEntryDTO struct {
	ID            string    `json:"id"`
	Amount        int       `json:"amount"`
	Type          string    `json:"type"`
	ReferenceType string    `json:"reference_type"`
	ReferenceID   string    `json:"reference_id"`
	Description   string    `json:"description"`
	BalanceAfter  int       `json:"balance_after"`
	CreatedAt     time.Time `json:"created_at"`
}

// LedgerHistoryDTO - страница истории транзакций.
type LedgerHistoryDTO struct {
	UserID  string           `json:"user_id"`
	Entries []LedgerEntryDTO `json:"entries"`
	Total   int              `json:"total"`
}

// GetLedgerHistoryHandler обрабатывает запрос истории.
type GetLedgerHistoryHandler struct {
	ledgerRepo ledger.Repository
}

// NewGetLedgerHistoryHandler создаёт новый обработчик.
func NewGetLedgerHistoryHandler(ledgerRepo ledger.Repository) *GetLedgerHistoryHandler {
	return &GetLedgerHistoryHandler{ledgerRepo: ledgerRepo}
}

// Handle выполняет запрос.
func (h *GetLedgerHistoryHandler) Handle(ctx context.Context, q GetLedgerHistoryQuery) (*LedgerHistoryDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	opts := ledger.ListOptions{Offset: q.Offset, Limit: q.Limit, Since: q.Since}
	entries, err := h.ledgerRepo.ListEntries(ctx, q.UserID, opts)
	if err != nil {
		return nil, err
	}

	total, err := h.ledgerRepo.CountEntries(ctx, q.UserID)
	if err != nil {
		return nil, err
	}

	dto := &LedgerHistoryDTO{
		UserID:  q.UserID,
		Entries: make([]LedgerEntryDTO, 0, len(entries)),
		Total:   total,
	}
	for _, e := range entries {
		dto.Entries = append(dto.Entries, LedgerEntryDTO{
			ID:            e.ID,
			Amount:        e.Amount,
			Type:          e.Type.String(),
			ReferenceType: e.ReferenceType,
			ReferenceID:   e.ReferenceID,
			Description:   e.Description,
			BalanceAfter:  e.BalanceAfter,
			CreatedAt:     e.CreatedAt,
		})
	}
	return dto, nil
}
