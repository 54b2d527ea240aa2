package query

import (
	"context"
	"errors"

	"github.com/pulsehub/pulse-engagement-hub/internal/domain/ledger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Возвращает топ пользователей по накопленным баллам. Читает из кеша
// (Redis ZSET); при промахе или отказе кеша падает обратно на хранилище.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardQuery содержит параметры запроса лидерборда.
type GetLeaderboardQuery struct {
	// Limit - количество записей (по умолчанию 20, максимум 100).
	Limit int
}

// Validate проверяет корректность параметров запроса.
func (q *GetLeaderboardQuery) Validate() error {
	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if q.Limit == 0 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	return nil
}

// LeaderboardRowDTO - DTO строки лидерборда.
type LeaderboardRowDTO struct {
	Rank           int    `json:"rank"`
	UserID         string `json:"user_id"`
	LifetimePoints int    `json:"lifetime_points"`
	Level          int    `json:"level"`
}

// LeaderboardDTO - страница лидерборда.
type LeaderboardDTO struct {
	Rows      []LeaderboardRowDTO `json:"rows"`
	FromCache bool                `json:"-"`
}

// GetLeaderboardHandler обрабатывает запрос лидерборда.
type GetLeaderboardHandler struct {
	cache      ledger.LeaderboardCache
	ledgerRepo ledger.Repository
}

// NewGetLeaderboardHandler создаёт новый обработчик.
func NewGetLeaderboardHandler(cache ledger.LeaderboardCache, ledgerRepo ledger.Repository) *GetLeaderboardHandler {
	return &GetLeaderboardHandler{cache: cache, ledgerRepo: ledgerRepo}
}

// Handle выполняет запрос.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*LeaderboardDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	if h.cache != nil {
		ranked, err := h.cache.Top(ctx, q.Limit)
		if err == nil && len(ranked) > 0 {
			dto := &LeaderboardDTO{FromCache: true}
			for _, r := range ranked {
				dto.Rows = append(dto.Rows, LeaderboardRowDTO{
					Rank:           r.Rank,
					UserID:         r.UserID,
					LifetimePoints: r.LifetimePoints,
					Level:          ledger.LevelForPoints(r.LifetimePoints),
				})
			}
			return dto, nil
		}
	}

	aggs, err := h.ledgerRepo.TopByLifetimePoints(ctx, q.Limit)
	if err != nil {
		return nil, err
	}
	dto := &LeaderboardDTO{}
	for i, agg := range aggs {
		dto.Rows = append(dto.Rows, LeaderboardRowDTO{
			Rank:           i + 1,
			UserID:         agg.UserID,
			LifetimePoints: agg.LifetimePoints,
			Level:          agg.Level,
		})
	}
	return dto, nil
}
