// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"errors"
	"time"

	"github.com/pulsehub/pulse-engagement-hub/internal/domain/badge"
	"github.com/pulsehub/pulse-engagement-hub/internal/domain/ledger"
	"github.com/pulsehub/pulse-engagement-hub/internal/domain/streak"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET USER PROGRESS QUERY
// Возвращает полный снимок прогресса пользователя: баланс, уровень,
// градацию вовлечённости, серию и бейджи.
// ══════════════════════════════════════════════════════════════════════════════

// GetUserProgressQuery содержит параметры запроса.
type GetUserProgressQuery struct {
	// UserID - внутренний ID пользователя.
	UserID string
}

// Validate проверяет корректность параметров запроса.
func (q *GetUserProgressQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("user_id is required")
	}
	return nil
}

// BadgeDTO - DTO выданного бейджа.
type BadgeDTO struct {
	BadgeID    string    `json:"badge_id"`
	Name       string    `json:"name"`
	Tier       string    `json:"tier"`
	EarnedDate time.Time `json:"earned_date"`
}

// UserProgressDTO - DTO прогресса пользователя.
type UserProgressDTO struct {
	UserID            string     `json:"user_id"`
	Balance           int        `json:"balance"`
	LifetimePoints    int        `json:"lifetime_points"`
	Level             int        `json:"level"`
	PointsToNextLevel int        `json:"points_to_next_level"`
	Tier              string     `json:"tier"`
	StreakDays        int        `json:"streak_days"`
	BestStreak        int        `json:"best_streak"`
	NextMilestone     int        `json:"next_milestone"`
	EventsAttended    int        `json:"events_attended"`
	CommentsAuthored  int        `json:"comments_authored"`
	RecognitionsSent  int        `json:"recognitions_sent"`
	Badges            []BadgeDTO `json:"badges"`
}

// ProgressCache хранит собранные снимки прогресса с коротким TTL.
// Промах и ошибка кэша для обработчика неразличимы: в обоих случаях
// снимок собирается заново из репозиториев.
type ProgressCache interface {
	GetProgress(ctx context.Context, userID string) (*UserProgressDTO, bool)
	SetProgress(ctx context.Context, userID string, snapshot *UserProgressDTO)
}

// GetUserProgressHandler обрабатывает запрос прогресса.
type GetUserProgressHandler struct {
	ledgerRepo ledger.Repository
	badgeRepo  badge.Repository
	cache      ProgressCache // nil отключает кэширование
}

// NewGetUserProgressHandler создаёт новый обработчик.
func NewGetUserProgressHandler(ledgerRepo ledger.Repository, badgeRepo badge.Repository, cache ProgressCache) *GetUserProgressHandler {
	return &GetUserProgressHandler{ledgerRepo: ledgerRepo, badgeRepo: badgeRepo, cache: cache}
}

// Handle выполняет запрос.
func (h *GetUserProgressHandler) Handle(ctx context.Context, q GetUserProgressQuery) (*UserProgressDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	if h.cache != nil {
		if snapshot, ok := h.cache.GetProgress(ctx, q.UserID); ok {
			return snapshot, nil
		}
	}

	agg, err := h.ledgerRepo.GetAggregate(ctx, q.UserID)
	if err != nil {
		return nil, err
	}

	awards, err := h.badgeRepo.GetByUser(ctx, q.UserID)
	if err != nil {
		return nil, err
	}

	badges := make([]BadgeDTO, 0, len(awards))
	for _, a := range awards {
		name := a.BadgeID
		if def, ok := badge.Lookup(a.BadgeID); ok {
			name = def.Name
		}
		badges = append(badges, BadgeDTO{
			BadgeID:    a.BadgeID,
			Name:       name,
			Tier:       string(a.Tier),
			EarnedDate: a.EarnedDate,
		})
	}

	// Градация пересчитывается из текущих входов, а не читается из кэша.
	tier := badge.EngagementTier(badge.Snapshot{
		EventsAttended:   agg.EventsAttended,
		CommentsAuthored: agg.CommentsAuthored,
		RecognitionsSent: agg.RecognitionsSent,
		LifetimePoints:   agg.LifetimePoints,
		StreakDays:       agg.StreakDays,
		BadgeCount:       len(awards),
	})

	snapshot := &UserProgressDTO{
		UserID:            agg.UserID,
		Balance:           agg.Balance,
		LifetimePoints:    agg.LifetimePoints,
		Level:             agg.Level,
		PointsToNextLevel: ledger.PointsToNextLevel(agg.LifetimePoints),
		Tier:              string(tier),
		StreakDays:        agg.StreakDays,
		BestStreak:        agg.BestStreak,
		NextMilestone:     streak.NextMilestone(agg.StreakDays),
		EventsAttended:    agg.EventsAttended,
		CommentsAuthored:  agg.CommentsAuthored,
		RecognitionsSent:  agg.RecognitionsSent,
		Badges:            badges,
	}

	if h.cache != nil {
		h.cache.SetProgress(ctx, q.UserID, snapshot)
	}

	return snapshot, nil
}
