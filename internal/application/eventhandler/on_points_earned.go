// Package eventhandler содержит обработчики доменных событий.
package eventhandler

import (
	"context"
	"log/slog"
	"time"

	"github.com/pulsehub/pulse-engagement-hub/internal/application/command"
	"github.com/pulsehub/pulse-engagement-hub/internal/application/saga"
	"github.com/pulsehub/pulse-engagement-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON POINTS EARNED HANDLER
// Обрабатывает событие начисления баллов.
//
// Ключевые функции:
// 1. Переоценка критериев бейджей — начисление могло удовлетворить критерий
// 2. Обновление серии активности — заработанные баллы означают
//    квалифицирующую активность за день
//
// Бонусные транзакции самих бейджей не запускают повторную оценку:
// иначе бонус за бейдж порождал бы каскад оценок.
// ═══════════════════════════════════════════════════════════════════════════

// OnPointsEarnedHandler обрабатывает событие начисления баллов.
type OnPointsEarnedHandler struct {
	badgeFlow    *saga.BadgeAwardFlow
	updateStreak *command.UpdateStreakHandler
	logger       *slog.Logger

	// timeout ограничивает обработку одного события.
	timeout time.Duration
}

// NewOnPointsEarnedHandler создаёт новый обработчик.
func NewOnPointsEarnedHandler(
	badgeFlow *saga.BadgeAwardFlow,
	updateStreak *command.UpdateStreakHandler,
	logger *slog.Logger,
) *OnPointsEarnedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnPointsEarnedHandler{
		badgeFlow:    badgeFlow,
		updateStreak: updateStreak,
		logger:       logger.With("handler", "on_points_earned"),
		timeout:      15 * time.Second,
	}
}

// Handle обрабатывает событие начисления баллов.
// Реализует интерфейс shared.EventHandler.
func (h *OnPointsEarnedHandler) Handle(event shared.Event) error {
	earned, ok := event.(shared.PointsEarnedEvent)
	if !ok {
		h.logger.Warn("received non-PointsEarnedEvent",
			"event_type", event.EventType(),
		)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	// Бонус за бейдж не переоценивает бейджи повторно.
	if earned.Source != "badge_award" {
		if _, err := h.badgeFlow.Execute(ctx, saga.EvaluateInput{
			UserID:       earned.UserID,
			TriggerEvent: string(event.EventType()),
		}); err != nil {
			h.logger.Error("badge evaluation failed",
				"user_id", earned.UserID,
				"error", err,
			)
		}

		if _, err := h.updateStreak.Handle(ctx, command.UpdateStreakCommand{
			UserID:       earned.UserID,
			ActivityDate: event.OccurredAt(),
		}); err != nil {
			h.logger.Error("streak update failed",
				"user_id", earned.UserID,
				"error", err,
			)
		}
	}

	return nil
}
