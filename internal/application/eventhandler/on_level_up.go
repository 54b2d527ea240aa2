package eventhandler

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pulsehub/pulse-engagement-hub/internal/domain/notification"
	"github.com/pulsehub/pulse-engagement-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON LEVEL UP HANDLER
// Ставит в очередь поздравительное уведомление при повышении уровня.
// Доставка асинхронная: отказ очереди логируется, но не влияет на
// транзакцию, породившую событие.
// ═══════════════════════════════════════════════════════════════════════════

// OnLevelUpHandler обрабатывает событие повышения уровня.
type OnLevelUpHandler struct {
	outbox notification.OutboxRepository
	logger *slog.Logger
}

// NewOnLevelUpHandler создаёт новый обработчик.
func NewOnLevelUpHandler(outbox notification.OutboxRepository, logger *slog.Logger) *OnLevelUpHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnLevelUpHandler{
		outbox: outbox,
		logger: logger.With("handler", "on_level_up"),
	}
}

// Handle обрабатывает событие повышения уровня.
// Реализует интерфейс shared.EventHandler.
func (h *OnLevelUpHandler) Handle(event shared.Event) error {
	levelUp, ok := event.(shared.LevelUpEvent)
	if !ok {
		h.logger.Warn("received non-LevelUpEvent",
			"event_type", event.EventType(),
		)
		return nil
	}

	msg, err := notification.NewMessage(levelUp.UserID, notification.KindLevelUp, map[string]any{
		"old_level":       levelUp.OldLevel,
		"new_level":       levelUp.NewLevel,
		"lifetime_points": levelUp.Lifetime,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.outbox.Enqueue(ctx, notification.NewOutboxRecord(uuid.NewString(), msg)); err != nil {
		h.logger.Error("failed to enqueue level-up notification",
			"user_id", levelUp.UserID,
			"error", err,
		)
	}
	return nil
}
