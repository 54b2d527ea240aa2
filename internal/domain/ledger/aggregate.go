package ledger

import (
	"time"

	"github.com/pulsehub/pulse-engagement-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEVEL THRESHOLDS
// ══════════════════════════════════════════════════════════════════════════════

// levelThresholds - восходящая таблица порогов уровней по накопленным баллам.
// Уровень пользователя - это старший индекс (базирующийся с 1), чей порог
// не превышает lifetime_points. Уровень никогда не понижается, потому что
// lifetime_points монотонно не убывают.
var levelThresholds = []int{0, 100, 250, 500, 1000, 2000, 3500, 5500, 8000, 11000}

// LevelForPoints возвращает уровень для заданного количества накопленных баллов.
func LevelForPoints(lifetimePoints int) int {
	level := 1
	for i, threshold := range levelThresholds {
		if lifetimePoints >= threshold {
			level = i + 1
		} else {
			break
		}
	}
	return level
}

// MaxLevel возвращает максимальный достижимый уровень.
func MaxLevel() int {
	return len(levelThresholds)
}

// PointsToNextLevel возвращает, сколько баллов не хватает до следующего уровня.
// Для максимального уровня возвращает 0.
func PointsToNextLevel(lifetimePoints int) int {
	level := LevelForPoints(lifetimePoints)
	if level >= len(levelThresholds) {
		return 0
	}
	return levelThresholds[level] - lifetimePoints
}

// ══════════════════════════════════════════════════════════════════════════════
// USER AGGREGATE
// ══════════════════════════════════════════════════════════════════════════════

// Aggregate - изменяемая проекция журнала по одному пользователю.
// Это кэш, а не источник истины: баланс, накопленные баллы и уровень
// обязаны совпадать с результатом полного воспроизведения журнала
// пользователя с пустого начального состояния.
type Aggregate struct {
	UserID string

	// Balance - текущий баланс. Никогда не отрицательный.
	Balance int

	// LifetimePoints - накопленные за всё время баллы. Монотонно не убывают.
	LifetimePoints int

	// Level - уровень, производный от LifetimePoints.
	Level int

	// Tier - производная классификация вовлечённости (bronze/silver/gold/
	// platinum). Пересчитывается движком бейджей; хранится только как кэш.
	Tier string

	// Счётчики активности для критериев бейджей.
	EventsAttended   int
	CommentsAuthored int
	RecognitionsSent int

	// Состояние серии активности.
	StreakDays       int
	BestStreak       int
	LastActivityDate *time.Time

	// ProcessingHalted устанавливается при обнаружении нарушения
	// инварианта; автоматическая обработка пользователя останавливается
	// до ручного разбора.
	ProcessingHalted bool

	// Version - счётчик для оптимистической блокировки записи агрегата.
	Version int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewAggregate создаёт пустой агрегат нового пользователя.
func NewAggregate(userID string) *Aggregate {
	now := time.Now().UTC()
	return &Aggregate{
		UserID:    userID,
		Balance:   0,
		Level:     1,
		Tier:      "bronze",
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Apply применяет сумму транзакции к агрегату и заполняет BalanceAfter
// записи. Баланс ограничивается снизу нулём: записывается ограниченное
// значение, а не сырая дельта. Накопленные баллы растут только на
// положительные суммы и никогда не ограничиваются.
// Возвращает true, если уровень пользователя повысился.
func (a *Aggregate) Apply(entry *Entry) (leveledUp bool, err error) {
	if a.ProcessingHalted {
		return false, shared.ErrUserProcessingHalted
	}
	if entry.Amount == 0 {
		return false, shared.ErrZeroPointAmount
	}

	newBalance := a.Balance + entry.Amount
	if newBalance < 0 {
		newBalance = 0
	}
	a.Balance = newBalance
	entry.BalanceAfter = newBalance

	oldLevel := a.Level
	if entry.Amount > 0 {
		a.LifetimePoints += entry.Amount
		a.Level = LevelForPoints(a.LifetimePoints)
	}
	a.UpdatedAt = time.Now().UTC()

	return a.Level > oldLevel, nil
}

// Replay воспроизводит журнал пользователя с пустого состояния.
// Порядок записей - порядок вставки (Seq), не время события: это делает
// проекцию детерминированной при запоздавшей доставке событий.
// Счётчики активности и серия не восстанавливаются из журнала - они
// ведутся отдельно; Replay восстанавливает только баланс, накопленные
// баллы и уровень.
func Replay(userID string, entries []*Entry) *Aggregate {
	agg := NewAggregate(userID)
	for _, e := range entries {
		balance := agg.Balance + e.Amount
		if balance < 0 {
			balance = 0
		}
		agg.Balance = balance
		if e.Amount > 0 {
			agg.LifetimePoints += e.Amount
		}
	}
	agg.Level = LevelForPoints(agg.LifetimePoints)
	return agg
}

// VerifyAgainst сверяет агрегат с результатом воспроизведения журнала.
// Несовпадение баланса или накопленных баллов - нарушение инварианта:
// автоматическая коррекция не выполняется, обработка пользователя
// должна быть остановлена.
func (a *Aggregate) VerifyAgainst(replayed *Aggregate) error {
	if a.Balance != replayed.Balance || a.LifetimePoints != replayed.LifetimePoints {
		return shared.ErrAggregateDiverged
	}
	return nil
}

// RecordActivity обновляет счётчики активности по типу ссылки записи.
func (a *Aggregate) RecordActivity(referenceType string) {
	switch referenceType {
	case "event_attendance":
		a.EventsAttended++
	case "comment":
		a.CommentsAuthored++
	case "recognition":
		a.RecognitionsSent++
	}
}

// Halt останавливает автоматическую обработку пользователя.
func (a *Aggregate) Halt() {
	a.ProcessingHalted = true
	a.UpdatedAt = time.Now().UTC()
}
