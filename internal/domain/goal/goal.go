// Package goal содержит доменную модель персональных целей и политику
// динамической подстройки их сложности.
// Каждая мутация цели объяснима: список adjustments append-only и
// полностью покрывает историю изменений target/difficulty/reward/deadline.
package goal

import (
	"strings"
	"time"

	"github.com/pulsehub/pulse-engagement-hub/internal/domain/shared"
	"github.com/pulsehub/pulse-engagement-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DIFFICULTY
// ══════════════════════════════════════════════════════════════════════════════

// Difficulty - градация сложности цели.
type Difficulty string

const (
	DifficultyEasy    Difficulty = "easy"
	DifficultyMedium  Difficulty = "medium"
	DifficultyHard    Difficulty = "hard"
	DifficultyExtreme Difficulty = "extreme"
)

// difficultyLadder - порядок эскалации сложности.
var difficultyLadder = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyExtreme}

// IsValid проверяет, что сложность известна.
func (d Difficulty) IsValid() bool {
	for _, v := range difficultyLadder {
		if v == d {
			return true
		}
	}
	return false
}

// IsMax возвращает true для максимальной сложности.
func (d Difficulty) IsMax() bool {
	return d == difficultyLadder[len(difficultyLadder)-1]
}

// Next возвращает следующую ступень сложности.
// Для максимальной возвращает её же.
func (d Difficulty) Next() Difficulty {
	for i, v := range difficultyLadder {
		if v == d && i+1 < len(difficultyLadder) {
			return difficultyLadder[i+1]
		}
	}
	return d
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status - статус жизненного цикла цели.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusExpired   Status = "expired"
	StatusAbandoned Status = "abandoned"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADJUSTMENT
// ══════════════════════════════════════════════════════════════════════════════

// AdjustmentKind - тип подстройки цели.
type AdjustmentKind string

const (
	// AdjustmentEscalation - пользователь сильно опережает график:
	// цель усложняется, награда растёт.
	AdjustmentEscalation AdjustmentKind = "escalation"

	// AdjustmentExtension - пользователь сильно отстаёт во второй
	// половине срока: дедлайн продлевается.
	AdjustmentExtension AdjustmentKind = "extension"
)

// Adjustment - одна запись истории подстроек. Append-only: каждая мутация
// target_value, difficulty, points_reward или end_date обязана быть
// объяснена ровно одной такой записью.
type Adjustment struct {
	ID     string
	GoalID string
	Kind   AdjustmentKind
	Reason string

	// Снимки до/после для аудита.
	OldTargetValue  float64
	NewTargetValue  float64
	OldDifficulty   Difficulty
	NewDifficulty   Difficulty
	OldPointsReward int
	NewPointsReward int
	OldEndDate      time.Time
	NewEndDate      time.Time

	// Delta - расхождение фактического и ожидаемого прогресса
	// на момент подстройки.
	Delta float64

	AdjustedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// GOAL
// ══════════════════════════════════════════════════════════════════════════════

// Goal - персональная цель пользователя.
type Goal struct {
	ID     string
	UserID string
	Title  string

	TargetValue        float64
	CurrentValue       float64
	ProgressPercentage float64

	StartDate time.Time
	EndDate   time.Time

	Difficulty   Difficulty
	PointsReward int
	Status       Status

	// LastAdjustedAt - время последней подстройки. Используется
	// защитой от повторной подстройки на соседних запусках.
	LastAdjustedAt *time.Time

	// Version - счётчик для оптимистической блокировки: защищает
	// read-evaluate-write последовательность подстройки от второго
	// перекрывающегося запуска.
	Version int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewGoal создаёт новую активную цель с валидацией.
func NewGoal(id, userID, title string, targetValue float64, start, end time.Time, difficulty Difficulty, pointsReward int) (*Goal, error) {
	if strings.TrimSpace(id) == "" || strings.TrimSpace(userID) == "" {
		return nil, shared.NewDomainError("goal", "NewGoal", shared.ErrInvalidID, "goal and user IDs are required")
	}
	if targetValue <= 0 {
		return nil, shared.NewDomainError("goal", "NewGoal", shared.ErrInvalidInput, "target value must be positive")
	}
	if !end.After(start) {
		return nil, shared.NewDomainError("goal", "NewGoal", shared.ErrInvalidInput, "end date must be after start date")
	}
	if !difficulty.IsValid() {
		return nil, shared.ErrInvalidDifficulty
	}
	if pointsReward < 0 {
		return nil, shared.NewDomainError("goal", "NewGoal", shared.ErrInvalidInput, "points reward must be non-negative")
	}

	now := time.Now().UTC()
	return &Goal{
		ID:           id,
		UserID:       userID,
		Title:        strings.TrimSpace(title),
		TargetValue:  targetValue,
		StartDate:    start,
		EndDate:      end,
		Difficulty:   difficulty,
		PointsReward: pointsReward,
		Status:       StatusActive,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// TotalDays возвращает полную длительность цели в днях.
func (g *Goal) TotalDays() int {
	return timeutil.DaysBetween(g.StartDate, g.EndDate)
}

// DaysElapsed возвращает количество прошедших дней на момент now.
func (g *Goal) DaysElapsed(now time.Time) int {
	elapsed := timeutil.DiffDays(g.StartDate, now)
	if elapsed < 0 {
		return 0
	}
	total := g.TotalDays()
	if elapsed > total {
		return total
	}
	return elapsed
}

// ExpectedProgress возвращает ожидаемый прогресс (0..100) на момент now
// при равномерном темпе.
func (g *Goal) ExpectedProgress(now time.Time) float64 {
	total := g.TotalDays()
	if total == 0 {
		return 100
	}
	return float64(g.DaysElapsed(now)) / float64(total) * 100
}

// ProgressDelta возвращает расхождение фактического и ожидаемого прогресса.
func (g *Goal) ProgressDelta(now time.Time) float64 {
	return g.ProgressPercentage - g.ExpectedProgress(now)
}

// IsActive возвращает true для активной цели с ненаступившим дедлайном.
func (g *Goal) IsActive(now time.Time) bool {
	return g.Status == StatusActive && now.Before(g.EndDate)
}
