package goal

import (
	"fmt"
	"time"

	"github.com/pulsehub/pulse-engagement-hub/internal/domain/shared"
	"github.com/pulsehub/pulse-engagement-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADJUSTMENT POLICY
// Пропорционально-пороговый контур: сравнивает фактический прогресс
// с ожидаемым и либо усложняет цель, либо продлевает дедлайн.
// Эскалация и продление взаимоисключающие в пределах одного прохода.
// ══════════════════════════════════════════════════════════════════════════════

const (
	// escalateThreshold - опережение графика, при котором цель усложняется.
	escalateThreshold = 30.0

	// extendThreshold - отставание от графика, при котором дедлайн
	// продлевается (во второй половине срока).
	extendThreshold = -30.0

	// targetFactor - множитель цели при эскалации.
	targetFactor = 1.2

	// rewardFactor - множитель награды при эскалации.
	rewardFactor = 1.3

	// extensionFactor - доля полной длительности, на которую
	// продлевается дедлайн.
	extensionFactor = 0.2

	// adjustmentCooldown - минимальный интервал между подстройками
	// одной цели. Без него сохраняющаяся дельта повторно усложняла бы
	// цель на каждом запуске, неограниченно накапливая множители.
	adjustmentCooldown = 7 * 24 * time.Hour
)

// Decide оценивает цель на момент now и возвращает подстройку,
// либо nil, если подстройка не нужна. Чистая функция: цель не мутируется.
func Decide(g *Goal, now time.Time) *Adjustment {
	if !g.IsActive(now) {
		return nil
	}
	if g.LastAdjustedAt != nil && now.Sub(*g.LastAdjustedAt) < adjustmentCooldown {
		return nil
	}

	delta := g.ProgressDelta(now)

	switch {
	case delta > escalateThreshold && !g.Difficulty.IsMax():
		return escalation(g, delta, now)

	case delta < extendThreshold && pastHalfway(g, now):
		return extension(g, delta, now)

	default:
		return nil
	}
}

// Apply применяет подстройку к цели и возвращает ошибку, если подстройка
// относится к другой цели.
func (g *Goal) Apply(adj *Adjustment, now time.Time) error {
	if adj.GoalID != g.ID {
		return shared.NewDomainError("goal", "Apply", shared.ErrInvalidInput, "adjustment belongs to another goal")
	}
	if g.Status != StatusActive {
		return shared.ErrGoalNotActive
	}

	g.TargetValue = adj.NewTargetValue
	g.Difficulty = adj.NewDifficulty
	g.PointsReward = adj.NewPointsReward
	g.EndDate = adj.NewEndDate
	if g.TargetValue > 0 {
		g.ProgressPercentage = g.CurrentValue / g.TargetValue * 100
	}
	g.LastAdjustedAt = &adj.AdjustedAt
	g.UpdatedAt = now
	return nil
}

func escalation(g *Goal, delta float64, now time.Time) *Adjustment {
	return &Adjustment{
		GoalID:          g.ID,
		Kind:            AdjustmentEscalation,
		Reason:          fmt.Sprintf("ahead of schedule: progress %.0f%% exceeds expected %.0f%%", g.ProgressPercentage, g.ExpectedProgress(now)),
		OldTargetValue:  g.TargetValue,
		NewTargetValue:  g.TargetValue * targetFactor,
		OldDifficulty:   g.Difficulty,
		NewDifficulty:   g.Difficulty.Next(),
		OldPointsReward: g.PointsReward,
		NewPointsReward: int(float64(g.PointsReward) * rewardFactor),
		OldEndDate:      g.EndDate,
		NewEndDate:      g.EndDate,
		Delta:           delta,
		AdjustedAt:      now,
	}
}

func extension(g *Goal, delta float64, now time.Time) *Adjustment {
	extraDays := int(extensionFactor * float64(g.TotalDays()))
	if extraDays < 1 {
		extraDays = 1
	}
	return &Adjustment{
		GoalID:          g.ID,
		Kind:            AdjustmentExtension,
		Reason:          fmt.Sprintf("deadline extension: progress %.0f%% is behind expected %.0f%%", g.ProgressPercentage, g.ExpectedProgress(now)),
		OldTargetValue:  g.TargetValue,
		NewTargetValue:  g.TargetValue,
		OldDifficulty:   g.Difficulty,
		NewDifficulty:   g.Difficulty,
		OldPointsReward: g.PointsReward,
		NewPointsReward: g.PointsReward,
		OldEndDate:      g.EndDate,
		NewEndDate:      timeutil.AddDays(g.EndDate, extraDays),
		Delta:           delta,
		AdjustedAt:      now,
	}
}

func pastHalfway(g *Goal, now time.Time) bool {
	return g.DaysElapsed(now)*2 > g.TotalDays()
}
