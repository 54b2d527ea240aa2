// Package streak содержит чистую машину состояний серии активности.
// Серия (streak) - количество последовательных календарных дней с
// квалифицирующей активностью. Пакет не имеет внешних зависимостей
// и побочных эффектов: решение об уведомлениях принимает вызывающий.
package streak

import (
	"time"

	"github.com/pulsehub/pulse-engagement-hub/pkg/timeutil"
)

// milestones - пороги серии, при пересечении которых отправляется
// поздравительное уведомление.
var milestones = []int{3, 7, 30}

// significantStreak - минимальная длина серии, потеря которой считается
// значимой. Обрыв тривиальной серии не помечается как broken.
const significantStreak = 3

// ══════════════════════════════════════════════════════════════════════════════
// STATE
// ══════════════════════════════════════════════════════════════════════════════

// State - текущее состояние серии пользователя.
type State struct {
	// Days - текущая длина серии в днях.
	Days int

	// Best - лучшая серия за всё время.
	Best int

	// LastActivityDate - дата последней активности (календарный день, UTC).
	// nil, если активности ещё не было.
	LastActivityDate *time.Time
}

// Result - результат применения активности к серии.
type Result struct {
	// Days - длина серии после применения.
	Days int

	// Broken - true, если значимая серия (длиннее significantStreak)
	// оборвалась этой активностью.
	Broken bool

	// Milestone - достигнутый порог (3, 7 или 30), либо 0.
	Milestone int

	// Changed - false для повторной активности в тот же день.
	Changed bool
}

// ══════════════════════════════════════════════════════════════════════════════
// TRANSITIONS
// ══════════════════════════════════════════════════════════════════════════════

// Advance применяет активность за указанную дату к состоянию серии.
// Чистая функция от (последняя дата, текущая серия, дата активности):
//
//   - активности не было                → серия = 1
//   - та же дата (diff == 0)            → без изменений
//   - следующий день (diff == 1)        → серия + 1, возможно milestone
//   - разрыв (diff > 1)                 → серия = 1; broken, если прежняя
//     серия превышала significantStreak
//   - активность задним числом (diff<0) → трактуется как повтор того же
//     дня: без изменений (журнал воспроизводится по порядку вставки,
//     запоздавшее событие не может откатить серию)
func Advance(s State, activityDate time.Time) (State, Result) {
	day := timeutil.DayOf(activityDate)

	if s.LastActivityDate == nil {
		next := State{Days: 1, Best: maxInt(s.Best, 1), LastActivityDate: &day}
		return next, Result{Days: 1, Changed: true, Milestone: milestoneReached(0, 1)}
	}

	diff := timeutil.DiffDays(*s.LastActivityDate, day)

	switch {
	case diff <= 0:
		// Повтор в тот же день или событие задним числом.
		return s, Result{Days: s.Days}

	case diff == 1:
		days := s.Days + 1
		next := State{Days: days, Best: maxInt(s.Best, days), LastActivityDate: &day}
		return next, Result{
			Days:      days,
			Changed:   true,
			Milestone: milestoneReached(s.Days, days),
		}

	default: // diff > 1
		broken := s.Days > significantStreak
		next := State{Days: 1, Best: maxInt(s.Best, 1), LastActivityDate: &day}
		return next, Result{Days: 1, Broken: broken, Changed: true}
	}
}

// milestoneReached возвращает порог, пересечённый переходом prev → curr,
// либо 0.
func milestoneReached(prev, curr int) int {
	for _, m := range milestones {
		if prev < m && curr >= m {
			return m
		}
	}
	return 0
}

// NextMilestone возвращает ближайший недостигнутый порог, либо 0.
func NextMilestone(days int) int {
	for _, m := range milestones {
		if days < m {
			return m
		}
	}
	return 0
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
