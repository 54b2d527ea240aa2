package badge

// ══════════════════════════════════════════════════════════════════════════════
// CRITERIA RULE TABLE
// Критерии бейджей описаны декларативно: badge_id → (предикат над снимком
// активности, градация). Новый бейдж добавляется строкой в таблицу,
// без изменения логики выдачи.
// ══════════════════════════════════════════════════════════════════════════════

// Predicate - условие выдачи бейджа над снимком активности.
type Predicate func(Snapshot) bool

// Definition - описание одного бейджа.
type Definition struct {
	ID          string
	Name        string
	Description string
	Tier        Tier
	Satisfied   Predicate
}

// atLeast строит предикат "счётчик не меньше порога".
func atLeast(threshold int, counter func(Snapshot) int) Predicate {
	return func(s Snapshot) bool {
		return counter(s) >= threshold
	}
}

// Catalog возвращает полную таблицу критериев бейджей.
// Порядок стабилен: оценка и выдача идут в порядке таблицы.
func Catalog() []Definition {
	return []Definition{
		{
			ID:          "first_event",
			Name:        "First Steps",
			Description: "Attended your first event",
			Tier:        TierBronze,
			Satisfied:   atLeast(1, func(s Snapshot) int { return s.EventsAttended }),
		},
		{
			ID:          "team_player",
			Name:        "Team Player",
			Description: "Attended 10 events",
			Tier:        TierSilver,
			Satisfied:   atLeast(10, func(s Snapshot) int { return s.EventsAttended }),
		},
		{
			ID:          "event_regular",
			Name:        "Event Regular",
			Description: "Attended 25 events",
			Tier:        TierGold,
			Satisfied:   atLeast(25, func(s Snapshot) int { return s.EventsAttended }),
		},
		{
			ID:          "first_recognition",
			Name:        "Kind Words",
			Description: "Sent your first recognition",
			Tier:        TierBronze,
			Satisfied:   atLeast(1, func(s Snapshot) int { return s.RecognitionsSent }),
		},
		{
			ID:          "recognizer",
			Name:        "Recognizer",
			Description: "Sent 50 recognitions",
			Tier:        TierGold,
			Satisfied:   atLeast(50, func(s Snapshot) int { return s.RecognitionsSent }),
		},
		{
			ID:          "conversationalist",
			Name:        "Conversationalist",
			Description: "Authored 25 comments",
			Tier:        TierSilver,
			Satisfied:   atLeast(25, func(s Snapshot) int { return s.CommentsAuthored }),
		},
		{
			ID:          "point_collector",
			Name:        "Point Collector",
			Description: "Earned 1000 lifetime points",
			Tier:        TierGold,
			Satisfied:   atLeast(1000, func(s Snapshot) int { return s.LifetimePoints }),
		},
		{
			ID:          "point_magnate",
			Name:        "Point Magnate",
			Description: "Earned 5000 lifetime points",
			Tier:        TierPlatinum,
			Satisfied:   atLeast(5000, func(s Snapshot) int { return s.LifetimePoints }),
		},
		{
			ID:          "week_streak",
			Name:        "On Fire",
			Description: "Kept a 7-day activity streak",
			Tier:        TierSilver,
			Satisfied:   atLeast(7, func(s Snapshot) int { return s.StreakDays }),
		},
		{
			ID:          "month_streak",
			Name:        "Unstoppable",
			Description: "Kept a 30-day activity streak",
			Tier:        TierPlatinum,
			Satisfied:   atLeast(30, func(s Snapshot) int { return s.StreakDays }),
		},
	}
}

// Lookup возвращает описание бейджа по ID.
func Lookup(badgeID string) (Definition, bool) {
	for _, def := range Catalog() {
		if def.ID == badgeID {
			return def, true
		}
	}
	return Definition{}, false
}

// Eligible возвращает бейджи, чьи критерии удовлетворены снимком,
// исключая уже выданные.
func Eligible(s Snapshot, owned map[string]bool) []Definition {
	var result []Definition
	for _, def := range Catalog() {
		if owned[def.ID] {
			continue
		}
		if def.Satisfied(s) {
			result = append(result, def)
		}
	}
	return result
}
