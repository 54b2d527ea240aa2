// Package badge содержит движок бейджей: декларативную таблицу критериев,
// награды и производную классификацию вовлечённости (tier).
// Бейдж выдаётся не более одного раза на пользователя и никогда
// не отзывается.
package badge

import (
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// TIERS
// ══════════════════════════════════════════════════════════════════════════════

// Tier - градация награды бейджа и классификация вовлечённости.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// bonusByTier - бонус в баллах за бейдж каждой градации.
var bonusByTier = map[Tier]int{
	TierBronze:   10,
	TierSilver:   25,
	TierGold:     50,
	TierPlatinum: 100,
}

// Bonus возвращает бонус в баллах за бейдж этой градации.
func (t Tier) Bonus() int {
	return bonusByTier[t]
}

// IsValid проверяет, что градация известна.
func (t Tier) IsValid() bool {
	_, ok := bonusByTier[t]
	return ok
}

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY SNAPSHOT
// ══════════════════════════════════════════════════════════════════════════════

// Snapshot - снимок счётчиков активности пользователя, против которого
// оцениваются критерии бейджей.
type Snapshot struct {
	EventsAttended   int
	CommentsAuthored int
	RecognitionsSent int
	LifetimePoints   int
	StreakDays       int
	BadgeCount       int
}

// ══════════════════════════════════════════════════════════════════════════════
// BADGE AWARD
// ══════════════════════════════════════════════════════════════════════════════

// Award - неизменяемая запись о выданном бейдже.
// Инвариант: не более одной записи на пару (user_id, badge_id);
// обеспечивается уникальным ограничением в хранилище.
type Award struct {
	ID         string
	UserID     string
	BadgeID    string
	Tier       Tier
	EarnedDate time.Time

	// Context - человекочитаемое объяснение, почему бейдж выдан.
	Context string

	// BonusEntryID - ID записи журнала с бонусом за бейдж.
	// Пустой, пока бонус не начислен (награда без бонуса - восстановимая
	// несогласованность, которую фоновая сверка доводит до конца).
	BonusEntryID string
}

// NewAward создаёт запись о выдаче бейджа.
func NewAward(id, userID string, def Definition, context string) *Award {
	return &Award{
		ID:         id,
		UserID:     userID,
		BadgeID:    def.ID,
		Tier:       def.Tier,
		EarnedDate: time.Now().UTC(),
		Context:    context,
	}
}

// HasBonus возвращает true, если бонус за бейдж уже начислен.
func (a *Award) HasBonus() bool {
	return a.BonusEntryID != ""
}

// ══════════════════════════════════════════════════════════════════════════════
// ENGAGEMENT TIER (derived)
// ══════════════════════════════════════════════════════════════════════════════

// Пороги взвешенного счёта вовлечённости.
const (
	silverScore   = 1000
	goldScore     = 3000
	platinumScore = 5000
)

// EngagementScore - взвешенный счёт вовлечённости: накопленные баллы
// плюс вклад бейджей и посещённых событий.
func EngagementScore(s Snapshot) int {
	return s.LifetimePoints + 100*s.BadgeCount + 25*s.EventsAttended
}

// EngagementTier вычисляет классификацию вовлечённости из снимка.
// Это производное значение: оно пересчитывается по требованию и
// никогда не хранится как самостоятельная истина.
func EngagementTier(s Snapshot) Tier {
	score := EngagementScore(s)
	switch {
	case score >= platinumScore:
		return TierPlatinum
	case score >= goldScore:
		return TierGold
	case score >= silverScore:
		return TierSilver
	default:
		return TierBronze
	}
}
