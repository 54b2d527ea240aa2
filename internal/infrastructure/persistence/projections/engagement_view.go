// Package projections implements in-memory read models for CQRS.
// Views are denormalized, updated from domain events and served without
// touching storage. They are a display cache, never a source of truth:
// everything here is recomputable from the ledger.
package projections

import (
	"sort"
	"sync"
	"time"

	"github.com/pulsehub/pulse-engagement-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENGAGEMENT VIEW - Denormalized Read Model
// ══════════════════════════════════════════════════════════════════════════════

// EngagementView is a process-local summary of platform activity, updated
// from domain events as they are published. It backs the operational
// overview endpoint: totals since startup, today's movers and a short
// tail of recent awards, without a database round-trip.
type EngagementView struct {
	mu sync.RWMutex

	// day is the UTC date the daily counters belong to. Counters reset
	// when an event arrives on a later date.
	day time.Time

	pointsEarnedToday   int
	pointsRedeemedToday int
	badgesAwardedToday  int
	levelUpsToday       int
	streaksBrokenToday  int

	// earnedByUser accumulates today's earned points per user, for the
	// top-movers list.
	earnedByUser map[string]int

	// recentAwards is a bounded FIFO of the latest badge awards.
	recentAwards []RecentAward

	eventsApplied int64
	lastEventAt   time.Time
	version       int64

	maxRecentAwards int
}

// RecentAward is one entry in the recent-awards feed.
type RecentAward struct {
	UserID  string    `json:"user_id"`
	BadgeID string    `json:"badge_id"`
	Tier    string    `json:"tier"`
	At      time.Time `json:"at"`
}

// Mover is one entry in the top-movers list.
type Mover struct {
	UserID string `json:"user_id"`
	Earned int    `json:"earned_today"`
}

// EngagementSnapshot is a point-in-time copy of the view for serving.
type EngagementSnapshot struct {
	Day                 time.Time     `json:"day"`
	PointsEarnedToday   int           `json:"points_earned_today"`
	PointsRedeemedToday int           `json:"points_redeemed_today"`
	BadgesAwardedToday  int           `json:"badges_awarded_today"`
	LevelUpsToday       int           `json:"level_ups_today"`
	StreaksBrokenToday  int           `json:"streaks_broken_today"`
	TopMovers           []Mover       `json:"top_movers"`
	RecentAwards        []RecentAward `json:"recent_awards"`
	EventsApplied       int64         `json:"events_applied"`
	LastEventAt         time.Time     `json:"last_event_at"`
	Version             int64         `json:"version"`
}

// NewEngagementView creates a new empty view.
func NewEngagementView() *EngagementView {
	return &EngagementView{
		day:             today(),
		earnedByUser:    make(map[string]int),
		recentAwards:    make([]RecentAward, 0, 20),
		maxRecentAwards: 20,
		version:         1,
	}
}

// Apply updates the view from a domain event. Registered on the event bus
// as a catch-all handler; unknown event types are ignored. Always returns
// nil: a read model must never fail the publishing side.
func (v *EngagementView) Apply(event shared.Event) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := event.OccurredAt().UTC()
	v.rollDayLocked(now)

	switch e := event.(type) {
	case shared.PointsEarnedEvent:
		v.pointsEarnedToday += e.Amount
		v.earnedByUser[e.UserID] += e.Amount

	case shared.PointsRedeemedEvent:
		v.pointsRedeemedToday += -e.Amount

	case shared.BadgeAwardedEvent:
		v.badgesAwardedToday++
		v.pushAwardLocked(RecentAward{
			UserID:  e.UserID,
			BadgeID: e.BadgeID,
			Tier:    e.Tier,
			At:      now,
		})

	case shared.LevelUpEvent:
		v.levelUpsToday++

	case shared.StreakBrokenEvent:
		v.streaksBrokenToday++

	default:
		return nil
	}

	v.eventsApplied++
	v.lastEventAt = now
	v.version++
	return nil
}

// Snapshot returns a copy of the current view state.
func (v *EngagementView) Snapshot() EngagementSnapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return EngagementSnapshot{
		Day:                 v.day,
		PointsEarnedToday:   v.pointsEarnedToday,
		PointsRedeemedToday: v.pointsRedeemedToday,
		BadgesAwardedToday:  v.badgesAwardedToday,
		LevelUpsToday:       v.levelUpsToday,
		StreaksBrokenToday:  v.streaksBrokenToday,
		TopMovers:           v.topMoversLocked(10),
		RecentAwards:        append([]RecentAward(nil), v.recentAwards...),
		EventsApplied:       v.eventsApplied,
		LastEventAt:         v.lastEventAt,
		Version:             v.version,
	}
}

// Reset clears all counters. Used in tests.
func (v *EngagementView) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.day = today()
	v.pointsEarnedToday = 0
	v.pointsRedeemedToday = 0
	v.badgesAwardedToday = 0
	v.levelUpsToday = 0
	v.streaksBrokenToday = 0
	v.earnedByUser = make(map[string]int)
	v.recentAwards = v.recentAwards[:0]
	v.eventsApplied = 0
	v.lastEventAt = time.Time{}
	v.version++
}

// rollDayLocked resets daily counters when the event date moves past the
// tracked day. Recent awards survive the roll: the feed is "latest", not
// "today's".
func (v *EngagementView) rollDayLocked(at time.Time) {
	day := at.Truncate(24 * time.Hour)
	if !day.After(v.day) {
		return
	}
	v.day = day
	v.pointsEarnedToday = 0
	v.pointsRedeemedToday = 0
	v.badgesAwardedToday = 0
	v.levelUpsToday = 0
	v.streaksBrokenToday = 0
	v.earnedByUser = make(map[string]int)
}

func (v *EngagementView) pushAwardLocked(a RecentAward) {
	v.recentAwards = append(v.recentAwards, a)
	if len(v.recentAwards) > v.maxRecentAwards {
		v.recentAwards = v.recentAwards[1:]
	}
}

func (v *EngagementView) topMoversLocked(limit int) []Mover {
	movers := make([]Mover, 0, len(v.earnedByUser))
	for userID, earned := range v.earnedByUser {
		movers = append(movers, Mover{UserID: userID, Earned: earned})
	}
	sort.Slice(movers, func(i, j int) bool {
		if movers[i].Earned != movers[j].Earned {
			return movers[i].Earned > movers[j].Earned
		}
		return movers[i].UserID < movers[j].UserID
	})
	if len(movers) > limit {
		movers = movers[:limit]
	}
	return movers
}

func today() time.Time {
	return time.Now().UTC().Truncate(24 * time.Hour)
}
