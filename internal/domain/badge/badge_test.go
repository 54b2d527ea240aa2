package badge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTier_Bonus(t *testing.T) {
	assert.Equal(t, 10, TierBronze.Bonus())
	assert.Equal(t, 25, TierSilver.Bonus())
	assert.Equal(t, 50, TierGold.Bonus())
	assert.Equal(t, 100, TierPlatinum.Bonus())
	assert.False(t, Tier("diamond").IsValid())
}

func TestCatalog_UniqueIDsAndValidTiers(t *testing.T) {
	seen := map[string]bool{}
	for _, def := range Catalog() {
		assert.False(t, seen[def.ID], "duplicate badge id %q", def.ID)
		seen[def.ID] = true
		assert.True(t, def.Tier.IsValid(), "badge %q has invalid tier", def.ID)
		assert.NotNil(t, def.Satisfied)
	}
}

func TestEligible_ThresholdSatisfiedExactly(t *testing.T) {
	// The 10-events badge is satisfied exactly on the 10th attended event.
	snap := Snapshot{EventsAttended: 9}
	for _, def := range Eligible(snap, nil) {
		assert.NotEqual(t, "team_player", def.ID)
	}

	snap.EventsAttended = 10
	ids := eligibleIDs(snap, nil)
	assert.Contains(t, ids, "team_player")
}

func TestEligible_SkipsOwned(t *testing.T) {
	snap := Snapshot{EventsAttended: 10}
	owned := map[string]bool{"first_event": true, "team_player": true}

	ids := eligibleIDs(snap, owned)
	assert.NotContains(t, ids, "first_event")
	assert.NotContains(t, ids, "team_player")
}

func TestEligible_FreshUserEarnsNothing(t *testing.T) {
	assert.Empty(t, Eligible(Snapshot{}, nil))
}

func TestEligible_StreakBadges(t *testing.T) {
	ids := eligibleIDs(Snapshot{StreakDays: 7}, nil)
	assert.Contains(t, ids, "week_streak")
	assert.NotContains(t, ids, "month_streak")

	ids = eligibleIDs(Snapshot{StreakDays: 30}, nil)
	assert.Contains(t, ids, "month_streak")
}

func TestLookup(t *testing.T) {
	def, ok := Lookup("recognizer")
	require.True(t, ok)
	assert.Equal(t, TierGold, def.Tier)

	_, ok = Lookup("no_such_badge")
	assert.False(t, ok)
}

func TestEngagementTier(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
		want Tier
	}{
		{"fresh user", Snapshot{}, TierBronze},
		{"just below silver", Snapshot{LifetimePoints: 999}, TierBronze},
		{"silver on points alone", Snapshot{LifetimePoints: 1000}, TierSilver},
		{"badges and events count in", Snapshot{LifetimePoints: 500, BadgeCount: 3, EventsAttended: 8}, TierSilver},
		{"gold", Snapshot{LifetimePoints: 2500, BadgeCount: 5}, TierGold},
		{"platinum", Snapshot{LifetimePoints: 4000, BadgeCount: 8, EventsAttended: 20}, TierPlatinum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EngagementTier(tt.snap))
		})
	}
}

func TestNewAward(t *testing.T) {
	def, _ := Lookup("first_event")
	award := NewAward("aw-1", "user-1", def, "first event attended")

	assert.Equal(t, "first_event", award.BadgeID)
	assert.Equal(t, TierBronze, award.Tier)
	assert.False(t, award.HasBonus())

	award.BonusEntryID = "entry-1"
	assert.True(t, award.HasBonus())
}

func eligibleIDs(s Snapshot, owned map[string]bool) []string {
	var ids []string
	for _, def := range Eligible(s, owned) {
		ids = append(ids, def.ID)
	}
	return ids
}
