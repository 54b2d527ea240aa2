package projections

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsehub/pulse-engagement-hub/internal/domain/shared"
)

func TestEngagementView_AccumulatesDailyCounters(t *testing.T) {
	view := NewEngagementView()

	require.NoError(t, view.Apply(shared.NewPointsEarnedEvent("user-1", 25, 25, 25, "event_attendance", "e1")))
	require.NoError(t, view.Apply(shared.NewPointsEarnedEvent("user-2", 50, 50, 50, "recognition", "e2")))
	require.NoError(t, view.Apply(shared.NewPointsRedeemedEvent("user-1", -10, 15, "e3")))
	require.NoError(t, view.Apply(shared.NewLevelUpEvent("user-2", 1, 2, 50)))
	require.NoError(t, view.Apply(shared.NewStreakBrokenEvent("user-3", 7)))

	snap := view.Snapshot()
	assert.Equal(t, 75, snap.PointsEarnedToday)
	assert.Equal(t, 10, snap.PointsRedeemedToday)
	assert.Equal(t, 1, snap.LevelUpsToday)
	assert.Equal(t, 1, snap.StreaksBrokenToday)
	assert.Equal(t, int64(5), snap.EventsApplied)
}

func TestEngagementView_TopMoversSortedByEarned(t *testing.T) {
	view := NewEngagementView()

	require.NoError(t, view.Apply(shared.NewPointsEarnedEvent("user-a", 10, 10, 10, "survey", "e1")))
	require.NoError(t, view.Apply(shared.NewPointsEarnedEvent("user-b", 40, 40, 40, "recognition", "e2")))
	require.NoError(t, view.Apply(shared.NewPointsEarnedEvent("user-a", 15, 25, 25, "survey", "e3")))

	snap := view.Snapshot()
	require.Len(t, snap.TopMovers, 2)
	assert.Equal(t, Mover{UserID: "user-b", Earned: 40}, snap.TopMovers[0])
	assert.Equal(t, Mover{UserID: "user-a", Earned: 25}, snap.TopMovers[1])
}

func TestEngagementView_RecentAwardsAreBounded(t *testing.T) {
	view := NewEngagementView()

	for i := 0; i < 25; i++ {
		badgeID := fmt.Sprintf("badge-%d", i)
		require.NoError(t, view.Apply(shared.NewBadgeAwardedEvent("user-1", badgeID, "bronze", 10, fmt.Sprintf("award-%d", i))))
	}

	snap := view.Snapshot()
	assert.Equal(t, 25, snap.BadgesAwardedToday)
	require.Len(t, snap.RecentAwards, 20)
	// The oldest entries fall off the front.
	assert.Equal(t, "badge-5", snap.RecentAwards[0].BadgeID)
	assert.Equal(t, "badge-24", snap.RecentAwards[19].BadgeID)
}

func TestEngagementView_UnknownEventIgnored(t *testing.T) {
	view := NewEngagementView()

	require.NoError(t, view.Apply(shared.NewGoalExtendedEvent("user-1", "goal-1", view.Snapshot().Day, view.Snapshot().Day)))

	snap := view.Snapshot()
	assert.Zero(t, snap.EventsApplied)
	assert.Zero(t, snap.PointsEarnedToday)
}

func TestEngagementView_ResetClearsCounters(t *testing.T) {
	view := NewEngagementView()
	require.NoError(t, view.Apply(shared.NewPointsEarnedEvent("user-1", 25, 25, 25, "survey", "e1")))

	view.Reset()

	snap := view.Snapshot()
	assert.Zero(t, snap.PointsEarnedToday)
	assert.Zero(t, snap.EventsApplied)
	assert.Empty(t, snap.TopMovers)
}
