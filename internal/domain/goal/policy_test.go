package goal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var goalStart = time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)

// twentyDayGoal builds an active 20-day goal with the given progress.
func twentyDayGoal(t *testing.T, difficulty Difficulty, progress float64) *Goal {
	t.Helper()
	g, err := NewGoal("goal-1", "user-1", "Attend more events", 10, goalStart, goalStart.AddDate(0, 0, 20), difficulty, 100)
	require.NoError(t, err)
	g.CurrentValue = progress / 100 * g.TargetValue
	g.ProgressPercentage = progress
	return g
}

func TestDecide_EscalatesWhenAheadOfSchedule(t *testing.T) {
	// Halfway through a 20-day goal with 85% progress: delta = +35.
	g := twentyDayGoal(t, DifficultyMedium, 85)
	now := goalStart.AddDate(0, 0, 10)

	adj := Decide(g, now)
	require.NotNil(t, adj)

	assert.Equal(t, AdjustmentEscalation, adj.Kind)
	assert.InDelta(t, 35, adj.Delta, 0.01)
	assert.InDelta(t, 12, adj.NewTargetValue, 0.001, "target scaled by 1.2")
	assert.Equal(t, DifficultyHard, adj.NewDifficulty)
	assert.Equal(t, 130, adj.NewPointsReward, "reward scaled by 1.3")
	assert.Equal(t, g.EndDate, adj.NewEndDate, "escalation never moves the deadline")
}

func TestDecide_NoEscalationAtMaxDifficulty(t *testing.T) {
	g := twentyDayGoal(t, DifficultyExtreme, 85)
	now := goalStart.AddDate(0, 0, 10)

	assert.Nil(t, Decide(g, now))
}

func TestDecide_ExtendsWhenBehindPastHalfway(t *testing.T) {
	// Day 14 of 20: expected 70%, actual 30%, delta = -40.
	g := twentyDayGoal(t, DifficultyMedium, 30)
	now := goalStart.AddDate(0, 0, 14)

	adj := Decide(g, now)
	require.NotNil(t, adj)

	assert.Equal(t, AdjustmentExtension, adj.Kind)
	assert.Equal(t, g.EndDate.AddDate(0, 0, 4), adj.NewEndDate, "extension is 0.2 of total duration")
	assert.Equal(t, g.TargetValue, adj.NewTargetValue, "extension never touches the target")
	assert.Equal(t, g.Difficulty, adj.NewDifficulty)
	assert.Equal(t, g.PointsReward, adj.NewPointsReward)
}

func TestDecide_NoExtensionBeforeHalfway(t *testing.T) {
	// Day 8 of 20: expected 40%, actual 0%, delta = -40, but less than
	// half the duration has elapsed.
	g := twentyDayGoal(t, DifficultyMedium, 0)
	now := goalStart.AddDate(0, 0, 8)

	require.Less(t, g.ProgressDelta(now), -30.0)
	assert.Nil(t, Decide(g, now), "extension requires more than half the duration elapsed")
}

func TestDecide_WithinBandNoAdjustment(t *testing.T) {
	// Day 10 of 20: expected 50%, actual 60%, delta = +10.
	g := twentyDayGoal(t, DifficultyMedium, 60)
	now := goalStart.AddDate(0, 0, 10)

	assert.Nil(t, Decide(g, now))
}

func TestDecide_MutuallyExclusive(t *testing.T) {
	// A single pass yields exactly one kind of adjustment, never both.
	g := twentyDayGoal(t, DifficultyMedium, 85)
	now := goalStart.AddDate(0, 0, 14)

	adj := Decide(g, now)
	require.NotNil(t, adj)
	assert.Equal(t, AdjustmentEscalation, adj.Kind)
	assert.Equal(t, adj.OldEndDate, adj.NewEndDate)
}

func TestDecide_CooldownBlocksRepeatAdjustment(t *testing.T) {
	g := twentyDayGoal(t, DifficultyMedium, 85)
	now := goalStart.AddDate(0, 0, 10)

	adj := Decide(g, now)
	require.NotNil(t, adj)
	require.NoError(t, g.Apply(adj, now))

	// Next day's run sees a persisting delta but must not compound.
	nextRun := now.AddDate(0, 0, 1)
	assert.Nil(t, Decide(g, nextRun))

	// After the cooldown has passed the goal is eligible again.
	afterCooldown := now.AddDate(0, 0, 8)
	if g.IsActive(afterCooldown) && g.ProgressDelta(afterCooldown) > 30 {
		assert.NotNil(t, Decide(g, afterCooldown))
	}
}

func TestDecide_InactiveGoal(t *testing.T) {
	g := twentyDayGoal(t, DifficultyMedium, 85)
	g.Status = StatusCompleted

	assert.Nil(t, Decide(g, goalStart.AddDate(0, 0, 10)))
}

func TestApply_RecalculatesProgress(t *testing.T) {
	g := twentyDayGoal(t, DifficultyMedium, 85)
	now := goalStart.AddDate(0, 0, 10)

	adj := Decide(g, now)
	require.NotNil(t, adj)
	require.NoError(t, g.Apply(adj, now))

	assert.InDelta(t, 12, g.TargetValue, 0.001)
	assert.Equal(t, DifficultyHard, g.Difficulty)
	assert.Equal(t, 130, g.PointsReward)
	assert.InDelta(t, 85/1.2, g.ProgressPercentage, 0.01, "progress shrinks against the raised target")
	require.NotNil(t, g.LastAdjustedAt)
}

func TestApply_WrongGoal(t *testing.T) {
	g := twentyDayGoal(t, DifficultyMedium, 85)
	adj := &Adjustment{GoalID: "other-goal"}

	assert.Error(t, g.Apply(adj, goalStart))
}

func TestDifficultyLadder(t *testing.T) {
	assert.Equal(t, DifficultyMedium, DifficultyEasy.Next())
	assert.Equal(t, DifficultyHard, DifficultyMedium.Next())
	assert.Equal(t, DifficultyExtreme, DifficultyHard.Next())
	assert.Equal(t, DifficultyExtreme, DifficultyExtreme.Next())
	assert.True(t, DifficultyExtreme.IsMax())
	assert.False(t, Difficulty("nightmare").IsValid())
}

func TestNewGoal_Validation(t *testing.T) {
	_, err := NewGoal("", "user-1", "t", 10, goalStart, goalStart.AddDate(0, 0, 1), DifficultyEasy, 10)
	assert.Error(t, err)

	_, err = NewGoal("g", "user-1", "t", 0, goalStart, goalStart.AddDate(0, 0, 1), DifficultyEasy, 10)
	assert.Error(t, err)

	_, err = NewGoal("g", "user-1", "t", 10, goalStart, goalStart, DifficultyEasy, 10)
	assert.Error(t, err)

	_, err = NewGoal("g", "user-1", "t", 10, goalStart, goalStart.AddDate(0, 0, 1), Difficulty("bad"), 10)
	assert.Error(t, err)
}
