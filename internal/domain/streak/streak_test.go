package streak

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Time {
	return time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestAdvance_FirstActivity(t *testing.T) {
	s, res := Advance(State{}, day(0))

	assert.Equal(t, 1, res.Days)
	assert.True(t, res.Changed)
	assert.False(t, res.Broken)
	assert.Equal(t, 0, res.Milestone)
	assert.Equal(t, 1, s.Days)
	require.NotNil(t, s.LastActivityDate)
	assert.Equal(t, day(0), *s.LastActivityDate)
}

func TestAdvance_SameDayNoDoubleCount(t *testing.T) {
	s, _ := Advance(State{}, day(0))

	before := s
	s, res := Advance(s, day(0).Add(9*time.Hour))

	assert.Equal(t, 1, res.Days)
	assert.False(t, res.Changed)
	assert.Equal(t, before.Days, s.Days)
}

func TestAdvance_ConsecutiveDaysAndMilestone(t *testing.T) {
	// Scenario: activity on day0, day1, day2 reaches a streak of 3
	// and fires the 3-day milestone; a gap to day5 then resets to 1
	// without flagging the break (3 is not greater than 3).
	var s State
	var res Result

	for i := 0; i < 3; i++ {
		s, res = Advance(s, day(i))
	}
	assert.Equal(t, 3, s.Days)
	assert.Equal(t, 3, res.Milestone)

	s, res = Advance(s, day(5))
	assert.Equal(t, 1, res.Days)
	assert.False(t, res.Broken, "a prior streak of exactly 3 is not significant")
	assert.Equal(t, 1, s.Days)
	assert.Equal(t, 3, s.Best, "best streak survives the reset")
}

func TestAdvance_SignificantBreak(t *testing.T) {
	var s State
	for i := 0; i < 5; i++ {
		s, _ = Advance(s, day(i))
	}
	require.Equal(t, 5, s.Days)

	_, res := Advance(s, day(8))
	assert.Equal(t, 1, res.Days)
	assert.True(t, res.Broken, "losing a streak of 5 is significant")
}

func TestAdvance_Milestones(t *testing.T) {
	var s State
	var fired []int

	for i := 0; i < 30; i++ {
		var res Result
		s, res = Advance(s, day(i))
		if res.Milestone != 0 {
			fired = append(fired, res.Milestone)
		}
	}

	assert.Equal(t, []int{3, 7, 30}, fired)
	assert.Equal(t, 30, s.Days)
}

func TestAdvance_OutOfOrderActivity(t *testing.T) {
	var s State
	s, _ = Advance(s, day(3))
	s, _ = Advance(s, day(4))
	require.Equal(t, 2, s.Days)

	// A delayed event for an earlier day must not rewind the streak.
	next, res := Advance(s, day(1))
	assert.Equal(t, 2, res.Days)
	assert.False(t, res.Changed)
	assert.Equal(t, s.Days, next.Days)
	assert.Equal(t, *s.LastActivityDate, *next.LastActivityDate)
}

func TestNextMilestone(t *testing.T) {
	assert.Equal(t, 3, NextMilestone(0))
	assert.Equal(t, 7, NextMilestone(3))
	assert.Equal(t, 30, NextMilestone(7))
	assert.Equal(t, 0, NextMilestone(30))
}
