package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsehub/pulse-engagement-hub/internal/domain/shared"
)

func mustEntry(t *testing.T, userID string, amount int, txType TransactionType) *Entry {
	t.Helper()
	e, err := NewEntry("entry-1", userID, amount, txType, shared.Reference{Type: "event_attendance", ID: "evt-1"}, "test", "test")
	require.NoError(t, err)
	return e
}

func TestLevelForPoints(t *testing.T) {
	tests := []struct {
		points int
		level  int
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{105, 2},
		{249, 2},
		{250, 3},
		{500, 4},
		{1000, 5},
		{11000, 10},
		{999999, 10},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.level, LevelForPoints(tt.points), "points=%d", tt.points)
	}
}

func TestPointsToNextLevel(t *testing.T) {
	assert.Equal(t, 100, PointsToNextLevel(0))
	assert.Equal(t, 5, PointsToNextLevel(95))
	assert.Equal(t, 145, PointsToNextLevel(105))
	assert.Equal(t, 0, PointsToNextLevel(11000))
}

func TestAggregate_Apply_FreshUserEarn(t *testing.T) {
	agg := NewAggregate("user-1")
	entry := mustEntry(t, "user-1", 25, TransactionEarn)

	leveledUp, err := agg.Apply(entry)
	require.NoError(t, err)

	assert.False(t, leveledUp)
	assert.Equal(t, 25, agg.Balance)
	assert.Equal(t, 25, agg.LifetimePoints)
	assert.Equal(t, 1, agg.Level)
	assert.Equal(t, 25, entry.BalanceAfter)
}

func TestAggregate_Apply_LevelTransition(t *testing.T) {
	agg := NewAggregate("user-1")
	agg.Balance = 95
	agg.LifetimePoints = 95

	entry := mustEntry(t, "user-1", 10, TransactionEarn)
	leveledUp, err := agg.Apply(entry)
	require.NoError(t, err)

	assert.True(t, leveledUp)
	assert.Equal(t, 105, agg.LifetimePoints)
	assert.Equal(t, 2, agg.Level)
}

func TestAggregate_Apply_RedeemFloorsAtZero(t *testing.T) {
	agg := NewAggregate("user-1")
	agg.Balance = 30
	agg.LifetimePoints = 30

	entry := mustEntry(t, "user-1", -50, TransactionRedeem)
	leveledUp, err := agg.Apply(entry)
	require.NoError(t, err)

	assert.False(t, leveledUp)
	assert.Equal(t, 0, agg.Balance, "balance is floored at zero")
	assert.Equal(t, 0, entry.BalanceAfter, "the floored value is what gets recorded")
	assert.Equal(t, 30, agg.LifetimePoints, "redemption never touches lifetime points")
}

func TestAggregate_Apply_LevelSurvivesRedemption(t *testing.T) {
	agg := NewAggregate("user-1")

	earn := mustEntry(t, "user-1", 150, TransactionEarn)
	_, err := agg.Apply(earn)
	require.NoError(t, err)
	require.Equal(t, 2, agg.Level)

	redeem := mustEntry(t, "user-1", -150, TransactionRedeem)
	_, err = agg.Apply(redeem)
	require.NoError(t, err)

	assert.Equal(t, 0, agg.Balance)
	assert.Equal(t, 2, agg.Level, "level is non-decreasing even when balance drops")
	assert.Equal(t, 150, agg.LifetimePoints)
}

func TestAggregate_Apply_ZeroAmount(t *testing.T) {
	agg := NewAggregate("user-1")
	entry := &Entry{UserID: "user-1", Amount: 0, Type: TransactionEarn}

	_, err := agg.Apply(entry)
	assert.ErrorIs(t, err, shared.ErrZeroPointAmount)
}

func TestAggregate_Apply_HaltedUser(t *testing.T) {
	agg := NewAggregate("user-1")
	agg.Halt()

	entry := mustEntry(t, "user-1", 10, TransactionEarn)
	_, err := agg.Apply(entry)
	assert.ErrorIs(t, err, shared.ErrUserProcessingHalted)
}

func TestReplay_ReproducesAggregate(t *testing.T) {
	agg := NewAggregate("user-1")

	amounts := []struct {
		amount int
		txType TransactionType
	}{
		{25, TransactionEarn},
		{50, TransactionEarn},
		{-40, TransactionRedeem},
		{100, TransactionBonus},
		{-200, TransactionRedeem}, // overdraw, floors at zero
		{10, TransactionEarn},
	}

	var entries []*Entry
	for i, a := range amounts {
		e := mustEntry(t, "user-1", a.amount, a.txType)
		e.Seq = int64(i + 1)
		_, err := agg.Apply(e)
		require.NoError(t, err)
		entries = append(entries, e)
	}

	replayed := Replay("user-1", entries)

	assert.Equal(t, agg.Balance, replayed.Balance)
	assert.Equal(t, agg.LifetimePoints, replayed.LifetimePoints)
	assert.Equal(t, agg.Level, replayed.Level)
	require.NoError(t, agg.VerifyAgainst(replayed))
}

func TestVerifyAgainst_DetectsDivergence(t *testing.T) {
	agg := NewAggregate("user-1")
	agg.Balance = 100
	agg.LifetimePoints = 100

	replayed := NewAggregate("user-1")
	replayed.Balance = 90
	replayed.LifetimePoints = 100

	err := agg.VerifyAgainst(replayed)
	assert.ErrorIs(t, err, shared.ErrAggregateDiverged)
	assert.True(t, shared.IsInvariantViolation(err))
}

func TestAggregate_RecordActivity(t *testing.T) {
	agg := NewAggregate("user-1")

	agg.RecordActivity("event_attendance")
	agg.RecordActivity("event_attendance")
	agg.RecordActivity("recognition")
	agg.RecordActivity("unknown_kind")

	assert.Equal(t, 2, agg.EventsAttended)
	assert.Equal(t, 0, agg.CommentsAuthored)
	assert.Equal(t, 1, agg.RecognitionsSent)
}

func TestNewEntry_Validation(t *testing.T) {
	ref := shared.Reference{Type: "event_attendance", ID: "evt-1"}

	_, err := NewEntry("", "user-1", 10, TransactionEarn, ref, "", "test")
	assert.Error(t, err)

	_, err = NewEntry("e1", "", 10, TransactionEarn, ref, "", "test")
	assert.Error(t, err)

	_, err = NewEntry("e1", "user-1", 0, TransactionEarn, ref, "", "test")
	assert.ErrorIs(t, err, shared.ErrZeroPointAmount)

	_, err = NewEntry("e1", "user-1", 10, TransactionType("refund"), ref, "", "test")
	assert.ErrorIs(t, err, shared.ErrUnknownTransaction)

	e, err := NewEntry("e1", "user-1", -15, TransactionRedeem, ref, "coffee voucher", "rewards_shop")
	require.NoError(t, err)
	assert.False(t, e.IsCredit())
	assert.Equal(t, ref, e.Reference())
}
