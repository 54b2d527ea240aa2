package jobs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsehub/pulse-engagement-hub/internal/application/command"
	"github.com/pulsehub/pulse-engagement-hub/internal/domain/ledger"
)

func creditUser(t *testing.T, repo *fakeLedgerRepo, userID string, amount int) {
	t.Helper()
	handler := command.NewRecordPointsHandler(repo, nil, &fakePublisher{})
	_, err := handler.Handle(context.Background(), command.RecordPointsCommand{
		UserID:      userID,
		Amount:      amount,
		Type:        ledger.TransactionEarn,
		Description: "Test credit",
		ProcessedBy: "test",
	})
	require.NoError(t, err)
}

func TestVerifyAggregatesJob_ConsistentAggregatesPass(t *testing.T) {
	repo := newFakeLedgerRepo()
	creditUser(t, repo, "user-1", 50)
	creditUser(t, repo, "user-2", 120)

	publisher := &fakePublisher{}
	reconciler := command.NewReconcileAggregateHandler(repo, publisher)
	job := NewVerifyAggregatesJob(repo, reconciler, nil, DefaultVerifyAggregatesConfig())

	require.NoError(t, job.Run(context.Background()))

	stats := job.LastStats()
	require.NotNil(t, stats)
	assert.Equal(t, 2, stats.Checked)
	assert.Equal(t, 2, stats.Consistent)
	assert.Zero(t, stats.Divergent)
	assert.Empty(t, stats.Errors)
	assert.Empty(t, publisher.events)
}

func TestVerifyAggregatesJob_DivergentAggregateIsHalted(t *testing.T) {
	repo := newFakeLedgerRepo()
	creditUser(t, repo, "user-1", 50)

	// Corrupt the projection behind the ledger's back.
	repo.aggregates["user-1"].Balance += 100

	publisher := &fakePublisher{}
	reconciler := command.NewReconcileAggregateHandler(repo, publisher)
	job := NewVerifyAggregatesJob(repo, reconciler, nil, DefaultVerifyAggregatesConfig())

	require.NoError(t, job.Run(context.Background()))

	stats := job.LastStats()
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.Checked)
	assert.Equal(t, 1, stats.Divergent)
	assert.Zero(t, stats.Consistent)

	// The user is halted, not silently corrected.
	agg, err := repo.GetAggregate(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, agg.ProcessingHalted)
	assert.Equal(t, 150, agg.Balance)

	require.Len(t, publisher.events, 1)
}

func TestVerifyAggregatesJob_EmptyStoreIsNoop(t *testing.T) {
	repo := newFakeLedgerRepo()
	reconciler := command.NewReconcileAggregateHandler(repo, &fakePublisher{})
	job := NewVerifyAggregatesJob(repo, reconciler, nil, DefaultVerifyAggregatesConfig())

	require.NoError(t, job.Run(context.Background()))

	stats := job.LastStats()
	require.NotNil(t, stats)
	assert.Zero(t, stats.Checked)
}
