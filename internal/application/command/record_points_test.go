package command

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsehub/pulse-engagement-hub/internal/domain/ledger"
	"github.com/pulsehub/pulse-engagement-hub/internal/domain/notification"
	"github.com/pulsehub/pulse-engagement-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY FAKES
// ══════════════════════════════════════════════════════════════════════════════

type fakeLedgerRepo struct {
	mu         sync.Mutex
	aggregates map[string]*ledger.Aggregate
	entries    []*ledger.Entry
	seq        int64

	// conflictsLeft forces AppendEntry to fail with an optimistic-lock
	// error the given number of times.
	conflictsLeft int
}

func newFakeLedgerRepo() *fakeLedgerRepo {
	return &fakeLedgerRepo{aggregates: map[string]*ledger.Aggregate{}}
}

func (r *fakeLedgerRepo) AppendEntry(_ context.Context, entry *ledger.Entry, agg *ledger.Aggregate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflictsLeft > 0 {
		r.conflictsLeft--
		return shared.ErrAggregateConflict
	}
	r.seq++
	entry.Seq = r.seq
	r.entries = append(r.entries, entry)
	agg.Version++
	r.aggregates[agg.UserID] = agg
	return nil
}

func (r *fakeLedgerRepo) ListEntries(_ context.Context, userID string, opts ledger.ListOptions) ([]*ledger.Entry, error) {
	all, _ := r.ListAllEntries(context.Background(), userID)
	if opts.Offset >= len(all) {
		return nil, nil
	}
	end := opts.Offset + opts.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[opts.Offset:end], nil
}

func (r *fakeLedgerRepo) ListAllEntries(_ context.Context, userID string) ([]*ledger.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*ledger.Entry
	for _, e := range r.entries {
		if e.UserID == userID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (r *fakeLedgerRepo) CountEntries(_ context.Context, userID string) (int, error) {
	all, _ := r.ListAllEntries(context.Background(), userID)
	return len(all), nil
}

func (r *fakeLedgerRepo) FindEntryByReference(_ context.Context, userID, refType, refID string) (*ledger.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.UserID == userID && e.ReferenceType == refType && e.ReferenceID == refID {
			return e, nil
		}
	}
	return nil, shared.ErrEntryNotFound
}

func (r *fakeLedgerRepo) GetOrCreateAggregate(_ context.Context, userID string) (*ledger.Aggregate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if agg, ok := r.aggregates[userID]; ok {
		copied := *agg
		return &copied, nil
	}
	agg := ledger.NewAggregate(userID)
	r.aggregates[userID] = agg
	copied := *agg
	return &copied, nil
}

func (r *fakeLedgerRepo) GetAggregate(_ context.Context, userID string) (*ledger.Aggregate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	agg, ok := r.aggregates[userID]
	if !ok {
		return nil, shared.ErrUserNotFound
	}
	copied := *agg
	return &copied, nil
}

func (r *fakeLedgerRepo) UpdateAggregate(_ context.Context, agg *ledger.Aggregate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflictsLeft > 0 {
		r.conflictsLeft--
		return shared.ErrAggregateConflict
	}
	agg.Version++
	r.aggregates[agg.UserID] = agg
	return nil
}

func (r *fakeLedgerRepo) HaltProcessing(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if agg, ok := r.aggregates[userID]; ok {
		agg.ProcessingHalted = true
	}
	return nil
}

func (r *fakeLedgerRepo) ListAggregates(_ context.Context, _ ledger.ListOptions) ([]*ledger.Aggregate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*ledger.Aggregate
	for _, agg := range r.aggregates {
		copied := *agg
		result = append(result, &copied)
	}
	return result, nil
}

func (r *fakeLedgerRepo) TopByLifetimePoints(_ context.Context, limit int) ([]*ledger.Aggregate, error) {
	all, _ := r.ListAggregates(context.Background(), ledger.ListOptions{})
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *fakePublisher) Publish(event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) PublishAll(events []shared.Event) error {
	for _, e := range events {
		_ = p.Publish(e)
	}
	return nil
}

func (p *fakePublisher) byType(t shared.EventType) []shared.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var result []shared.Event
	for _, e := range p.events {
		if e.EventType() == t {
			result = append(result, e)
		}
	}
	return result
}

type fakeOutbox struct {
	mu      sync.Mutex
	records []*notification.OutboxRecord
}

func (o *fakeOutbox) Enqueue(_ context.Context, rec *notification.OutboxRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = append(o.records, rec)
	return nil
}

func (o *fakeOutbox) ListPending(_ context.Context, limit int) ([]*notification.OutboxRecord, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var result []*notification.OutboxRecord
	for _, r := range o.records {
		if r.Status == notification.OutboxPending || r.Status == notification.OutboxFailed {
			result = append(result, r)
		}
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

func (o *fakeOutbox) Update(_ context.Context, _ *notification.OutboxRecord) error { return nil }

func (o *fakeOutbox) PurgeSent(_ context.Context, _ time.Time) (int, error) { return 0, nil }

// ══════════════════════════════════════════════════════════════════════════════
// RECORD POINTS
// ══════════════════════════════════════════════════════════════════════════════

func TestRecordPoints_FreshUserEarn(t *testing.T) {
	repo := newFakeLedgerRepo()
	pub := &fakePublisher{}
	h := NewRecordPointsHandler(repo, nil, pub)

	res, err := h.Handle(context.Background(), RecordPointsCommand{
		UserID:        "user-1",
		Amount:        25,
		Type:          ledger.TransactionEarn,
		ReferenceType: "event_attendance",
		ReferenceID:   "evt-1",
		ProcessedBy:   "attendance_handler",
	})
	require.NoError(t, err)

	assert.Equal(t, 25, res.NewBalance)
	assert.Equal(t, 25, res.LifetimePoints)
	assert.Equal(t, 1, res.NewLevel)
	assert.False(t, res.LeveledUp)
	assert.Len(t, pub.byType(shared.EventPointsEarned), 1)
}

func TestRecordPoints_LevelTransitionAt100(t *testing.T) {
	repo := newFakeLedgerRepo()
	pub := &fakePublisher{}
	h := NewRecordPointsHandler(repo, nil, pub)

	ctx := context.Background()
	_, err := h.Handle(ctx, RecordPointsCommand{
		UserID: "user-1", Amount: 95, Type: ledger.TransactionEarn,
		ReferenceType: "event_attendance", ReferenceID: "evt-1",
	})
	require.NoError(t, err)

	res, err := h.Handle(ctx, RecordPointsCommand{
		UserID: "user-1", Amount: 10, Type: ledger.TransactionEarn,
		ReferenceType: "survey", ReferenceID: "srv-1",
	})
	require.NoError(t, err)

	assert.Equal(t, 105, res.LifetimePoints)
	assert.Equal(t, 2, res.NewLevel)
	assert.True(t, res.LeveledUp)
	assert.Len(t, pub.byType(shared.EventLevelUp), 1)
}

func TestRecordPoints_ValidationErrors(t *testing.T) {
	h := NewRecordPointsHandler(newFakeLedgerRepo(), nil, &fakePublisher{})
	ctx := context.Background()

	_, err := h.Handle(ctx, RecordPointsCommand{UserID: "", Amount: 10, Type: ledger.TransactionEarn})
	assert.Error(t, err)

	_, err = h.Handle(ctx, RecordPointsCommand{UserID: "u", Amount: 0, Type: ledger.TransactionEarn})
	assert.ErrorIs(t, err, shared.ErrZeroAmount)

	_, err = h.Handle(ctx, RecordPointsCommand{UserID: "u", Amount: 10, Type: "refund"})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestRecordPoints_RetriesOnAggregateConflict(t *testing.T) {
	repo := newFakeLedgerRepo()
	repo.conflictsLeft = 2
	h := NewRecordPointsHandler(repo, nil, &fakePublisher{})

	res, err := h.Handle(context.Background(), RecordPointsCommand{
		UserID: "user-1", Amount: 10, Type: ledger.TransactionEarn,
		ReferenceType: "event_attendance", ReferenceID: "evt-1",
	})
	require.NoError(t, err, "two lost races are within the retry budget")
	assert.Equal(t, 10, res.NewBalance)
	assert.Len(t, repo.entries, 1, "exactly one entry despite retries")
}

func TestRecordPoints_ConflictBudgetExhausted(t *testing.T) {
	repo := newFakeLedgerRepo()
	repo.conflictsLeft = 100
	h := NewRecordPointsHandler(repo, nil, &fakePublisher{})

	_, err := h.Handle(context.Background(), RecordPointsCommand{
		UserID: "user-1", Amount: 10, Type: ledger.TransactionEarn,
		ReferenceType: "event_attendance", ReferenceID: "evt-1",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrOptimisticLock)
	assert.Empty(t, repo.entries)
}

func TestRecordPoints_ReplayReproducesAggregate(t *testing.T) {
	repo := newFakeLedgerRepo()
	h := NewRecordPointsHandler(repo, nil, &fakePublisher{})
	ctx := context.Background()

	commands := []RecordPointsCommand{
		{UserID: "user-1", Amount: 25, Type: ledger.TransactionEarn, ReferenceType: "event_attendance", ReferenceID: "e1"},
		{UserID: "user-1", Amount: 50, Type: ledger.TransactionEarn, ReferenceType: "recognition", ReferenceID: "r1"},
		{UserID: "user-1", Amount: -60, Type: ledger.TransactionRedeem, ReferenceType: "reward", ReferenceID: "w1"},
		{UserID: "user-1", Amount: 100, Type: ledger.TransactionBonus, ReferenceType: "badge_award", ReferenceID: "b1"},
		{UserID: "user-1", Amount: -200, Type: ledger.TransactionRedeem, ReferenceType: "reward", ReferenceID: "w2"},
	}
	for _, cmd := range commands {
		_, err := h.Handle(ctx, cmd)
		require.NoError(t, err)
	}

	stored, err := repo.GetAggregate(ctx, "user-1")
	require.NoError(t, err)

	entries, err := repo.ListAllEntries(ctx, "user-1")
	require.NoError(t, err)

	replayed := ledger.Replay("user-1", entries)
	assert.Equal(t, stored.Balance, replayed.Balance)
	assert.Equal(t, stored.LifetimePoints, replayed.LifetimePoints)
	require.NoError(t, stored.VerifyAgainst(replayed))
}

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE AGGREGATE
// ══════════════════════════════════════════════════════════════════════════════

func TestReconcileAggregate_Consistent(t *testing.T) {
	repo := newFakeLedgerRepo()
	pub := &fakePublisher{}
	record := NewRecordPointsHandler(repo, nil, pub)
	ctx := context.Background()

	_, err := record.Handle(ctx, RecordPointsCommand{
		UserID: "user-1", Amount: 40, Type: ledger.TransactionEarn,
		ReferenceType: "event_attendance", ReferenceID: "e1",
	})
	require.NoError(t, err)

	h := NewReconcileAggregateHandler(repo, pub)
	res, err := h.Handle(ctx, ReconcileAggregateCommand{UserID: "user-1"})
	require.NoError(t, err)
	assert.True(t, res.Consistent)
	assert.Equal(t, 1, res.EntriesReplayed)
}

func TestReconcileAggregate_DivergenceHaltsUser(t *testing.T) {
	repo := newFakeLedgerRepo()
	pub := &fakePublisher{}
	record := NewRecordPointsHandler(repo, nil, pub)
	ctx := context.Background()

	_, err := record.Handle(ctx, RecordPointsCommand{
		UserID: "user-1", Amount: 40, Type: ledger.TransactionEarn,
		ReferenceType: "event_attendance", ReferenceID: "e1",
	})
	require.NoError(t, err)

	// Corrupt the cached aggregate behind the ledger's back.
	repo.mu.Lock()
	repo.aggregates["user-1"].Balance = 999
	repo.mu.Unlock()

	h := NewReconcileAggregateHandler(repo, pub)
	res, err := h.Handle(ctx, ReconcileAggregateCommand{UserID: "user-1"})
	require.Error(t, err)
	assert.True(t, shared.IsInvariantViolation(err))
	assert.False(t, res.Consistent)
	assert.Equal(t, 999, res.StoredBalance)
	assert.Equal(t, 40, res.ReplayedBalance)

	halted, err := repo.GetAggregate(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, halted.ProcessingHalted, "divergence halts automatic processing")
	assert.Len(t, pub.byType(shared.EventInvariantViolated), 1)
}

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE STREAK
// ══════════════════════════════════════════════════════════════════════════════

func TestUpdateStreak_MilestoneQueuesNotification(t *testing.T) {
	repo := newFakeLedgerRepo()
	outbox := &fakeOutbox{}
	h := NewUpdateStreakHandler(repo, outbox, &fakePublisher{})
	ctx := context.Background()

	base := time.Date(2026, time.April, 1, 12, 0, 0, 0, time.UTC)
	var res *UpdateStreakResult
	var err error
	for i := 0; i < 3; i++ {
		res, err = h.Handle(ctx, UpdateStreakCommand{UserID: "user-1", ActivityDate: base.AddDate(0, 0, i)})
		require.NoError(t, err)
	}

	assert.Equal(t, 3, res.StreakDays)
	assert.Equal(t, 3, res.Milestone)
	require.Len(t, outbox.records, 1)
	assert.Equal(t, notification.KindStreakMilestone, outbox.records[0].Kind)
}

func TestUpdateStreak_SameDayIsNoOp(t *testing.T) {
	repo := newFakeLedgerRepo()
	h := NewUpdateStreakHandler(repo, &fakeOutbox{}, &fakePublisher{})
	ctx := context.Background()

	base := time.Date(2026, time.April, 1, 9, 0, 0, 0, time.UTC)
	_, err := h.Handle(ctx, UpdateStreakCommand{UserID: "user-1", ActivityDate: base})
	require.NoError(t, err)

	res, err := h.Handle(ctx, UpdateStreakCommand{UserID: "user-1", ActivityDate: base.Add(6 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, 1, res.StreakDays)
	assert.False(t, res.Changed)
	assert.Empty(t, res.Events)
}

func TestUpdateStreak_GapResetsWithoutBreakFlag(t *testing.T) {
	repo := newFakeLedgerRepo()
	outbox := &fakeOutbox{}
	h := NewUpdateStreakHandler(repo, outbox, &fakePublisher{})
	ctx := context.Background()

	base := time.Date(2026, time.April, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := h.Handle(ctx, UpdateStreakCommand{UserID: "user-1", ActivityDate: base.AddDate(0, 0, i)})
		require.NoError(t, err)
	}

	res, err := h.Handle(ctx, UpdateStreakCommand{UserID: "user-1", ActivityDate: base.AddDate(0, 0, 5)})
	require.NoError(t, err)
	assert.Equal(t, 1, res.StreakDays)
	assert.False(t, res.Broken, "losing a streak of exactly 3 is not significant")

	agg, err := repo.GetAggregate(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, agg.StreakDays)
	assert.Equal(t, 3, agg.BestStreak)
}
