package jobs

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsehub/pulse-engagement-hub/internal/application/command"
	"github.com/pulsehub/pulse-engagement-hub/internal/domain/badge"
	"github.com/pulsehub/pulse-engagement-hub/internal/domain/ledger"
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
}

func newFakeLedgerRepo() *fakeLedgerRepo {
	return &fakeLedgerRepo{aggregates: map[string]*ledger.Aggregate{}}
}

func (r *fakeLedgerRepo) AppendEntry(_ context.Context, entry *ledger.Entry, agg *ledger.Aggregate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	entry.Seq = r.seq
	r.entries = append(r.entries, entry)
	agg.Version++
	r.aggregates[agg.UserID] = agg
	return nil
}

func (r *fakeLedgerRepo) ListEntries(_ context.Context, userID string, opts ledger.ListOptions) ([]*ledger.Entry, error) {
	return r.ListAllEntries(context.Background(), userID)
}

func (r *fakeLedgerRepo) ListAllEntries(_ context.Context, userID string) ([]*ledger.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*ledger.Entry
	for _, e := range r.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
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
	agg.Version++
	r.aggregates[agg.UserID] = agg
	return nil
}

func (r *fakeLedgerRepo) HaltProcessing(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	agg, ok := r.aggregates[userID]
	if !ok {
		return shared.ErrUserNotFound
	}
	agg.ProcessingHalted = true
	return nil
}

func (r *fakeLedgerRepo) ListAggregates(_ context.Context, opts ledger.ListOptions) ([]*ledger.Aggregate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*ledger.Aggregate
	for _, agg := range r.aggregates {
		out = append(out, agg)
	}
	return out, nil
}

func (r *fakeLedgerRepo) TopByLifetimePoints(_ context.Context, limit int) ([]*ledger.Aggregate, error) {
	aggs, _ := r.ListAggregates(context.Background(), ledger.ListOptions{})
	sort.Slice(aggs, func(i, j int) bool {
		return aggs[i].LifetimePoints > aggs[j].LifetimePoints
	})
	if len(aggs) > limit {
		aggs = aggs[:limit]
	}
	return aggs, nil
}

type fakeBadgeRepo struct {
	mu     sync.Mutex
	awards []*badge.Award
}

func (r *fakeBadgeRepo) CreateIfAbsent(_ context.Context, award *badge.Award) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.awards {
		if a.UserID == award.UserID && a.BadgeID == award.BadgeID {
			return shared.ErrAwardExists
		}
	}
	r.awards = append(r.awards, award)
	return nil
}

func (r *fakeBadgeRepo) GetByUser(_ context.Context, userID string) ([]*badge.Award, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*badge.Award
	for _, a := range r.awards {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeBadgeRepo) OwnedSet(_ context.Context, userID string) (map[string]bool, error) {
	awards, _ := r.GetByUser(context.Background(), userID)
	owned := make(map[string]bool, len(awards))
	for _, a := range awards {
		owned[a.BadgeID] = true
	}
	return owned, nil
}

func (r *fakeBadgeRepo) SetBonusEntry(_ context.Context, awardID, entryID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.awards {
		if a.ID == awardID {
			a.BonusEntryID = entryID
			return nil
		}
	}
	return shared.ErrBadgeNotFound
}

func (r *fakeBadgeRepo) ListWithoutBonus(_ context.Context, limit int) ([]*badge.Award, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*badge.Award
	for _, a := range r.awards {
		if !a.HasBonus() {
			out = append(out, a)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeBadgeRepo) CountByUser(_ context.Context, userID string) (int, error) {
	awards, _ := r.GetByUser(context.Background(), userID)
	return len(awards), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestReconcileBonusesJob_RecordsMissingBonus(t *testing.T) {
	ledgerRepo := newFakeLedgerRepo()
	def, ok := badge.Lookup("team_player")
	require.True(t, ok)

	badgeRepo := &fakeBadgeRepo{}
	award := badge.NewAward("award-1", "user-1", def, "test")
	require.NoError(t, badgeRepo.CreateIfAbsent(context.Background(), award))

	recordPoints := command.NewRecordPointsHandler(ledgerRepo, nil, &fakePublisher{})
	job := NewReconcileBonusesJob(badgeRepo, ledgerRepo, recordPoints, nil, DefaultReconcileBonusesConfig())

	require.NoError(t, job.Run(context.Background()))

	// The bonus entry exists and is linked to the award.
	entry, err := ledgerRepo.FindEntryByReference(context.Background(), "user-1", "badge_award", "award-1")
	require.NoError(t, err)
	assert.Equal(t, def.Tier.Bonus(), entry.Amount)
	assert.Equal(t, ledger.TransactionBonus, entry.Type)
	assert.Equal(t, entry.ID, award.BonusEntryID)

	agg, err := ledgerRepo.GetAggregate(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, def.Tier.Bonus(), agg.Balance)
}

func TestReconcileBonusesJob_RelinksExistingEntry(t *testing.T) {
	ledgerRepo := newFakeLedgerRepo()
	def, ok := badge.Lookup("first_event")
	require.True(t, ok)

	badgeRepo := &fakeBadgeRepo{}
	award := badge.NewAward("award-2", "user-2", def, "test")
	require.NoError(t, badgeRepo.CreateIfAbsent(context.Background(), award))

	// The bonus was recorded earlier but the link write was lost.
	recordPoints := command.NewRecordPointsHandler(ledgerRepo, nil, &fakePublisher{})
	res, err := recordPoints.Handle(context.Background(), command.RecordPointsCommand{
		UserID:        "user-2",
		Amount:        def.Tier.Bonus(),
		Type:          ledger.TransactionBonus,
		ReferenceType: "badge_award",
		ReferenceID:   "award-2",
		Description:   "Bonus",
		ProcessedBy:   "badge_engine",
	})
	require.NoError(t, err)

	job := NewReconcileBonusesJob(badgeRepo, ledgerRepo, recordPoints, nil, DefaultReconcileBonusesConfig())
	require.NoError(t, job.Run(context.Background()))

	// Relinked, not double-credited.
	assert.Equal(t, res.EntryID, award.BonusEntryID)
	entries, err := ledgerRepo.ListAllEntries(context.Background(), "user-2")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestReconcileBonusesJob_NothingToRepair(t *testing.T) {
	ledgerRepo := newFakeLedgerRepo()
	badgeRepo := &fakeBadgeRepo{}

	recordPoints := command.NewRecordPointsHandler(ledgerRepo, nil, &fakePublisher{})
	job := NewReconcileBonusesJob(badgeRepo, ledgerRepo, recordPoints, nil, DefaultReconcileBonusesConfig())

	require.NoError(t, job.Run(context.Background()))
	assert.Empty(t, ledgerRepo.entries)
}
