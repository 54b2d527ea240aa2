package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsehub/pulse-engagement-hub/internal/domain/goal"
	"github.com/pulsehub/pulse-engagement-hub/internal/domain/notification"
	"github.com/pulsehub/pulse-engagement-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY FAKES
// ══════════════════════════════════════════════════════════════════════════════

type fakeGoalRepo struct {
	mu          sync.Mutex
	goals       []*goal.Goal
	adjustments []*goal.Adjustment

	// conflictOn forces ApplyAdjustment to report a version conflict for
	// the given goal ID.
	conflictOn string
}

func (r *fakeGoalRepo) Create(_ context.Context, g *goal.Goal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.goals = append(r.goals, g)
	return nil
}

func (r *fakeGoalRepo) GetByID(_ context.Context, id string) (*goal.Goal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.goals {
		if g.ID == id {
			return g, nil
		}
	}
	return nil, shared.ErrGoalNotFound
}

func (r *fakeGoalRepo) GetByUser(_ context.Context, userID string) ([]*goal.Goal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*goal.Goal
	for _, g := range r.goals {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *fakeGoalRepo) ListActive(_ context.Context, offset, limit int) ([]*goal.Goal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var active []*goal.Goal
	for _, g := range r.goals {
		if g.Status == goal.StatusActive {
			active = append(active, g)
		}
	}
	if offset >= len(active) {
		return nil, nil
	}
	end := offset + limit
	if end > len(active) {
		end = len(active)
	}
	return active[offset:end], nil
}

func (r *fakeGoalRepo) ApplyAdjustment(_ context.Context, g *goal.Goal, adj *goal.Adjustment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g.ID == r.conflictOn {
		return shared.ErrGoalConflict
	}
	r.adjustments = append(r.adjustments, adj)
	g.Version++
	return nil
}

func (r *fakeGoalRepo) UpdateProgress(_ context.Context, g *goal.Goal) error {
	return nil
}

func (r *fakeGoalRepo) ListAdjustments(_ context.Context, goalID string) ([]*goal.Adjustment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*goal.Adjustment
	for _, a := range r.adjustments {
		if a.GoalID == goalID {
			out = append(out, a)
		}
	}
	return out, nil
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
	var out []*notification.OutboxRecord
	for _, rec := range o.records {
		if rec.Status == notification.OutboxPending || rec.Status == notification.OutboxFailed {
			out = append(out, rec)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (o *fakeOutbox) Update(_ context.Context, rec *notification.OutboxRecord) error {
	return nil
}

func (o *fakeOutbox) PurgeSent(_ context.Context, olderThan time.Time) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	kept := o.records[:0]
	purged := 0
	for _, rec := range o.records {
		if rec.Status == notification.OutboxSent && rec.SentAt != nil && rec.SentAt.Before(olderThan) {
			purged++
			continue
		}
		kept = append(kept, rec)
	}
	o.records = kept
	return purged, nil
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

func (p *fakePublisher) eventTypes() []shared.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]shared.EventType, len(p.events))
	for i, e := range p.events {
		types[i] = e.EventType()
	}
	return types
}

// aheadGoal returns an active goal at 90% progress halfway through its
// window, which is far enough ahead of schedule to escalate.
func aheadGoal(id string) *goal.Goal {
	now := time.Now().UTC()
	return &goal.Goal{
		ID:                 id,
		UserID:             "user-1",
		Title:              "Attend events",
		TargetValue:        100,
		CurrentValue:       90,
		ProgressPercentage: 90,
		StartDate:          now.AddDate(0, 0, -10),
		EndDate:            now.AddDate(0, 0, 10),
		Difficulty:         goal.DifficultyMedium,
		PointsReward:       200,
		Status:             goal.StatusActive,
		Version:            1,
	}
}

// behindGoal returns an active goal at 10% progress in the second half of
// its window, which is far enough behind schedule to extend.
func behindGoal(id string) *goal.Goal {
	now := time.Now().UTC()
	return &goal.Goal{
		ID:                 id,
		UserID:             "user-2",
		Title:              "Write comments",
		TargetValue:        100,
		CurrentValue:       10,
		ProgressPercentage: 10,
		StartDate:          now.AddDate(0, 0, -15),
		EndDate:            now.AddDate(0, 0, 5),
		Difficulty:         goal.DifficultyEasy,
		PointsReward:       100,
		Status:             goal.StatusActive,
		Version:            1,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestAdjustGoalDifficultyJob_EscalatesAheadGoal(t *testing.T) {
	repo := &fakeGoalRepo{goals: []*goal.Goal{aheadGoal("goal-1")}}
	outbox := &fakeOutbox{}
	publisher := &fakePublisher{}

	job := NewAdjustGoalDifficultyJob(repo, outbox, publisher, nil, DefaultAdjustGoalDifficultyConfig())
	require.NoError(t, job.Run(context.Background()))

	require.Len(t, repo.adjustments, 1)
	adj := repo.adjustments[0]
	assert.Equal(t, goal.AdjustmentEscalation, adj.Kind)
	assert.Equal(t, goal.DifficultyHard, adj.NewDifficulty)
	assert.Greater(t, adj.NewTargetValue, adj.OldTargetValue)
	assert.NotEmpty(t, adj.ID)

	// The goal object carries the applied changes.
	g := repo.goals[0]
	assert.Equal(t, goal.DifficultyHard, g.Difficulty)
	assert.NotNil(t, g.LastAdjustedAt)

	assert.Contains(t, publisher.eventTypes(), shared.EventGoalEscalated)
	require.Len(t, outbox.records, 1)
	assert.Equal(t, notification.KindGoalEscalated, outbox.records[0].Kind)

	stats := job.LastStats()
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.Escalated)
	assert.Equal(t, 0, stats.Extended)
}

func TestAdjustGoalDifficultyJob_ExtendsBehindGoal(t *testing.T) {
	g := behindGoal("goal-2")
	oldEnd := g.EndDate
	repo := &fakeGoalRepo{goals: []*goal.Goal{g}}
	outbox := &fakeOutbox{}
	publisher := &fakePublisher{}

	job := NewAdjustGoalDifficultyJob(repo, outbox, publisher, nil, DefaultAdjustGoalDifficultyConfig())
	require.NoError(t, job.Run(context.Background()))

	require.Len(t, repo.adjustments, 1)
	adj := repo.adjustments[0]
	assert.Equal(t, goal.AdjustmentExtension, adj.Kind)
	assert.True(t, adj.NewEndDate.After(oldEnd))
	// Extension never changes target or difficulty.
	assert.Equal(t, adj.OldTargetValue, adj.NewTargetValue)
	assert.Equal(t, adj.OldDifficulty, adj.NewDifficulty)

	assert.Contains(t, publisher.eventTypes(), shared.EventGoalExtended)
	require.Len(t, outbox.records, 1)
	assert.Equal(t, notification.KindGoalExtended, outbox.records[0].Kind)
}

func TestAdjustGoalDifficultyJob_ConflictIsSkippedNotFailed(t *testing.T) {
	repo := &fakeGoalRepo{
		goals:      []*goal.Goal{aheadGoal("goal-3")},
		conflictOn: "goal-3",
	}
	publisher := &fakePublisher{}

	job := NewAdjustGoalDifficultyJob(repo, &fakeOutbox{}, publisher, nil, DefaultAdjustGoalDifficultyConfig())
	require.NoError(t, job.Run(context.Background()))

	assert.Empty(t, repo.adjustments)
	assert.Empty(t, publisher.events)

	stats := job.LastStats()
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.Conflicts)
	assert.Empty(t, stats.Errors)
}

func TestAdjustGoalDifficultyJob_CooldownPreventsRepeatAdjustment(t *testing.T) {
	g := aheadGoal("goal-4")
	recently := time.Now().UTC().Add(-24 * time.Hour)
	g.LastAdjustedAt = &recently
	repo := &fakeGoalRepo{goals: []*goal.Goal{g}}

	job := NewAdjustGoalDifficultyJob(repo, &fakeOutbox{}, &fakePublisher{}, nil, DefaultAdjustGoalDifficultyConfig())
	require.NoError(t, job.Run(context.Background()))

	assert.Empty(t, repo.adjustments)
}

func TestAdjustGoalDifficultyJob_DisabledSkipsPass(t *testing.T) {
	repo := &fakeGoalRepo{goals: []*goal.Goal{aheadGoal("goal-5")}}

	cfg := DefaultAdjustGoalDifficultyConfig()
	cfg.Enabled = func() bool { return false }

	job := NewAdjustGoalDifficultyJob(repo, &fakeOutbox{}, &fakePublisher{}, nil, cfg)
	require.NoError(t, job.Run(context.Background()))

	assert.Empty(t, repo.adjustments)
	assert.Nil(t, job.LastStats())
}

func TestAdjustGoalDifficultyJob_OnTrackGoalUntouched(t *testing.T) {
	g := aheadGoal("goal-6")
	g.CurrentValue = 55
	g.ProgressPercentage = 55 // expected at halfway is 50, delta 5

	repo := &fakeGoalRepo{goals: []*goal.Goal{g}}
	job := NewAdjustGoalDifficultyJob(repo, &fakeOutbox{}, &fakePublisher{}, nil, DefaultAdjustGoalDifficultyConfig())
	require.NoError(t, job.Run(context.Background()))

	assert.Empty(t, repo.adjustments)
	stats := job.LastStats()
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.Skipped)
}
