// Package jobs contains implementations of scheduled jobs for Pulse Engagement Hub.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pulsehub/pulse-engagement-hub/internal/domain/goal"
	"github.com/pulsehub/pulse-engagement-hub/internal/domain/notification"
	"github.com/pulsehub/pulse-engagement-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADJUST GOAL DIFFICULTY JOB
// ══════════════════════════════════════════════════════════════════════════════

// AdjustGoalDifficultyJob walks all active goals once per day and applies
// the difficulty policy: goals running well ahead of schedule get escalated
// (higher target, next difficulty, bigger reward), goals falling behind get
// a deadline extension. Every applied adjustment is persisted together with
// an audit record, announced on the event bus and queued as a user
// notification. Each page of goals is processed by a bounded worker pool;
// goals belong to different users, so there is no ordering to preserve
// between them.
//
// Concurrent runs are safe: the per-goal version guard makes an overlapping
// pass lose the write, which this job treats as "already adjusted" rather
// than a failure.
type AdjustGoalDifficultyJob struct {
	goalRepo       goal.Repository
	outbox         notification.OutboxRepository
	eventPublisher shared.EventPublisher
	logger         *slog.Logger

	config AdjustGoalDifficultyConfig

	lastStats atomic.Value // *AdjustGoalStats
}

// AdjustGoalDifficultyConfig contains configuration for the adjustment pass.
type AdjustGoalDifficultyConfig struct {
	// BatchSize is the page size for walking active goals.
	BatchSize int

	// Workers is the number of goroutines adjusting goals within a page.
	Workers int

	// Timeout bounds one full pass.
	Timeout time.Duration

	// Enabled allows shipping the job dark. Goal adjustment changes
	// user-visible targets, so it can be toggled without redeploy.
	Enabled func() bool
}

// DefaultAdjustGoalDifficultyConfig returns sensible defaults.
func DefaultAdjustGoalDifficultyConfig() AdjustGoalDifficultyConfig {
	return AdjustGoalDifficultyConfig{
		BatchSize: 200,
		Workers:   4,
		Timeout:   5 * time.Minute,
	}
}

// AdjustGoalStats contains statistics from one adjustment pass.
type AdjustGoalStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Scanned     int
	Escalated   int
	Extended    int
	Skipped     int
	Conflicts   int
	Errors      []error
}

// NewAdjustGoalDifficultyJob creates a new goal adjustment job.
func NewAdjustGoalDifficultyJob(
	goalRepo goal.Repository,
	outbox notification.OutboxRepository,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
	config AdjustGoalDifficultyConfig,
) *AdjustGoalDifficultyJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultAdjustGoalDifficultyConfig().BatchSize
	}
	if config.Workers <= 0 {
		config.Workers = DefaultAdjustGoalDifficultyConfig().Workers
	}

	return &AdjustGoalDifficultyJob{
		goalRepo:       goalRepo,
		outbox:         outbox,
		eventPublisher: eventPublisher,
		logger:         logger,
		config:         config,
	}
}

// Name returns the job name.
func (j *AdjustGoalDifficultyJob) Name() string {
	return "adjust_goal_difficulty"
}

// Description returns a human-readable description.
func (j *AdjustGoalDifficultyJob) Description() string {
	return "Escalates overperforming goals and extends deadlines for struggling ones"
}

// Run executes one adjustment pass over all active goals.
func (j *AdjustGoalDifficultyJob) Run(ctx context.Context) error {
	if j.config.Enabled != nil && !j.config.Enabled() {
		j.logger.Debug("adjust_goal_difficulty disabled, skipping")
		return nil
	}

	startedAt := time.Now()
	stats := &AdjustGoalStats{StartedAt: startedAt}

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	j.logger.Info("starting adjust_goal_difficulty job")

	now := time.Now().UTC()
	offset := 0

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("adjust_goal_difficulty: %w", err)
		}

		goals, err := j.goalRepo.ListActive(ctx, offset, j.config.BatchSize)
		if err != nil {
			return fmt.Errorf("adjust_goal_difficulty: list active goals: %w", err)
		}
		if len(goals) == 0 {
			break
		}

		stats.Scanned += len(goals)
		j.adjustBatch(ctx, goals, now, stats)

		offset += len(goals)
		if len(goals) < j.config.BatchSize {
			break
		}
	}

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastStats.Store(stats)

	j.logger.Info("adjust_goal_difficulty job completed",
		"duration", stats.Duration.String(),
		"scanned", stats.Scanned,
		"escalated", stats.Escalated,
		"extended", stats.Extended,
		"conflicts", stats.Conflicts,
		"errors", len(stats.Errors),
	)

	return nil
}

// LastStats returns statistics from the last completed pass.
func (j *AdjustGoalDifficultyJob) LastStats() *AdjustGoalStats {
	stats, _ := j.lastStats.Load().(*AdjustGoalStats)
	return stats
}

// adjustBatch fans a page of goals out to a worker pool. Each worker keeps
// its own stats so no locking is needed on the hot path; the partial counts
// are merged once the page is drained.
func (j *AdjustGoalDifficultyJob) adjustBatch(ctx context.Context, goals []*goal.Goal, now time.Time, stats *AdjustGoalStats) {
	workers := j.config.Workers
	if workers > len(goals) {
		workers = len(goals)
	}

	queue := make(chan *goal.Goal)
	partial := make([]AdjustGoalStats, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(local *AdjustGoalStats) {
			defer wg.Done()
			for g := range queue {
				j.adjustOne(ctx, g, now, local)
			}
		}(&partial[i])
	}

	for _, g := range goals {
		queue <- g
	}
	close(queue)
	wg.Wait()

	for i := range partial {
		stats.Escalated += partial[i].Escalated
		stats.Extended += partial[i].Extended
		stats.Skipped += partial[i].Skipped
		stats.Conflicts += partial[i].Conflicts
		stats.Errors = append(stats.Errors, partial[i].Errors...)
	}
}

func (j *AdjustGoalDifficultyJob) adjustOne(ctx context.Context, g *goal.Goal, now time.Time, stats *AdjustGoalStats) {
	adj := goal.Decide(g, now)
	if adj == nil {
		stats.Skipped++
		return
	}
	adj.ID = uuid.NewString()

	if err := g.Apply(adj, now); err != nil {
		stats.Errors = append(stats.Errors, err)
		j.logger.Error("failed to apply goal adjustment",
			"goal_id", g.ID,
			"error", err,
		)
		return
	}

	if err := j.goalRepo.ApplyAdjustment(ctx, g, adj); err != nil {
		if errors.Is(err, shared.ErrGoalConflict) {
			// An overlapping run won the version race. The goal is
			// already adjusted; nothing to redo.
			stats.Conflicts++
			j.logger.Debug("goal adjusted by a concurrent run, skipping",
				"goal_id", g.ID,
			)
			return
		}
		stats.Errors = append(stats.Errors, err)
		j.logger.Error("failed to persist goal adjustment",
			"goal_id", g.ID,
			"kind", string(adj.Kind),
			"error", err,
		)
		return
	}

	switch adj.Kind {
	case goal.AdjustmentEscalation:
		stats.Escalated++
		_ = j.eventPublisher.Publish(shared.NewGoalEscalatedEvent(
			g.UserID, g.ID,
			adj.OldTargetValue, adj.NewTargetValue,
			string(adj.OldDifficulty), string(adj.NewDifficulty),
			adj.NewPointsReward,
		))
		j.queueNotification(ctx, g, adj, notification.KindGoalEscalated)

	case goal.AdjustmentExtension:
		stats.Extended++
		_ = j.eventPublisher.Publish(shared.NewGoalExtendedEvent(
			g.UserID, g.ID, adj.OldEndDate, adj.NewEndDate,
		))
		j.queueNotification(ctx, g, adj, notification.KindGoalExtended)
	}

	j.logger.Info("goal adjusted",
		"goal_id", g.ID,
		"user_id", g.UserID,
		"kind", string(adj.Kind),
		"delta", adj.Delta,
	)
}

func (j *AdjustGoalDifficultyJob) queueNotification(ctx context.Context, g *goal.Goal, adj *goal.Adjustment, kind notification.Kind) {
	if j.outbox == nil {
		return
	}

	payload := map[string]any{
		"goal_id":    g.ID,
		"goal_title": g.Title,
		"reason":     adj.Reason,
	}
	switch kind {
	case notification.KindGoalEscalated:
		payload["new_target"] = adj.NewTargetValue
		payload["new_difficulty"] = string(adj.NewDifficulty)
		payload["new_reward"] = adj.NewPointsReward
	case notification.KindGoalExtended:
		payload["new_end_date"] = adj.NewEndDate.Format(time.RFC3339)
	}

	msg, err := notification.NewMessage(g.UserID, kind, payload)
	if err != nil {
		return
	}
	if err := j.outbox.Enqueue(ctx, notification.NewOutboxRecord(uuid.NewString(), msg)); err != nil {
		j.logger.Warn("failed to queue goal notification",
			"goal_id", g.ID,
			"error", err,
		)
	}
}
