package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pulsehub/pulse-engagement-hub/internal/domain/ledger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REBUILD LEADERBOARD JOB
// ══════════════════════════════════════════════════════════════════════════════

// RebuildLeaderboardJob reconstructs the Redis leaderboard from the
// aggregate table. The cached ranking drifts when incremental score
// updates are lost (Redis restart, failed write after a committed
// transaction); a periodic full rebuild from Postgres makes the cache
// converge back to the source of truth.
type RebuildLeaderboardJob struct {
	ledgerRepo ledger.Repository
	cache      ledger.LeaderboardCache
	logger     *slog.Logger

	config RebuildLeaderboardConfig
}

// RebuildLeaderboardConfig contains configuration for the rebuild.
type RebuildLeaderboardConfig struct {
	// MaxUsers caps the rebuilt set. The leaderboard only ever serves
	// top-N queries, so a bounded set is sufficient.
	MaxUsers int

	// Timeout bounds one rebuild.
	Timeout time.Duration
}

// DefaultRebuildLeaderboardConfig returns sensible defaults.
func DefaultRebuildLeaderboardConfig() RebuildLeaderboardConfig {
	return RebuildLeaderboardConfig{
		MaxUsers: 10000,
		Timeout:  2 * time.Minute,
	}
}

// NewRebuildLeaderboardJob creates a new leaderboard rebuild job.
func NewRebuildLeaderboardJob(
	ledgerRepo ledger.Repository,
	cache ledger.LeaderboardCache,
	logger *slog.Logger,
	config RebuildLeaderboardConfig,
) *RebuildLeaderboardJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.MaxUsers <= 0 {
		config.MaxUsers = DefaultRebuildLeaderboardConfig().MaxUsers
	}

	return &RebuildLeaderboardJob{
		ledgerRepo: ledgerRepo,
		cache:      cache,
		logger:     logger,
		config:     config,
	}
}

// Name returns the job name.
func (j *RebuildLeaderboardJob) Name() string {
	return "rebuild_leaderboard"
}

// Description returns a human-readable description.
func (j *RebuildLeaderboardJob) Description() string {
	return "Rebuilds the Redis leaderboard from stored aggregates"
}

// Run rebuilds the leaderboard in one atomic swap.
func (j *RebuildLeaderboardJob) Run(ctx context.Context) error {
	started := time.Now()

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	aggs, err := j.ledgerRepo.TopByLifetimePoints(ctx, j.config.MaxUsers)
	if err != nil {
		return fmt.Errorf("rebuild_leaderboard: load aggregates: %w", err)
	}

	users := make([]ledger.RankedUser, len(aggs))
	for i, agg := range aggs {
		users[i] = ledger.RankedUser{
			UserID:         agg.UserID,
			LifetimePoints: agg.LifetimePoints,
			Rank:           i + 1,
		}
	}

	if err := j.cache.Rebuild(ctx, users); err != nil {
		return fmt.Errorf("rebuild_leaderboard: rebuild cache: %w", err)
	}

	j.logger.Info("rebuild_leaderboard job completed",
		"users", len(users),
		"duration", time.Since(started).String(),
	)
	return nil
}
