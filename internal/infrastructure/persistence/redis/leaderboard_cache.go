package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/pulsehub/pulse-engagement-hub/internal/domain/ledger"

	"github.com/redis/go-redis/v9"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrUserNotRanked is returned when a user is not in the leaderboard.
	ErrUserNotRanked = errors.New("leaderboard_cache: user not ranked")
)

// keyLeaderboard is the sorted set mapping userID -> lifetime points.
const keyLeaderboard = PrefixLeaderboard + "lifetime"

// LeaderboardCache implements ledger.LeaderboardCache on a Redis Sorted Set.
// Member is the user ID and score is lifetime points, which gives O(log N)
// rank lookups and O(log N + M) top queries.
//
// The set is a cache, not the source of truth: the ledger owns lifetime
// points, and Rebuild periodically replaces the set from aggregates so a
// missed incremental update heals on its own.
type LeaderboardCache struct {
	cache *Cache
}

// NewLeaderboardCache creates a new LeaderboardCache instance.
func NewLeaderboardCache(cache *Cache) *LeaderboardCache {
	return &LeaderboardCache{cache: cache}
}

// UpdateScore updates a user's lifetime points in the leaderboard.
func (l *LeaderboardCache) UpdateScore(ctx context.Context, userID string, lifetimePoints int) error {
	if userID == "" {
		return ErrCacheKeyEmpty
	}

	err := l.cache.Client().ZAdd(ctx, keyLeaderboard, redis.Z{
		Score:  float64(lifetimePoints),
		Member: userID,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to update leaderboard score: %w", err)
	}

	return nil
}

// Top returns the best users with their scores and 1-based ranks.
func (l *LeaderboardCache) Top(ctx context.Context, limit int) ([]ledger.RankedUser, error) {
	if limit <= 0 {
		return []ledger.RankedUser{}, nil
	}

	members, err := l.cache.Client().ZRevRangeWithScores(ctx, keyLeaderboard, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard top: %w", err)
	}

	ranked := make([]ledger.RankedUser, 0, len(members))
	for i, m := range members {
		userID, ok := m.Member.(string)
		if !ok {
			continue
		}
		ranked = append(ranked, ledger.RankedUser{
			UserID:         userID,
			LifetimePoints: int(m.Score),
			Rank:           i + 1,
		})
	}

	return ranked, nil
}

// Rank returns a user's 1-based position in the leaderboard.
func (l *LeaderboardCache) Rank(ctx context.Context, userID string) (int, error) {
	rank, err := l.cache.Client().ZRevRank(ctx, keyLeaderboard, userID).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrUserNotRanked
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query leaderboard rank: %w", err)
	}

	return int(rank) + 1, nil
}

// Rebuild atomically replaces the leaderboard with the given users. Writes
// into a staging key and renames, so readers never observe a half-built set.
func (l *LeaderboardCache) Rebuild(ctx context.Context, users []ledger.RankedUser) error {
	client := l.cache.Client()
	stagingKey := keyLeaderboard + ":staging"

	pipe := client.Pipeline()
	pipe.Del(ctx, stagingKey)

	if len(users) > 0 {
		members := make([]redis.Z, 0, len(users))
		for _, u := range users {
			members = append(members, redis.Z{
				Score:  float64(u.LifetimePoints),
				Member: u.UserID,
			})
		}
		pipe.ZAdd(ctx, stagingKey, members...)
		pipe.Rename(ctx, stagingKey, keyLeaderboard)
	} else {
		pipe.Del(ctx, keyLeaderboard)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to rebuild leaderboard: %w", err)
	}

	return nil
}
