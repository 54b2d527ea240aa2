package jobs

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsehub/pulse-engagement-hub/internal/domain/ledger"
)

type fakeLeaderboardCache struct {
	mu       sync.Mutex
	users    []ledger.RankedUser
	rebuilds int
}

func (c *fakeLeaderboardCache) UpdateScore(_ context.Context, userID string, lifetimePoints int) error {
	return nil
}

func (c *fakeLeaderboardCache) Top(_ context.Context, limit int) ([]ledger.RankedUser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.users) > limit {
		return c.users[:limit], nil
	}
	return c.users, nil
}

func (c *fakeLeaderboardCache) Rank(_ context.Context, userID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, u := range c.users {
		if u.UserID == userID {
			return u.Rank, nil
		}
	}
	return 0, nil
}

func (c *fakeLeaderboardCache) Rebuild(_ context.Context, users []ledger.RankedUser) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users = users
	c.rebuilds++
	return nil
}

func TestRebuildLeaderboardJob_RanksByLifetimePoints(t *testing.T) {
	repo := newFakeLedgerRepo()
	creditUser(t, repo, "user-low", 10)
	creditUser(t, repo, "user-high", 300)
	creditUser(t, repo, "user-mid", 70)

	cache := &fakeLeaderboardCache{}
	job := NewRebuildLeaderboardJob(repo, cache, nil, DefaultRebuildLeaderboardConfig())

	require.NoError(t, job.Run(context.Background()))

	require.Len(t, cache.users, 3)
	assert.Equal(t, ledger.RankedUser{UserID: "user-high", LifetimePoints: 300, Rank: 1}, cache.users[0])
	assert.Equal(t, ledger.RankedUser{UserID: "user-mid", LifetimePoints: 70, Rank: 2}, cache.users[1])
	assert.Equal(t, ledger.RankedUser{UserID: "user-low", LifetimePoints: 10, Rank: 3}, cache.users[2])
}

func TestRebuildLeaderboardJob_RespectsMaxUsers(t *testing.T) {
	repo := newFakeLedgerRepo()
	creditUser(t, repo, "user-1", 100)
	creditUser(t, repo, "user-2", 200)
	creditUser(t, repo, "user-3", 300)

	cache := &fakeLeaderboardCache{}
	config := DefaultRebuildLeaderboardConfig()
	config.MaxUsers = 2
	job := NewRebuildLeaderboardJob(repo, cache, nil, config)

	require.NoError(t, job.Run(context.Background()))

	require.Len(t, cache.users, 2)
	assert.Equal(t, "user-3", cache.users[0].UserID)
	assert.Equal(t, "user-2", cache.users[1].UserID)
}

func TestRebuildLeaderboardJob_EmptyStoreRebuildsEmpty(t *testing.T) {
	repo := newFakeLedgerRepo()
	cache := &fakeLeaderboardCache{}
	job := NewRebuildLeaderboardJob(repo, cache, nil, DefaultRebuildLeaderboardConfig())

	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, 1, cache.rebuilds)
	assert.Empty(t, cache.users)
}
