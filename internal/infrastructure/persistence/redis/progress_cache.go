package redis

import (
	"context"

	"github.com/pulsehub/pulse-engagement-hub/internal/application/query"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS CACHE
// ══════════════════════════════════════════════════════════════════════════════

// ProgressCache implements query.ProgressCache on plain Redis strings.
// Snapshots are only cached for TTLProgressCache, which also bounds how
// stale a snapshot can be after a write; no explicit invalidation is done.
type ProgressCache struct {
	cache *Cache
}

// NewProgressCache creates a new ProgressCache instance.
func NewProgressCache(cache *Cache) *ProgressCache {
	return &ProgressCache{cache: cache}
}

// GetProgress returns the cached snapshot for the user, if present.
func (p *ProgressCache) GetProgress(ctx context.Context, userID string) (*query.UserProgressDTO, bool) {
	if userID == "" {
		return nil, false
	}

	var snapshot query.UserProgressDTO
	if err := p.cache.Get(ctx, PrefixProgress+userID, &snapshot); err != nil {
		return nil, false
	}

	return &snapshot, true
}

// SetProgress stores the snapshot. Failures are swallowed: the cache is
// an optimization, the repositories stay the source of truth.
func (p *ProgressCache) SetProgress(ctx context.Context, userID string, snapshot *query.UserProgressDTO) {
	if userID == "" || snapshot == nil {
		return
	}

	_ = p.cache.Set(ctx, PrefixProgress+userID, snapshot, TTLProgressCache)
}
