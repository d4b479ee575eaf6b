package moderation

import (
	"context"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// SharedScores is a cache tier shared between bot instances.
type SharedScores interface {
	GetScore(ctx context.Context, fingerprint string) (float64, bool, error)
	SetScore(ctx context.Context, fingerprint string, score float64) error
}

// CacheStats is a snapshot of the score cache usage.
type CacheStats struct {
	Size     int
	Capacity int
	Hits     uint64
	Misses   uint64
}

// HitRatio returns the share of lookups served from the cache.
func (s CacheStats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}

	return float64(s.Hits) / float64(total)
}

// ScoreCache memoizes classifier scores by message fingerprint.
// The local tier is a bounded LRU. The optional shared tier is best effort:
// its failures are logged and treated as misses.
type ScoreCache struct {
	local    *lru.Cache[string, float64]
	shared   SharedScores
	capacity int
	hits     atomic.Uint64
	misses   atomic.Uint64
	logger   *zap.Logger
}

// NewScoreCache creates a score cache holding at most size entries.
// shared may be nil.
func NewScoreCache(size int, shared SharedScores, logger *zap.Logger) (*ScoreCache, error) {
	local, err := lru.New[string, float64](size)
	if err != nil {
		return nil, newError(KindConfigurationError, "create score cache", fmt.Errorf("cache_size %d: %w", size, err))
	}

	return &ScoreCache{
		local:    local,
		shared:   shared,
		capacity: size,
		logger:   logger.Named("score_cache"),
	}, nil
}

// Lookup returns the locally cached score of a fingerprint and refreshes its recency.
func (c *ScoreCache) Lookup(fingerprint string) (float64, bool) {
	return c.local.Get(fingerprint)
}

// Insert stores a score locally, evicting the least recently used entry when full.
func (c *ScoreCache) Insert(fingerprint string, score float64) {
	c.local.Add(fingerprint, score)
}

// Fetch looks a fingerprint up in the local tier, then in the shared tier.
// A shared hit is copied into the local tier.
func (c *ScoreCache) Fetch(ctx context.Context, fingerprint string) (float64, bool) {
	if score, ok := c.Lookup(fingerprint); ok {
		c.hits.Add(1)
		return score, true
	}

	if c.shared != nil {
		score, ok, err := c.shared.GetScore(ctx, fingerprint)
		if err != nil {
			c.logger.Warn("Shared score lookup failed", zap.Error(err))
		} else if ok {
			c.Insert(fingerprint, score)
			c.hits.Add(1)
			return score, true
		}
	}

	c.misses.Add(1)

	return 0, false
}

// Store inserts a score into both tiers.
func (c *ScoreCache) Store(ctx context.Context, fingerprint string, score float64) {
	c.Insert(fingerprint, score)

	if c.shared != nil {
		if err := c.shared.SetScore(ctx, fingerprint, score); err != nil {
			c.logger.Warn("Shared score insert failed", zap.Error(err))
		}
	}
}

// Len returns the number of locally cached scores.
func (c *ScoreCache) Len() int {
	return c.local.Len()
}

// Capacity returns the maximum number of locally cached scores.
func (c *ScoreCache) Capacity() int {
	return c.capacity
}

// Stats returns a snapshot of the cache usage.
func (c *ScoreCache) Stats() CacheStats {
	return CacheStats{
		Size:     c.Len(),
		Capacity: c.capacity,
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
	}
}
