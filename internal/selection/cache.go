package selection

import (
	"context"
	"time"

	"github.com/wonny/factorscore/internal/contracts"
	"github.com/wonny/factorscore/pkg/logger"
	"github.com/wonny/factorscore/pkg/redis"
)

// ScoreStore persists records and answers prior-record lookups
type ScoreStore interface {
	contracts.ScoreWriter
	contracts.PriorScoreReader
}

// ScoreCache is the subset of redis.Cache used for the latest-score entries
type ScoreCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// CachedStore is a write-through Redis cache of the latest record per
// (period, entity) in front of a ScoreStore. Cache misses and cache errors
// fall through to the store; the store stays the source of truth.
type CachedStore struct {
	store  ScoreStore
	cache  ScoreCache
	logger *logger.Logger
}

// NewCachedStore wraps store with the cache
func NewCachedStore(store ScoreStore, cache ScoreCache, log *logger.Logger) *CachedStore {
	return &CachedStore{store: store, cache: cache, logger: log}
}

// Write persists the record then refreshes the cache entry when the record
// is at least as recent as the cached one.
// 캐시 갱신 실패 시 이전 레코드가 prior로 쓰이지 않도록 키를 제거
func (c *CachedStore) Write(ctx context.Context, cs *contracts.CompositeScore) error {
	key := redis.LatestScoreKey(string(cs.PeriodType), cs.EntityID)

	var cached contracts.CompositeScore
	found, err := c.cache.Get(ctx, key, &cached)
	if err == nil && found && cached.AsOfDate.After(cs.AsOfDate) {
		return c.store.Write(ctx, cs)
	}

	c.evict(ctx, key, cs.EntityID)

	if err := c.store.Write(ctx, cs); err != nil {
		return err
	}

	if err := c.cache.Set(ctx, key, RoundedCopy(cs), cacheTTL(cs.PeriodType)); err != nil {
		c.logger.WithError(err).WithField("entity_id", cs.EntityID).Warn("Failed to cache latest score")
		c.evict(ctx, key, cs.EntityID)
	}
	return nil
}

func (c *CachedStore) evict(ctx context.Context, key, entityID string) {
	if err := c.cache.Delete(ctx, key); err != nil {
		c.logger.WithError(err).WithField("entity_id", entityID).Error("Failed to evict cached score")
	}
}

// Prior serves from cache when the cached record is strictly before `before`
func (c *CachedStore) Prior(ctx context.Context, entityID string, period contracts.PeriodType, before time.Time) (*contracts.CompositeScore, error) {
	var cached contracts.CompositeScore
	found, err := c.cache.Get(ctx, redis.LatestScoreKey(string(period), entityID), &cached)
	if err != nil {
		c.logger.WithError(err).WithField("entity_id", entityID).Debug("Score cache read failed")
	}
	if err == nil && found && cached.AsOfDate.Before(before) {
		return &cached, nil
	}

	return c.store.Prior(ctx, entityID, period, before)
}

func cacheTTL(period contracts.PeriodType) time.Duration {
	switch period {
	case contracts.PeriodWeekly:
		return redis.TTLWeekly
	case contracts.PeriodMonthly:
		return redis.TTLLong
	default:
		return redis.TTLDaily
	}
}
