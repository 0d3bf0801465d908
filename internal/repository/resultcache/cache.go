package resultcache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/triad-cloud/newsdex/internal/db"
	"github.com/triad-cloud/newsdex/internal/domain"
)

const keyPrefix = "newsdex:results:"

// store is the consumer interface for the result cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Cache memoizes search results keyed by (text, top_k, threshold).
// Values are stored as JSON; a payload that fails to decode is treated as a
// miss, never evaluated or trusted. The cache degrades to a miss on any store
// error so a cache outage can never fail a search request.
type Cache struct {
	store      store
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a result cache with the given entry TTL.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(s store, ttl time.Duration, cacheTotal *prometheus.CounterVec, logger *zap.Logger) *Cache {
	return &Cache{store: s, ttl: ttl, cacheTotal: cacheTotal, logger: logger}
}

// Get returns the cached results for the query, if present and decodable.
func (c *Cache) Get(ctx context.Context, q domain.Query) ([]domain.Result, bool) {
	key := keyPrefix + q.CacheKey()

	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to read result cache", zap.String("key", key), zap.Error(err))
		}
		c.incCache("miss")
		return nil, false
	}

	var results []domain.Result
	if err := json.Unmarshal(data, &results); err != nil {
		c.logger.Warn("Failed to decode cached results", zap.String("key", key), zap.Error(err))
		c.incCache("miss")
		return nil, false
	}

	c.incCache("hit")
	return results, true
}

// Put stores the results for the query. Write failures are logged and
// swallowed; the caller already has the fresh results.
func (c *Cache) Put(ctx context.Context, q domain.Query, results []domain.Result) {
	key := keyPrefix + q.CacheKey()

	data, err := json.Marshal(results)
	if err != nil {
		c.logger.Warn("Failed to encode results for cache", zap.String("key", key), zap.Error(err))
		return
	}

	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to write result cache", zap.String("key", key), zap.Error(err))
	}
}

func (c *Cache) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}
