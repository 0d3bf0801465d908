package userledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/triad-cloud/newsdex/internal/db"
	"github.com/triad-cloud/newsdex/internal/domain"
)

const keyPrefix = "newsdex:user:"

// store is the consumer interface for the user ledger (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrBy(ctx context.Context, key string, val int64) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Config holds admission control settings.
type Config struct {
	MaxRequests int
	// Window is the rolling window for request counters. Zero keeps
	// counters for the lifetime of the user record.
	Window time.Duration
	// CacheSize bounds the read-through count cache.
	CacheSize int
	// CacheTTL bounds how long a cached count may lag the store.
	CacheTTL time.Duration
}

// Ledger is per-user admission control backed by atomic counters in the
// store, fronted by a bounded read-through cache.
//
// The cache trades coherency for round-trips: a count read here may lag a
// concurrent increment by up to CacheTTL, so a user racing the cache can be
// admitted once or twice past the nominal ceiling. That staleness is an
// accepted bound, not a bug; Record refreshes the entry with the
// authoritative post-increment value to keep the window short.
type Ledger struct {
	store  store
	limit  int64
	window time.Duration
	cache  *lru.LRU[string, int64]
	logger *zap.Logger
}

// New creates a ledger.
func New(s store, cfg Config, logger *zap.Logger) *Ledger {
	return &Ledger{
		store:  s,
		limit:  int64(cfg.MaxRequests),
		window: cfg.Window,
		cache:  lru.NewLRU[string, int64](cfg.CacheSize, nil, cfg.CacheTTL),
		logger: logger,
	}
}

// Admit returns domain.ErrRateLimited once the user's request count has
// reached the ceiling. Denial is an expected outcome, never an opaque failure.
func (l *Ledger) Admit(ctx context.Context, userID string) error {
	count, err := l.count(ctx, userID)
	if err != nil {
		return fmt.Errorf("read count for user %s: %w: %w", userID, domain.ErrUpstreamUnavailable, err)
	}
	if count >= l.limit {
		return fmt.Errorf("user %s: %w", userID, domain.ErrRateLimited)
	}
	return nil
}

// Record writes through a single increment, creating the user record on
// first sight. When a rolling window is configured, the first request of a
// window starts its expiry clock (EXPIRE NX).
func (l *Ledger) Record(ctx context.Context, userID string) error {
	key := keyPrefix + userID

	n, err := l.store.IncrBy(ctx, key, 1)
	if err != nil {
		return fmt.Errorf("record request for user %s: %w: %w", userID, domain.ErrUpstreamUnavailable, err)
	}

	if l.window > 0 {
		if err := l.store.Expire(ctx, key, l.window, true); err != nil {
			l.logger.Warn("Failed to set counter window", zap.String("user_id", userID), zap.Error(err))
		}
	}

	l.cache.Add(userID, n)
	return nil
}

// count serves the request count from the bounded cache, falling back to the
// store on a miss.
func (l *Ledger) count(ctx context.Context, userID string) (int64, error) {
	if n, ok := l.cache.Get(userID); ok {
		return n, nil
	}

	data, err := l.store.Get(ctx, keyPrefix+userID)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			l.cache.Add(userID, 0)
			return 0, nil
		}
		return 0, err
	}

	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse count %q: %w", string(data), err)
	}

	l.cache.Add(userID, n)
	return n, nil
}
