package cardmarket

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/padraicbc/mtgvault/cache"
	"github.com/padraicbc/mtgvault/logger"
)

// DefaultDailyLimit is the marketplace's documented request budget per day.
const DefaultDailyLimit = 30000

const counterPrefix = "cardmarket_requests_"

// Gate fronts marketplace calls with a TTL cache and a daily request budget.
type Gate struct {
	store cache.Store
	limit int64
	log   *zap.Logger
	now   func() time.Time
}

// NewGate returns a gate allowing dailyLimit producer calls per UTC day.
func NewGate(store cache.Store, dailyLimit int, log *zap.Logger) *Gate {
	if dailyLimit <= 0 {
		dailyLimit = DefaultDailyLimit
	}
	return &Gate{store: store, limit: int64(dailyLimit), log: logger.OrNop(log), now: time.Now}
}

// Fetch returns the cached value under key, or calls produce and caches its
// result for ttl. produce is not called when the daily budget is spent; the
// gate then returns ErrRateLimitExceeded. Errors from produce are returned
// as is and never cached.
func (g *Gate) Fetch(ctx context.Context, key string, ttl time.Duration, produce func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	val, ok, err := g.store.Get(ctx, key)
	if err != nil {
		g.log.Warn("cache read failed, treating as miss", zap.String("key", key), zap.Error(err))
	} else if ok {
		return val, nil
	}

	n, err := g.store.Increment(ctx, g.counterKey(), 24*time.Hour)
	if err != nil {
		return nil, err
	}
	if n > g.limit {
		g.log.Warn("cardmarket daily request limit reached",
			zap.String("key", key),
			zap.Int64("requests", n),
			zap.Int64("limit", g.limit))
		return nil, ErrRateLimitExceeded
	}

	val, err = produce(ctx)
	if err != nil {
		return nil, err
	}
	if err := g.store.Put(ctx, key, val, ttl); err != nil {
		g.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return val, nil
}

func (g *Gate) counterKey() string {
	return counterPrefix + g.now().UTC().Format("2006-01-02")
}
