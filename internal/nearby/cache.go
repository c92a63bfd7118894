package nearby

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/septivank/city-signals/internal/metrics"
	"github.com/septivank/city-signals/internal/store"
	"go.uber.org/zap"
)

const defaultCacheTTL = 30 * time.Second

// Cached serves repeated searches from redis and delegates misses to next.
// Redis failures never fail a search.
type Cached struct {
	next   Searcher
	rc     *redis.Client
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

func NewCached(next Searcher, rc *redis.Client, ttl time.Duration, logger *zap.Logger) *Cached {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cached{next: next, rc: rc, ttl: ttl, prefix: "nearby", logger: logger}
}

func (c *Cached) Search(ctx context.Context, q Query) (store.Page[Result], error) {
	key := c.key(q)

	if s, err := c.rc.Get(ctx, key).Result(); err == nil {
		var page store.Page[Result]
		if err := json.Unmarshal([]byte(s), &page); err == nil {
			metrics.NearbyCacheHitsTotal.Inc()
			return page, nil
		}
		c.logger.Warn("discarding unreadable cached nearby page", zap.String("key", key))
	} else if err != redis.Nil {
		c.logger.Warn("nearby cache read failed", zap.String("key", key), zap.Error(err))
	}
	metrics.NearbyCacheMissesTotal.Inc()

	page, err := c.next.Search(ctx, q)
	if err != nil {
		return page, err
	}

	if b, err := json.Marshal(page); err == nil {
		if err := c.rc.Set(ctx, key, b, c.ttl).Err(); err != nil {
			c.logger.Warn("nearby cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return page, nil
}

// key keeps full float precision so distinct queries never share an entry
func (c *Cached) key(q Query) string {
	p := q.Pagination()
	return fmt.Sprintf("%s:%g:%g:%g:%d:%d", c.prefix, q.Latitude, q.Longitude, q.Radius, p.Page, p.Limit)
}
