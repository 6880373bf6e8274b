package tenanthost

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "tenanthost:"

// RedisCache shares resolution outcomes across replicas. Failures degrade to
// cache misses so a redis outage only costs extra directory lookups.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache creates a redis-backed cache. A zero ttl selects the default.
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

// Get returns the entry for host if present.
func (c *RedisCache) Get(ctx context.Context, host string) (*Entry, bool) {
	data, err := c.client.Get(ctx, redisKeyPrefix+host).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("resolver cache read failed", "host", host, "error", err)
		}
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Warn("resolver cache entry corrupt", "host", host, "error", err)
		return nil, false
	}
	return &entry, true
}

// Set stores an entry for host.
func (c *RedisCache) Set(ctx context.Context, host string, entry *Entry) {
	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.Warn("resolver cache entry marshal failed", "host", host, "error", err)
		return
	}
	if err := c.client.Set(ctx, redisKeyPrefix+host, data, c.ttl).Err(); err != nil {
		c.logger.Warn("resolver cache write failed", "host", host, "error", err)
	}
}

// Invalidate drops the entry for host.
func (c *RedisCache) Invalidate(ctx context.Context, host string) {
	if err := c.client.Del(ctx, redisKeyPrefix+host).Err(); err != nil {
		c.logger.Warn("resolver cache invalidation failed", "host", host, "error", err)
	}
}
