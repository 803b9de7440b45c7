package slots

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

// Cache stores resolved slot lists per host. Misses and backend failures look the same to callers.
type Cache interface {
	Get(ctx context.Context, hostID uint, key string) ([]Slot, bool)
	Set(ctx context.Context, hostID uint, key string, slots []Slot)
	// Invalidate drops every cached list of the host.
	Invalidate(ctx context.Context, hostID uint)
}

type NoopCache struct{}

func (NoopCache) Get(context.Context, uint, string) ([]Slot, bool) { return nil, false }
func (NoopCache) Set(context.Context, uint, string, []Slot)        {}
func (NoopCache) Invalidate(context.Context, uint)                 {}

// RedisCache namespaces keys by a per-host generation counter; invalidation bumps the counter
// and lets the stale entries expire.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func NewRedisCache(client *redis.Client, ttl time.Duration, log *slog.Logger) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, log: log}
}

func generationKey(hostID uint) string {
	return fmt.Sprintf("slots:gen:%d", hostID)
}

func (c *RedisCache) generation(ctx context.Context, hostID uint) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey(hostID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *RedisCache) key(ctx context.Context, hostID uint, key string) (string, error) {
	gen, err := c.generation(ctx, hostID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("slots:%d:%d:%s", hostID, gen, key), nil
}

func (c *RedisCache) Get(ctx context.Context, hostID uint, key string) ([]Slot, bool) {
	full, err := c.key(ctx, hostID, key)
	if err != nil {
		c.log.Warn("slot cache generation lookup failed", "host_id", hostID, "error", err)
		return nil, false
	}
	raw, err := c.client.Get(ctx, full).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("slot cache read failed", "key", full, "error", err)
		}
		return nil, false
	}
	var slots []Slot
	if err := json.Unmarshal(raw, &slots); err != nil {
		c.log.Warn("slot cache entry corrupt", "key", full, "error", err)
		return nil, false
	}
	return slots, true
}

func (c *RedisCache) Set(ctx context.Context, hostID uint, key string, slots []Slot) {
	full, err := c.key(ctx, hostID, key)
	if err != nil {
		c.log.Warn("slot cache generation lookup failed", "host_id", hostID, "error", err)
		return
	}
	raw, err := json.Marshal(slots)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, full, raw, c.ttl).Err(); err != nil {
		c.log.Warn("slot cache write failed", "key", full, "error", err)
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, hostID uint) {
	if err := c.client.Incr(ctx, generationKey(hostID)).Err(); err != nil {
		c.log.Warn("slot cache invalidation failed", "host_id", hostID, "error", err)
	}
}
