package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/geocoder89/userhub/internal/domain/user"
	"github.com/redis/go-redis/v9"
)

// ProfileCache caches the public user projection by id. A (nil, nil) return
// from Get is a miss.
type ProfileCache interface {
	Get(ctx context.Context, id string) (*user.Public, error)
	Set(ctx context.Context, p user.Public) error
	Invalidate(ctx context.Context, id string) error
}

const keyProfile = "user:profile:"

// RedisProfileCache stores profiles as JSON with a TTL.
type RedisProfileCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisProfileCache(rdb *redis.Client, ttl time.Duration) *RedisProfileCache {
	return &RedisProfileCache{rdb: rdb, ttl: ttl}
}

func (c *RedisProfileCache) Get(ctx context.Context, id string) (*user.Public, error) {
	b, err := c.rdb.Get(ctx, keyProfile+id).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p user.Public
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *RedisProfileCache) Set(ctx context.Context, p user.Public) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, keyProfile+p.ID, b, c.ttl).Err()
}

// Invalidate removes the cached profile (cache invalidation on write).
func (c *RedisProfileCache) Invalidate(ctx context.Context, id string) error {
	return c.rdb.Del(ctx, keyProfile+id).Err()
}
