// Package cachedresults keeps short lived copies of computed API responses in Redis
package cachedresults

import (
	"context"
	"encoding/json"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const keyPrefix = "telemetry:results:"

// Cache is safe to use as a nil pointer, every lookup then misses
type Cache struct {
	Cache *cache.Cache[string]
}

func New(client *redis.Client, ttl time.Duration) *Cache {
	if client == nil || ttl <= 0 {
		return nil
	}

	redisStore := redisstore.NewRedis(client, store.WithExpiration(ttl))

	return &Cache{
		Cache: cache.New[string](redisStore),
	}
}

// Get decodes the cached value for key into value and reports whether it was found
func (c *Cache) Get(ctx context.Context, key string, value any) bool {
	if c == nil {
		return false
	}

	cached, err := c.Cache.Get(ctx, keyPrefix+key)
	if err != nil {
		return false
	}

	if err := json.Unmarshal([]byte(cached), value); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to decode cached result")
		return false
	}

	return true
}

func (c *Cache) Set(ctx context.Context, key string, value any) {
	if c == nil {
		return
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to encode result for cache")
		return
	}

	if err := c.Cache.Set(ctx, keyPrefix+key, string(encoded)); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to cache result")
	}
}

// Fetch returns the cached value for key, computing and storing it on a miss.
// Errors from compute are returned and never cached.
func Fetch[T any](ctx context.Context, c *Cache, key string, compute func(ctx context.Context) (T, error)) (T, error) {
	var value T
	if c.Get(ctx, key, &value) {
		return value, nil
	}

	value, err := compute(ctx)
	if err != nil {
		return value, err
	}

	c.Set(ctx, key, value)

	return value, nil
}
