package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const cacheVersionKey = "catalog:version"

// Cache keeps catalog listings in Redis. Misses for the same key are collapsed so a cold
// cache triggers one database read no matter how many requests arrive together.
// Redis failures are logged and bypassed.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{client: client, ttl: ttl, logger: logger}
}

// Key composes a versioned cache key.
func (c *Cache) Key(ctx context.Context, parts ...string) string {
	joined := "catalog:" + strings.Join(parts, ":")
	if c == nil || c.client == nil {
		return joined
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.logger.Warn("catalog cache version", slog.Any("error", err))
	}
	return fmt.Sprintf("%s:v%d", joined, ver)
}

// FetchJSON loads a cached value into dest or populates it with loader.
func (c *Cache) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("catalog: loader required")
	}
	if c == nil || c.client == nil {
		value, err := loader(ctx)
		if err != nil {
			return err
		}
		return roundTrip(value, dest)
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		payload, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			return payload, nil
		}
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("catalog cache read", slog.String("key", key), slog.Any("error", err))
		}
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.logger.Warn("catalog cache write", slog.String("key", key), slog.Any("error", err))
		}
		return raw, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(v.([]byte), dest)
}

// Bump invalidates every cached listing by moving to a new key version.
func (c *Cache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}

func roundTrip(value, dest any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
