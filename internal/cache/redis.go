// Package cache is a thin JSON cache over Redis used for read-heavy
// prompt lookups. A nil *Cache is valid and turns every operation into
// a no-op, which is how the service runs when Redis is unavailable.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned when the key is absent (or caching is disabled).
var ErrMiss = errors.New("cache miss")

type Cache struct {
	client *redis.Client
}

func New(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Get(ctx context.Context, key string, dest interface{}) error {
	if c == nil {
		return ErrMiss
	}
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("cache get %s: %w", key, err)
	}
	return unmarshal(val, dest)
}

func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c == nil {
		return nil
	}
	data, err := marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if c == nil || len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// PromptKey is the cache key for a prompt's latest state.
func PromptKey(id uuid.UUID) string {
	return "prompt:" + id.String()
}

// VersionsKey is the cache key for a prompt's full history.
func VersionsKey(id uuid.UUID) string {
	return "prompt:" + id.String() + ":versions"
}
