package retrieve

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// AnswerCacheTTL bounds how long a cached Ask answer is served before the
// pipeline re-runs retrieval and generation for that query.
const AnswerCacheTTL = 10 * time.Minute

// AnswerCache is an optional, best-effort cache for Answer results keyed by
// query text. A nil Pipeline.Cache disables caching entirely.
type AnswerCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// RedisAnswerCache is a Redis-backed AnswerCache.
type RedisAnswerCache struct {
	client *redis.Client
}

// NewRedisAnswerCache dials addr and pings it to validate the connection.
func NewRedisAnswerCache(addr string) (*RedisAnswerCache, error) {
	c := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisAnswerCache{client: c}, nil
}

// Get returns the cached value, or ok=false when absent.
func (c *RedisAnswerCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Set stores value under key with the given TTL.
func (c *RedisAnswerCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// Close releases the underlying Redis connection.
func (c *RedisAnswerCache) Close() error { return c.client.Close() }

// cacheKey hashes a query so arbitrary user text becomes a safe cache key.
func cacheKey(query string) string {
	sum := sha256.Sum256([]byte(query))
	return "ragforge:answer:" + hex.EncodeToString(sum[:])
}
