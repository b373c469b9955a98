// Package cache wraps go-redis with the graceful-degradation contract
// SPEC_FULL.md §3 requires: on underlying unavailability, reads return
// empty and writes return "not cached" rather than failing the caller.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/qiniu/monitorflow/internal/selfmetrics"
)

// Client is the contract every component above the cache depends on.
type Client interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) (cached bool)
	Get(ctx context.Context, key string) (value []byte, found bool)
	Delete(ctx context.Context, key string) (ok bool)
	Scan(ctx context.Context, prefix string) (keys []string)
	Expire(ctx context.Context, key string, ttl time.Duration) (ok bool)
}

// RedisClient is the production Client backed by go-redis.
type RedisClient struct {
	rdb *redis.Client
}

// NewRedisClient constructs a client from addr/password/db, matching the
// teacher's NewRedisClientFromConfig wiring.
func NewRedisClient(addr, password string, db int) *RedisClient {
	return &RedisClient{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (c *RedisClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache set degraded: not cached")
		selfmetrics.CacheFallbacks.Inc()
		return false
	}
	return true
}

func (c *RedisClient) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("key", key).Msg("cache get degraded: returning empty")
			selfmetrics.CacheFallbacks.Inc()
		}
		return nil, false
	}
	return val, true
}

func (c *RedisClient) Delete(ctx context.Context, key string) bool {
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache delete failed")
		selfmetrics.CacheFallbacks.Inc()
		return false
	}
	return true
}

// Scan walks the keyspace with SCAN cursors rather than KEYS, since the
// latter blocks the server for the duration of the walk.
func (c *RedisClient) Scan(ctx context.Context, prefix string) []string {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := c.rdb.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			log.Warn().Err(err).Str("prefix", prefix).Msg("cache scan degraded: partial or empty result")
			selfmetrics.CacheFallbacks.Inc()
			return keys
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys
		}
	}
}

func (c *RedisClient) Expire(ctx context.Context, key string, ttl time.Duration) bool {
	ok, err := c.rdb.Expire(ctx, key, ttl).Result()
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache expire failed")
		return false
	}
	return ok
}

// Ping reports whether the underlying Redis instance is reachable, used by
// tests that skip when Redis is absent.
func (c *RedisClient) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
