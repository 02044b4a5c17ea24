package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisTimeout bounds every individual Redis operation. The cache must never
// become a slow path — a stalled backend is indistinguishable from a miss.
const redisTimeout = 5 * time.Second

// Redis is a Cache backed by a Redis instance. All failures are logged at
// WARN and degraded to misses/no-ops, never returned to callers.
type Redis struct {
	// client is the underlying go-redis client with its own connection pool.
	client *redis.Client

	// log is the structured logger for degraded-operation warnings.
	log *slog.Logger
}

// NewRedis constructs a Redis cache from a redis:// or rediss:// URL.
// The connection is not probed here — a Redis that is down at startup may
// come back later, and the cache degrades gracefully either way. Use Ping
// for health reporting.
func NewRedis(url string, log *slog.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("cache: invalid redis URL: %w", err)
	}
	opts.DialTimeout = redisTimeout
	opts.ReadTimeout = redisTimeout
	opts.WriteTimeout = redisTimeout

	if log == nil {
		log = slog.Default()
	}
	return &Redis{client: redis.NewClient(opts), log: log}, nil
}

// Get returns the cached value for key. Any backend failure is treated as a
// miss and logged.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn("cache: redis get failed", slog.String("key", truncKey(key)), slog.Any("error", err))
		}
		return nil, false
	}
	return val, true
}

// Set stores value under key with the given TTL. Write failures are logged
// and swallowed.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.log.Warn("cache: redis set failed", slog.String("key", truncKey(key)), slog.Any("error", err))
	}
}

// Ping reports whether the Redis backend is reachable. Used by readiness
// probes only — cache operations never depend on it.
func (r *Redis) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache: redis ping: %w", err)
	}
	return nil
}

// Close releases the client's connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

// truncKey shortens a cache key for log output. Keys are hashes — the first
// few bytes identify the entry without flooding the log.
func truncKey(key string) string {
	if len(key) > 16 {
		return key[:16] + "…"
	}
	return key
}
