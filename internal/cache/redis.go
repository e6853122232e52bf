package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/khlemanenka99-ai/news-portal/internal/config"
)

// Redis is a Cache backed by a Redis server. Keys are namespaced with
// the configured prefix.
type Redis struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) (*Redis, error) {
	const op = "cache/redis/New"

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	return &Redis{
		client: client,
		prefix: cfg.Prefix,
		logger: logger.With("component", "redis_cache"),
	}, nil
}

func (r *Redis) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache/redis/Put %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache/redis/Get %s: %w", key, err)
	}
	return val, true, nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("cache/redis/Delete %s: %w", key, err)
	}
	return nil
}

func (r *Redis) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	d, err := r.client.TTL(ctx, r.prefix+key).Result()
	if err != nil {
		return 0, false, fmt.Errorf("cache/redis/TTL %s: %w", key, err)
	}
	// -2: no such key, -1: key without expiry.
	switch d {
	case -2, -2 * time.Second:
		return 0, false, nil
	case -1, -1 * time.Second:
		return 0, true, nil
	}
	return d, true, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
