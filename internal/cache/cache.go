// Package cache is the shared key/value store with expiry used for the
// currency and weather snapshots and the bot sessions.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/khlemanenka99-ai/news-portal/internal/config"
)

// Cache stores values under keys with a time-to-live.
//
// Get reports found=false for keys that were never written or have
// expired. A stored zero or empty value is found.
type Cache interface {
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Delete(ctx context.Context, key string) error
	// TTL returns the remaining lifetime of key. A key without expiry
	// returns 0 and found=true.
	TTL(ctx context.Context, key string) (ttl time.Duration, found bool, err error)
	Close() error
}

// PutJSON stores v encoded as JSON.
func PutJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	return c.Put(ctx, key, data, ttl)
}

// GetJSON decodes the value under key into out.
func GetJSON(ctx context.Context, c Cache, key string, out any) (bool, error) {
	data, found, err := c.Get(ctx, key)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return true, nil
}

// New builds the cache selected by cfg.
func New(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) (Cache, error) {
	switch cfg.Type {
	case "memory", "":
		return NewMemory(), nil
	case "redis":
		return NewRedis(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported cache type %q", cfg.Type)
	}
}
