package cache

import (
	"context"
	"time"

	"cryptodata/internal/config"
)

// Cacher is the shared cache contract used by the extraction pipeline:
// short-TTL response caching and the distributed per-provider rate window.
type Cacher interface {
	// Get retrieves a cached payload; ok is false on miss
	Get(ctx context.Context, key string) (payload []byte, ok bool, err error)

	// Set stores a payload with an expiration
	Set(ctx context.Context, key string, payload []byte, expiration time.Duration) error

	// Del removes keys
	Del(ctx context.Context, keys ...string) error

	// CheckRateLimit counts a call against the provider's window and
	// reports whether it is still inside the limit. Shared across
	// processes when backed by Redis.
	CheckRateLimit(ctx context.Context, provider string, limit int, window time.Duration) (bool, error)

	// Close releases backend resources
	Close() error
}

// New creates a cache from configuration: Redis when enabled, otherwise an
// in-process memory cache.
func New(cfg config.RedisConfig) (Cacher, error) {
	if cfg.Enabled {
		return NewRedisCache(cfg)
	}
	return NewMemoryCache(), nil
}
