package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"cryptodata/internal/config"
)

// RedisCache backs the cache contract with Redis
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(cfg config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisCache{client: client}, nil
}

// Get retrieves a cached payload
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	payload, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

// Set stores a payload with an expiration
func (r *RedisCache) Set(ctx context.Context, key string, payload []byte, expiration time.Duration) error {
	return r.client.Set(ctx, key, payload, expiration).Err()
}

// Del removes keys
func (r *RedisCache) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

// CheckRateLimit implements a fixed-window counter per provider
func (r *RedisCache) CheckRateLimit(ctx context.Context, provider string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf("ratelimit:%s:%d", provider, time.Now().UnixNano()/int64(window))
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return false, err
		}
	}
	return count <= int64(limit), nil
}

// Close closes the Redis client
func (r *RedisCache) Close() error {
	return r.client.Close()
}
