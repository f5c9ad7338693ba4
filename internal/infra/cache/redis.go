package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"qissati/internal/domain"
)

// RedisSettings implements domain.SettingsRepo on top of Redis string keys.
type RedisSettings struct {
	client *redis.Client
	prefix string
}

// NewRedis creates a settings repo. prefix is prepended to every key.
func NewRedis(client *redis.Client, prefix string) *RedisSettings {
	return &RedisSettings{client: client, prefix: prefix}
}

// Get returns the stored value. A missing key is ok=false, not an error.
func (c *RedisSettings) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := c.client.Get(ctx, c.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value without expiry.
func (c *RedisSettings) Set(ctx context.Context, key, value string) error {
	if err := c.client.Set(ctx, c.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

var _ domain.SettingsRepo = (*RedisSettings)(nil)
