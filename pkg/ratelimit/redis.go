package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCooldown allows a key once per cooldown across every process sharing
// the Redis instance. The first caller sets the key with a TTL; later callers
// are refused until it expires.
type RedisCooldown struct {
	client   redis.Cmdable
	prefix   string
	cooldown time.Duration
}

func NewRedisCooldown(client redis.Cmdable, prefix string, cooldown time.Duration) *RedisCooldown {
	if prefix == "" {
		prefix = "cooldown:"
	}
	return &RedisCooldown{client: client, prefix: prefix, cooldown: cooldown}
}

func (c *RedisCooldown) Allow(ctx context.Context, key string) (bool, error) {
	ok, err := c.client.SetNX(ctx, c.prefix+key, 1, c.cooldown).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set cooldown: %w", err)
	}
	return ok, nil
}
