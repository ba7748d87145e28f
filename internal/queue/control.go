package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const pausedKey = "bot:paused"

// Flags is the shared control-plane state read by the dispatch worker
// and written by the control surface. The pause flag has no ownership;
// last writer wins.
type Flags interface {
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Paused(ctx context.Context) (bool, error)
}

// Markers provides the set-if-absent-with-expiry primitives behind
// dedupe and cooldown suppression. Markers are destroyed by expiry
// only, never deleted explicitly.
type Markers interface {
	Seen(ctx context.Context, key string) (bool, error)
	MarkSeen(ctx context.Context, key string, ttl time.Duration) error
	// AcquireCooldown sets the marker if absent and reports whether
	// this caller won. Exactly one concurrent caller wins per window.
	AcquireCooldown(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisControl implements Flags and Markers on plain Redis keys.
type RedisControl struct {
	client *redis.Client
}

// NewRedisControl wraps an existing Redis client.
func NewRedisControl(client *redis.Client) *RedisControl {
	return &RedisControl{client: client}
}

// Pause sets the global pause flag. Idempotent.
func (c *RedisControl) Pause(ctx context.Context) error {
	return c.client.Set(ctx, pausedKey, "1", 0).Err()
}

// Resume clears the global pause flag. Idempotent.
func (c *RedisControl) Resume(ctx context.Context) error {
	return c.client.Del(ctx, pausedKey).Err()
}

// Paused reports whether outbound dispatch is halted.
func (c *RedisControl) Paused(ctx context.Context) (bool, error) {
	_, err := c.client.Get(ctx, pausedKey).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", pausedKey, err)
	}
	return true, nil
}

// Seen reports whether a dedupe marker is live.
func (c *RedisControl) Seen(ctx context.Context, key string) (bool, error) {
	_, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	return true, nil
}

// MarkSeen writes a dedupe marker with the given lifetime.
func (c *RedisControl) MarkSeen(ctx context.Context, key string, ttl time.Duration) error {
	return c.client.Set(ctx, key, "1", ttl).Err()
}

// AcquireCooldown sets the marker if absent; first writer wins.
func (c *RedisControl) AcquireCooldown(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	won, err := c.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", key, err)
	}
	return won, nil
}
