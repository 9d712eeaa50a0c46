package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"marrfa-assistant/internal/config"
)

const usageKeyPrefix = "marrfa:usage:"

// NewRedisClient creates a Redis client from configuration
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
}

// UsageLimiter counts anonymous queries per session in Redis. A session's
// counter expires one window after its first query.
type UsageLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewUsageLimiter creates a limiter allowing limit queries per window
func NewUsageLimiter(client *redis.Client, limit int, window time.Duration) *UsageLimiter {
	return &UsageLimiter{client: client, limit: limit, window: window}
}

// Limit returns the number of queries allowed per window
func (u *UsageLimiter) Limit() int {
	return u.limit
}

// Allow counts one query for sessionID and reports whether it is within the
// limit. Queries without a session id are not counted.
func (u *UsageLimiter) Allow(ctx context.Context, sessionID string) (bool, int, error) {
	if sessionID == "" || u.limit <= 0 {
		return true, 0, nil
	}

	key := usageKeyPrefix + sessionID
	n, err := u.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to count usage: %w", err)
	}
	if n == 1 && u.window > 0 {
		if err := u.client.Expire(ctx, key, u.window).Err(); err != nil {
			return false, int(n), fmt.Errorf("failed to set usage expiry: %w", err)
		}
	}
	return int(n) <= u.limit, int(n), nil
}

// Reset clears the counter of sessionID
func (u *UsageLimiter) Reset(ctx context.Context, sessionID string) error {
	if err := u.client.Del(ctx, usageKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("failed to reset usage: %w", err)
	}
	return nil
}
