package otp

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cooldownKeyPrefix = "primetrade:otp:cooldown:"

// Cooldown throttles how often a code may be re-sent to one address.
// A nil Cooldown, or one without a Redis client, never throttles.
type Cooldown struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCooldown(rdb *redis.Client, ttl time.Duration) *Cooldown {
	return &Cooldown{rdb: rdb, ttl: ttl}
}

func (c *Cooldown) enabled() bool {
	return c != nil && c.rdb != nil && c.ttl > 0
}

// Arm starts the cooldown window for email.
func (c *Cooldown) Arm(ctx context.Context, email string) error {
	if !c.enabled() {
		return nil
	}
	if err := c.rdb.Set(ctx, cooldownKeyPrefix+email, "1", c.ttl).Err(); err != nil {
		return fmt.Errorf("cooldown set: %w", err)
	}
	return nil
}

// Remaining returns how long email must still wait; zero means a send is allowed.
func (c *Cooldown) Remaining(ctx context.Context, email string) (time.Duration, error) {
	if !c.enabled() {
		return 0, nil
	}
	left, err := c.rdb.PTTL(ctx, cooldownKeyPrefix+email).Result()
	if err != nil {
		return 0, fmt.Errorf("cooldown pttl: %w", err)
	}
	// -2: no key, -1: key without expiry (not set by Arm).
	if left < 0 {
		return 0, nil
	}
	return left, nil
}
