package cooldown

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cooldownKeyPrefix = "cooldown:"

// Decision reports a cooldown check. Remaining is zero when the action
// was allowed and the cooldown re-armed.
type Decision struct {
	Allowed   bool          `json:"allowed"`
	Remaining time.Duration `json:"-"`
}

// Limiter enforces a per-chat per-action cooldown with Redis TTL keys.
// The key is armed with SET NX so a concurrent check cannot double-allow.
type Limiter struct {
	rdb    redis.Cmdable
	window time.Duration
}

func NewLimiter(rdb redis.Cmdable, window time.Duration) *Limiter {
	return &Limiter{rdb: rdb, window: window}
}

// CheckAndArm allows the action if no cooldown key exists and arms a new
// window; otherwise it denies and reports the remaining time.
func (l *Limiter) CheckAndArm(ctx context.Context, chatID int64, action string) (Decision, error) {
	key := fmt.Sprintf("%s%d:%s", cooldownKeyPrefix, chatID, action)

	ok, err := l.rdb.SetNX(ctx, key, 1, l.window).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("arming cooldown: %w", err)
	}
	if ok {
		return Decision{Allowed: true}, nil
	}

	ttl, err := l.rdb.TTL(ctx, key).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("reading cooldown ttl: %w", err)
	}
	if ttl < 0 {
		ttl = 0
	}
	return Decision{Allowed: false, Remaining: ttl}, nil
}

// Clear removes an armed cooldown, used by admin tooling.
func (l *Limiter) Clear(ctx context.Context, chatID int64, action string) error {
	key := fmt.Sprintf("%s%d:%s", cooldownKeyPrefix, chatID, action)
	if err := l.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("clearing cooldown: %w", err)
	}
	return nil
}
