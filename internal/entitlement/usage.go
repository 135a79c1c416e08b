package entitlement

import (
	"context"
	"fmt"

	"github.com/sutbot/sutbot/internal/clock"
	"github.com/sutbot/sutbot/internal/config"
)

// UsageLimiter evaluates the generic per-action daily quotas.
type UsageLimiter struct {
	store  Store
	tiers  *TierResolver
	limits config.LimitsConfig
	clock  clock.Clock
	sink   TransitionSink
}

func NewUsageLimiter(store Store, tiers *TierResolver, limits config.LimitsConfig, clk clock.Clock, sink TransitionSink) *UsageLimiter {
	if sink == nil {
		sink = NopSink{}
	}
	return &UsageLimiter{
		store:  store,
		tiers:  tiers,
		limits: limits,
		clock:  clk,
		sink:   sink,
	}
}

// CheckAndConsume admits the action if today's counter is under the tier's
// cap and applies exactly one atomic increment on admission. A denied call
// mutates nothing. Concurrent same-user calls may admit slightly past the
// cap; they can never double-charge, because the store increment is a single
// per-row upsert.
func (l *UsageLimiter) CheckAndConsume(ctx context.Context, userID int64, action Action) (UsageDecision, error) {
	if _, ok := ParseAction(string(action)); !ok {
		return UsageDecision{}, fmt.Errorf("%w: unknown action %q", ErrInvalidRequest, action)
	}

	tier, err := l.tiers.Resolve(ctx, userID)
	if err != nil {
		return UsageDecision{}, err
	}

	today := utcDate(l.clock.Now())
	limit := capFor(l.limits, tier.Tier, action)

	usage, err := l.store.GetDailyUsage(ctx, userID, today)
	if err != nil {
		return UsageDecision{}, fmt.Errorf("%w: reading daily usage for %d: %w", ErrStoreUnavailable, userID, err)
	}

	current := usage.Count(action)
	if current >= limit {
		l.sink.UsageChecked(ctx, userID, string(action), string(tier.Tier), false, current, limit)
		return UsageDecision{
			Allowed: false,
			Current: current,
			Limit:   limit,
			Tier:    tier.Tier,
			Reason:  ReasonLimitReached,
		}, nil
	}

	newCount, err := l.store.IncrementDailyUsage(ctx, userID, today, action)
	if err != nil {
		return UsageDecision{}, fmt.Errorf("%w: consuming %s for %d: %w", ErrStoreUnavailable, action, userID, err)
	}

	l.sink.UsageChecked(ctx, userID, string(action), string(tier.Tier), true, newCount, limit)
	return UsageDecision{
		Allowed: true,
		Current: newCount,
		Limit:   limit,
		Tier:    tier.Tier,
	}, nil
}

// Status reads today's counters against the tier's caps without consuming.
func (l *UsageLimiter) Status(ctx context.Context, userID int64) (DailyUsage, config.ActionCaps, Tier, error) {
	tier, err := l.tiers.Resolve(ctx, userID)
	if err != nil {
		return DailyUsage{}, config.ActionCaps{}, "", err
	}

	usage, err := l.store.GetDailyUsage(ctx, userID, utcDate(l.clock.Now()))
	if err != nil {
		return DailyUsage{}, config.ActionCaps{}, "", fmt.Errorf("%w: reading daily usage for %d: %w", ErrStoreUnavailable, userID, err)
	}

	caps := l.limits.Free
	if tier.Tier == TierPro {
		caps = l.limits.Pro
	}
	return usage, caps, tier.Tier, nil
}

// Reset clears today's counters for a user (admin operation).
func (l *UsageLimiter) Reset(ctx context.Context, userID int64) error {
	if err := l.store.ResetDailyUsage(ctx, userID, utcDate(l.clock.Now())); err != nil {
		return fmt.Errorf("%w: resetting daily usage for %d: %w", ErrStoreUnavailable, userID, err)
	}
	return nil
}
