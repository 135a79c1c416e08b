package entitlement

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sutbot/sutbot/internal/clock"
	"github.com/sutbot/sutbot/internal/config"
)

// GroupBonusResolver decides whether a user currently qualifies for the
// group-membership bonus. It trusts the cached flag inside the fresh window,
// re-checks live otherwise, and degrades to the cached value (up to a hard
// ceiling) when the live check fails.
type GroupBonusResolver struct {
	store   Store
	checker MembershipChecker
	limits  config.LimitsConfig
	clock   clock.Clock
}

func NewGroupBonusResolver(store Store, checker MembershipChecker, limits config.LimitsConfig, clk clock.Clock) *GroupBonusResolver {
	return &GroupBonusResolver{
		store:   store,
		checker: checker,
		limits:  limits,
		clock:   clk,
	}
}

// Eligible reports whether the user holds the group bonus right now.
// Staleness is the total elapsed duration since the cache write, compared
// against the fresh window; comparing any truncated calendar component
// instead silently treats day-old entries as fresh.
func (r *GroupBonusResolver) Eligible(ctx context.Context, userID int64, forceRefresh bool) (bool, error) {
	now := r.clock.Now()

	cache, err := r.store.GetMembershipCache(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("%w: reading membership cache for %d: %w", ErrStoreUnavailable, userID, err)
	}

	if cache != nil && !forceRefresh && now.Sub(cache.CheckedAt) < r.limits.MembershipFreshWindow {
		return cache.IsMember, nil
	}

	isMember, liveErr := r.checker.IsMemberLive(ctx, userID)
	if liveErr != nil {
		// Degrade to the last cached value unless it is older than the
		// ceiling; a bonus grant is the permissive direction, so with no
		// usable cache the answer is no.
		if cache != nil && now.Sub(cache.CheckedAt) < r.limits.MembershipDegradedCeiling {
			slog.Warn("live membership check failed, serving cached value",
				"user_id", userID, "cached_at", cache.CheckedAt, "error", liveErr)
			return cache.IsMember, nil
		}
		slog.Warn("live membership check failed with no usable cache",
			"user_id", userID, "error", liveErr)
		return false, nil
	}

	if err := r.store.SetMembershipCache(ctx, userID, isMember, now); err != nil {
		return false, fmt.Errorf("%w: writing membership cache for %d: %w", ErrStoreUnavailable, userID, err)
	}
	return isMember, nil
}
