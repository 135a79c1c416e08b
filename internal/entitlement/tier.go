package entitlement

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sutbot/sutbot/internal/clock"
	"github.com/sutbot/sutbot/internal/config"
	"github.com/sutbot/sutbot/internal/metrics"
)

// TierResolver computes the effective subscription tier at the current
// instant. Expiry is applied lazily on read: the hosting model is
// request-triggered, so there is no background sweep to rely on.
type TierResolver struct {
	store    Store
	personas PersonaStore
	bonus    *GroupBonusResolver
	limits   config.LimitsConfig
	clock    clock.Clock
	sink     TransitionSink
}

func NewTierResolver(store Store, personas PersonaStore, bonus *GroupBonusResolver, limits config.LimitsConfig, clk clock.Clock, sink TransitionSink) *TierResolver {
	if sink == nil {
		sink = NopSink{}
	}
	return &TierResolver{
		store:    store,
		personas: personas,
		bonus:    bonus,
		limits:   limits,
		clock:    clk,
		sink:     sink,
	}
}

// Resolve returns the user's effective tier. A record whose expiry has
// passed is deactivated in the store before free is returned; the Downgraded
// flag is set only on the call that performed the write, so repeated calls
// are idempotent. Store failure propagates; callers fail closed, never
// assume a tier.
func (r *TierResolver) Resolve(ctx context.Context, userID int64) (TierResult, error) {
	sub, err := r.store.GetSubscription(ctx, userID)
	if err != nil {
		return TierResult{}, fmt.Errorf("%w: fetching subscription for %d: %w", ErrStoreUnavailable, userID, err)
	}

	if sub == nil || !sub.IsActive {
		return TierResult{Tier: TierFree}, nil
	}

	now := r.clock.Now()
	if sub.ExpiresAt != nil && !sub.ExpiresAt.After(now) {
		if err := r.downgrade(ctx, userID); err != nil {
			return TierResult{}, err
		}
		return TierResult{Tier: TierFree, Downgraded: true}, nil
	}

	return TierResult{Tier: sub.Tier}, nil
}

// downgrade deactivates the expired record and reclaims persona slots beyond
// the free-tier limit via the same soft lock used for bonus revocation.
func (r *TierResolver) downgrade(ctx context.Context, userID int64) error {
	if err := r.store.DeactivateSubscription(ctx, userID); err != nil {
		return fmt.Errorf("%w: deactivating subscription for %d: %w", ErrStoreUnavailable, userID, err)
	}

	limit := r.limits.SlotsFreeBase
	inGroup, err := r.bonus.Eligible(ctx, userID, false)
	if err != nil {
		// Reclaim to the base limit; the bonus slot comes back on the next
		// successful membership check.
		slog.Warn("membership check failed during downgrade, reclaiming to base slots",
			"user_id", userID, "error", err)
	} else if inGroup {
		limit++
	}

	blocked, _, err := r.personas.ReconcileToLimit(ctx, userID, limit)
	if err != nil {
		return fmt.Errorf("%w: reconciling personas for %d: %w", ErrStoreUnavailable, userID, err)
	}

	slog.Info("subscription expired, downgraded to free",
		"user_id", userID, "slot_limit", limit, "personas_blocked", blocked)
	metrics.DowngradesTotal.Inc()
	r.sink.SubscriptionDowngraded(ctx, userID)
	if blocked > 0 {
		r.sink.PersonasBlocked(ctx, userID, blocked)
	}
	return nil
}
