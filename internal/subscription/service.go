package subscription

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sutbot/sutbot/internal/clock"
	"github.com/sutbot/sutbot/internal/config"
	"github.com/sutbot/sutbot/internal/entitlement"
	"github.com/sutbot/sutbot/internal/metrics"
)

type Service struct {
	repo     Repository
	store    entitlement.Store
	personas entitlement.PersonaStore
	tiers    *entitlement.TierResolver
	bonus    *entitlement.GroupBonusResolver
	limits   config.LimitsConfig
	clock    clock.Clock
}

func NewService(repo Repository, store entitlement.Store, personas entitlement.PersonaStore, tiers *entitlement.TierResolver, bonus *entitlement.GroupBonusResolver, limits config.LimitsConfig, clk clock.Clock) *Service {
	return &Service{
		repo:     repo,
		store:    store,
		personas: personas,
		tiers:    tiers,
		bonus:    bonus,
		limits:   limits,
		clock:    clk,
	}
}

// Grant activates or renews a paid subscription and immediately unblocks
// any custom personas that fit back under the larger slot limit.
func (s *Service) Grant(ctx context.Context, req *GrantRequest) (*entitlement.SubscriptionRecord, error) {
	tier, ok := entitlement.ParseTier(req.Tier)
	if !ok {
		return nil, fmt.Errorf("%w: unknown tier %q", entitlement.ErrInvalidRequest, req.Tier)
	}
	if tier != entitlement.TierPro {
		return nil, fmt.Errorf("%w: only %q subscriptions can be granted", entitlement.ErrInvalidRequest, entitlement.TierPro)
	}
	if req.DurationDays <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", entitlement.ErrInvalidRequest)
	}

	now := s.clock.Now()
	expires := now.AddDate(0, 0, req.DurationDays)
	record := &entitlement.SubscriptionRecord{
		UserID:        req.UserID,
		Tier:          tier,
		StartedAt:     now,
		ExpiresAt:     &expires,
		IsActive:      true,
		PaymentMethod: req.PaymentMethod,
		TransactionID: req.TransactionID,
		UpdatedAt:     now,
	}

	if err := s.repo.Upsert(ctx, record); err != nil {
		return nil, fmt.Errorf("%w: storing subscription for %d: %w", entitlement.ErrStoreUnavailable, req.UserID, err)
	}

	limit := s.limits.SlotsProBase
	inGroup, err := s.bonus.Eligible(ctx, req.UserID, false)
	if err != nil {
		return nil, err
	}
	if inGroup {
		limit++
	}

	blocked, unblocked, err := s.personas.ReconcileToLimit(ctx, req.UserID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: reconciling personas for %d: %w", entitlement.ErrStoreUnavailable, req.UserID, err)
	}
	if unblocked > 0 {
		metrics.PersonasUnblockedTotal.Add(float64(unblocked))
	}
	if blocked > 0 {
		metrics.PersonasBlockedTotal.Add(float64(blocked))
	}

	slog.Info("subscription granted",
		"user_id", req.UserID, "tier", tier, "expires_at", expires,
		"personas_unblocked", unblocked)
	return record, nil
}

// Get reports the stored subscription and the effective tier. Resolving
// the tier applies the lazy expiry downgrade, so a stale pro record reads
// back as free here exactly as it would on a limit check.
func (s *Service) Get(ctx context.Context, userID int64) (*Status, error) {
	tr, err := s.tiers.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}

	status := &Status{
		UserID:        userID,
		EffectiveTier: tr.Tier,
		Downgraded:    tr.Downgraded,
	}

	sub, err := s.store.GetSubscription(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: reading subscription for %d: %w", entitlement.ErrStoreUnavailable, userID, err)
	}
	if sub != nil {
		status.ExpiresAt = sub.ExpiresAt
		status.IsActive = sub.IsActive
	}
	return status, nil
}
