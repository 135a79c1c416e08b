package entitlement

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sutbot/sutbot/internal/clock"
	"github.com/sutbot/sutbot/internal/config"
	"github.com/sutbot/sutbot/internal/metrics"
)

// SlotManager owns the custom-persona slot arithmetic and the
// membership-driven soft block/unblock transition.
type SlotManager struct {
	store    Store
	personas PersonaStore
	tiers    *TierResolver
	bonus    *GroupBonusResolver
	limits   config.LimitsConfig
	clock    clock.Clock
	sink     TransitionSink
}

func NewSlotManager(store Store, personas PersonaStore, tiers *TierResolver, bonus *GroupBonusResolver, limits config.LimitsConfig, clk clock.Clock, sink TransitionSink) *SlotManager {
	if sink == nil {
		sink = NopSink{}
	}
	return &SlotManager{
		store:    store,
		personas: personas,
		tiers:    tiers,
		bonus:    bonus,
		limits:   limits,
		clock:    clk,
		sink:     sink,
	}
}

// AvailableSlots returns how many custom-persona slots the user owns:
// base(tier) plus one for the group bonus. The observed table is
// {free:0, free+group:1, pro:3, pro+group:4}.
func (m *SlotManager) AvailableSlots(ctx context.Context, userID int64) (int, error) {
	limit, _, _, err := m.slotContext(ctx, userID)
	return limit, err
}

// CanCreate decides a persona-creation request. At the cap, the denial
// reason is the (tier, bonus) cell the user sits in; the four-way split
// drives the caller's upgrade messaging and must stay exact.
func (m *SlotManager) CanCreate(ctx context.Context, userID int64) (CreateDecision, error) {
	limit, tier, inGroup, err := m.slotContext(ctx, userID)
	if err != nil {
		return CreateDecision{}, err
	}

	current, err := m.personas.CountActiveCustom(ctx, userID)
	if err != nil {
		return CreateDecision{}, fmt.Errorf("%w: counting custom personas for %d: %w", ErrStoreUnavailable, userID, err)
	}

	d := CreateDecision{
		Current: current,
		Limit:   limit,
		Tier:    tier,
		InGroup: inGroup,
	}
	if current < limit {
		d.CanCreate = true
		return d, nil
	}

	switch {
	case tier == TierFree && !inGroup:
		d.Reason = ReasonNeedGroupOrPro
	case tier == TierFree && inGroup:
		d.Reason = ReasonNeedPro
	case tier == TierPro && !inGroup:
		d.Reason = ReasonNeedGroup
	default:
		d.Reason = ReasonMaxReached
	}
	return d, nil
}

// StampGroupBonus reports the is_group_bonus value for a persona created
// right now: set for free-tier creators, fixed permanently at creation.
func (m *SlotManager) StampGroupBonus(ctx context.Context, userID int64) (bool, error) {
	tier, err := m.tiers.Resolve(ctx, userID)
	if err != nil {
		return false, err
	}
	return tier.Tier == TierFree, nil
}

// ReconcileOnMembershipChange applies the join/leave transition: leaving
// soft-blocks every active is_group_bonus persona the user owns, joining
// unblocks the same set. The store toggle only touches rows whose flag
// differs, so re-applying a transition is a no-op rather than a
// double-toggle.
func (m *SlotManager) ReconcileOnMembershipChange(ctx context.Context, userID int64, isMember bool) (ReconcileResult, error) {
	if err := m.store.SetMembershipCache(ctx, userID, isMember, m.clock.Now()); err != nil {
		return ReconcileResult{}, fmt.Errorf("%w: caching membership for %d: %w", ErrStoreUnavailable, userID, err)
	}
	m.sink.MembershipChanged(ctx, userID, isMember)

	affected, err := m.personas.SetGroupBonusBlocked(ctx, userID, !isMember)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("%w: toggling bonus personas for %d: %w", ErrStoreUnavailable, userID, err)
	}

	var result ReconcileResult
	if isMember {
		result.Unblocked = int(affected)
		if affected > 0 {
			metrics.PersonasUnblockedTotal.Add(float64(affected))
			m.sink.PersonasUnblocked(ctx, userID, affected)
		}
	} else {
		result.Blocked = int(affected)
		if affected > 0 {
			metrics.PersonasBlockedTotal.Add(float64(affected))
			m.sink.PersonasBlocked(ctx, userID, affected)
		}
	}

	slog.Info("membership reconcile applied",
		"user_id", userID, "is_member", isMember,
		"blocked", result.Blocked, "unblocked", result.Unblocked)
	return result, nil
}

func (m *SlotManager) slotContext(ctx context.Context, userID int64) (limit int, tier Tier, inGroup bool, err error) {
	tr, err := m.tiers.Resolve(ctx, userID)
	if err != nil {
		return 0, "", false, err
	}

	inGroup, err = m.bonus.Eligible(ctx, userID, false)
	if err != nil {
		return 0, "", false, err
	}

	limit = m.limits.SlotsFreeBase
	if tr.Tier == TierPro {
		limit = m.limits.SlotsProBase
	}
	if inGroup {
		limit++
	}
	return limit, tr.Tier, inGroup, nil
}
