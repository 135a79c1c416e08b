package entitlement

import (
	"context"
	"fmt"

	"github.com/sutbot/sutbot/internal/clock"
	"github.com/sutbot/sutbot/internal/config"
)

// PersonalityLimiter evaluates whether a specific persona may be used for a
// specific action today.
type PersonalityLimiter struct {
	store    Store
	personas PersonaStore
	tiers    *TierResolver
	limits   config.LimitsConfig
	clock    clock.Clock
	sink     TransitionSink
}

func NewPersonalityLimiter(store Store, personas PersonaStore, tiers *TierResolver, limits config.LimitsConfig, clk clock.Clock, sink TransitionSink) *PersonalityLimiter {
	if sink == nil {
		sink = NopSink{}
	}
	return &PersonalityLimiter{
		store:    store,
		personas: personas,
		tiers:    tiers,
		limits:   limits,
		clock:    clk,
		sink:     sink,
	}
}

// Check admits or denies one persona use. A blocked persona is refused for
// everyone, pro included. Pro tier and the neutral persona bypass the
// counter entirely: no PersonaUsage row is read or written on those paths,
// so unbounded use puts no pressure on the store.
func (l *PersonalityLimiter) Check(ctx context.Context, userID int64, persona string, action PersonaAction) (PersonaDecision, error) {
	if _, ok := ParsePersonaAction(string(action)); !ok {
		return PersonaDecision{}, fmt.Errorf("%w: unknown persona action %q", ErrInvalidRequest, action)
	}

	view, err := l.personas.GetPersona(ctx, persona)
	if err != nil {
		return PersonaDecision{}, fmt.Errorf("%w: looking up persona %q: %w", ErrStoreUnavailable, persona, err)
	}
	if view == nil || !view.IsActive {
		return PersonaDecision{}, fmt.Errorf("%w: unknown persona %q", ErrInvalidRequest, persona)
	}

	tier, err := l.tiers.Resolve(ctx, userID)
	if err != nil {
		return PersonaDecision{}, err
	}

	if view.IsBlocked {
		l.sink.PersonaChecked(ctx, userID, persona, string(action), string(tier.Tier), false, string(ReasonBlocked))
		return PersonaDecision{
			Allowed: false,
			Limit:   Unlimited,
			Tier:    tier.Tier,
			Reason:  ReasonBlocked,
		}, nil
	}

	if tier.Tier == TierPro || persona == NeutralPersona {
		l.sink.PersonaChecked(ctx, userID, persona, string(action), string(tier.Tier), true, "")
		return PersonaDecision{
			Allowed: true,
			Limit:   Unlimited,
			Tier:    tier.Tier,
		}, nil
	}

	today := utcDate(l.clock.Now())
	usage, err := l.store.GetPersonaUsage(ctx, userID, persona, today)
	if err != nil {
		return PersonaDecision{}, fmt.Errorf("%w: reading persona usage for %d/%s: %w", ErrStoreUnavailable, userID, persona, err)
	}

	limit := l.limits.PersonaDailyCap
	current := usage.Count(action)
	if current >= limit {
		l.sink.PersonaChecked(ctx, userID, persona, string(action), string(tier.Tier), false, string(ReasonLimitReached))
		return PersonaDecision{
			Allowed: false,
			Current: current,
			Limit:   limit,
			Tier:    tier.Tier,
			Reason:  ReasonLimitReached,
		}, nil
	}

	newCount, err := l.store.IncrementPersonaUsage(ctx, userID, persona, today, action)
	if err != nil {
		return PersonaDecision{}, fmt.Errorf("%w: consuming persona %s/%s for %d: %w", ErrStoreUnavailable, persona, action, userID, err)
	}

	l.sink.PersonaChecked(ctx, userID, persona, string(action), string(tier.Tier), true, "")
	return PersonaDecision{
		Allowed: true,
		Current: newCount,
		Limit:   limit,
		Tier:    tier.Tier,
	}, nil
}
