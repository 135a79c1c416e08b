package entitlement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPersonaLimiter(store *memStore, personas *memPersonaStore, clk *fakeClock) *PersonalityLimiter {
	tiers := newTestResolver(store, personas, &fakeChecker{}, clk, nil)
	return NewPersonalityLimiter(store, personas, tiers, testLimits(), clk, nil)
}

func TestPersonaLimiter_FreeTierCapPerPersona(t *testing.T) {
	store := newMemStore()
	personas := newMemPersonaStore()
	personas.add(PersonaView{Name: "sarcastic", IsActive: true})
	clk := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	limiter := newTestPersonaLimiter(store, personas, clk)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		d, err := limiter.Check(ctx, 42, "sarcastic", PersonaActionChat)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "use %d should be allowed", i)
		assert.Equal(t, i, d.Current)
	}

	d, err := limiter.Check(ctx, 42, "sarcastic", PersonaActionChat)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonLimitReached, d.Reason)
	assert.Equal(t, 5, d.Current)
}

func TestPersonaLimiter_ActionCountersIndependent(t *testing.T) {
	store := newMemStore()
	personas := newMemPersonaStore()
	personas.add(PersonaView{Name: "sarcastic", IsActive: true})
	clk := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	limiter := newTestPersonaLimiter(store, personas, clk)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d, err := limiter.Check(ctx, 42, "sarcastic", PersonaActionChat)
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}

	// Chat is exhausted; summary still has headroom.
	d, err := limiter.Check(ctx, 42, "sarcastic", PersonaActionSummary)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Current)
}

func TestPersonaLimiter_ProBypassWritesNothing(t *testing.T) {
	store := newMemStore()
	personas := newMemPersonaStore()
	personas.add(PersonaView{Name: "sarcastic", IsActive: true})
	clk := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store.subs[42] = proSubscription(42, clk.now, 48*time.Hour)
	limiter := newTestPersonaLimiter(store, personas, clk)
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		d, err := limiter.Check(ctx, 42, "sarcastic", PersonaActionChat)
		require.NoError(t, err)
		require.True(t, d.Allowed)
		require.Equal(t, Unlimited, d.Limit)
	}

	// The bypass path never touched a counter row.
	assert.Empty(t, store.persona)
}

func TestPersonaLimiter_NeutralBypassForFreeTier(t *testing.T) {
	store := newMemStore()
	personas := newMemPersonaStore()
	clk := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	limiter := newTestPersonaLimiter(store, personas, clk)

	for i := 0; i < 100; i++ {
		d, err := limiter.Check(context.Background(), 42, NeutralPersona, PersonaActionChat)
		require.NoError(t, err)
		require.True(t, d.Allowed)
		require.Equal(t, Unlimited, d.Limit)
	}
	assert.Empty(t, store.persona)
}

func TestPersonaLimiter_BlockedDeniedForAllTiers(t *testing.T) {
	store := newMemStore()
	personas := newMemPersonaStore()
	personas.add(PersonaView{Name: "snarky", IsCustom: true, OwnerID: 42, IsActive: true, IsBlocked: true})
	clk := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store.subs[42] = proSubscription(42, clk.now, 48*time.Hour)
	limiter := newTestPersonaLimiter(store, personas, clk)

	// Blocked wins even over the pro bypass.
	d, err := limiter.Check(context.Background(), 42, "snarky", PersonaActionChat)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonBlocked, d.Reason)
	assert.Equal(t, TierPro, d.Tier)
}

func TestPersonaLimiter_DecisionsReachSink(t *testing.T) {
	store := newMemStore()
	personas := newMemPersonaStore()
	personas.add(PersonaView{Name: "snarky", IsCustom: true, OwnerID: 42, IsActive: true, IsBlocked: true})
	clk := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	sink := &captureSink{}
	tiers := newTestResolver(store, personas, &fakeChecker{}, clk, nil)
	limiter := NewPersonalityLimiter(store, personas, tiers, testLimits(), clk, sink)
	ctx := context.Background()

	d, err := limiter.Check(ctx, 42, NeutralPersona, PersonaActionChat)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	d, err = limiter.Check(ctx, 42, "snarky", PersonaActionChat)
	require.NoError(t, err)
	require.False(t, d.Allowed)

	require.Len(t, sink.personaChecks, 2)
	assert.True(t, sink.personaChecks[0].allowed)
	assert.Equal(t, NeutralPersona, sink.personaChecks[0].name)
	blocked := sink.personaChecks[1]
	assert.False(t, blocked.allowed)
	assert.Equal(t, "snarky", blocked.name)
	assert.Equal(t, string(ReasonBlocked), blocked.reason)
}

func TestPersonaLimiter_UnknownPersonaRejected(t *testing.T) {
	store := newMemStore()
	personas := newMemPersonaStore()
	clk := &fakeClock{now: time.Now()}
	limiter := newTestPersonaLimiter(store, personas, clk)

	_, err := limiter.Check(context.Background(), 42, "ghost", PersonaActionChat)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestPersonaLimiter_InactivePersonaRejected(t *testing.T) {
	store := newMemStore()
	personas := newMemPersonaStore()
	personas.add(PersonaView{Name: "retired", IsActive: false})
	clk := &fakeClock{now: time.Now()}
	limiter := newTestPersonaLimiter(store, personas, clk)

	_, err := limiter.Check(context.Background(), 42, "retired", PersonaActionChat)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestPersonaLimiter_UnknownActionRejected(t *testing.T) {
	store := newMemStore()
	personas := newMemPersonaStore()
	clk := &fakeClock{now: time.Now()}
	limiter := newTestPersonaLimiter(store, personas, clk)

	_, err := limiter.Check(context.Background(), 42, NeutralPersona, PersonaAction("dance"))
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
