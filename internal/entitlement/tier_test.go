package entitlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(store *memStore, personas *memPersonaStore, checker *fakeChecker, clk *fakeClock, sink TransitionSink) *TierResolver {
	bonus := NewGroupBonusResolver(store, checker, testLimits(), clk)
	return NewTierResolver(store, personas, bonus, testLimits(), clk, sink)
}

func proSubscription(userID int64, now time.Time, expiresIn time.Duration) *SubscriptionRecord {
	expires := now.Add(expiresIn)
	return &SubscriptionRecord{
		UserID:    userID,
		Tier:      TierPro,
		StartedAt: now.Add(-time.Hour),
		ExpiresAt: &expires,
		IsActive:  true,
	}
}

func TestTierResolver_NoRecordIsFree(t *testing.T) {
	store := newMemStore()
	clk := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	resolver := newTestResolver(store, newMemPersonaStore(), &fakeChecker{}, clk, nil)

	result, err := resolver.Resolve(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, TierFree, result.Tier)
	assert.False(t, result.Downgraded)
}

func TestTierResolver_ActivePro(t *testing.T) {
	store := newMemStore()
	clk := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store.subs[42] = proSubscription(42, clk.now, 48*time.Hour)

	resolver := newTestResolver(store, newMemPersonaStore(), &fakeChecker{}, clk, nil)

	result, err := resolver.Resolve(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, TierPro, result.Tier)
	assert.False(t, result.Downgraded)
}

func TestTierResolver_LazyDowngradeOnExpiry(t *testing.T) {
	store := newMemStore()
	personas := newMemPersonaStore()
	clk := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store.subs[42] = proSubscription(42, clk.now, time.Hour)

	// Two custom personas created while pro.
	personas.add(PersonaView{Name: "snarky", IsCustom: true, OwnerID: 42, IsActive: true})
	personas.add(PersonaView{Name: "formal", IsCustom: true, OwnerID: 42, IsActive: true})

	sink := &captureSink{}
	resolver := newTestResolver(store, personas, &fakeChecker{}, clk, sink)

	clk.advance(2 * time.Hour)

	result, err := resolver.Resolve(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, TierFree, result.Tier)
	assert.True(t, result.Downgraded)

	// The record is deactivated and both personas are reclaimed: the free
	// slot limit without the bonus is zero.
	assert.False(t, store.subs[42].IsActive)
	assert.True(t, personas.byName["snarky"].IsBlocked)
	assert.True(t, personas.byName["formal"].IsBlocked)
	assert.Equal(t, []int64{42}, sink.downgrades)
	assert.Equal(t, []int64{2}, sink.blockedCounts)

	// A second resolve finds the already-deactivated record: still free, but
	// no second downgrade.
	result, err = resolver.Resolve(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, TierFree, result.Tier)
	assert.False(t, result.Downgraded)
	assert.Equal(t, []int64{42}, sink.downgrades)
}

func TestTierResolver_ExpiryAtExactInstant(t *testing.T) {
	store := newMemStore()
	clk := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	expires := clk.now
	store.subs[42] = &SubscriptionRecord{
		UserID:    42,
		Tier:      TierPro,
		ExpiresAt: &expires,
		IsActive:  true,
	}

	resolver := newTestResolver(store, newMemPersonaStore(), &fakeChecker{}, clk, nil)

	// expires_at == now counts as expired.
	result, err := resolver.Resolve(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, TierFree, result.Tier)
	assert.True(t, result.Downgraded)
}

func TestTierResolver_DowngradeKeepsBonusSlot(t *testing.T) {
	store := newMemStore()
	personas := newMemPersonaStore()
	clk := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store.subs[42] = proSubscription(42, clk.now, -time.Minute)
	store.membership[42] = &MembershipCache{UserID: 42, IsMember: true, CheckedAt: clk.now}

	personas.add(PersonaView{Name: "oldest", IsCustom: true, OwnerID: 42, IsActive: true})
	personas.add(PersonaView{Name: "newest", IsCustom: true, OwnerID: 42, IsActive: true})

	resolver := newTestResolver(store, personas, &fakeChecker{isMember: true}, clk, nil)

	result, err := resolver.Resolve(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, result.Downgraded)

	// Group member keeps one slot: the oldest persona survives.
	assert.False(t, personas.byName["oldest"].IsBlocked)
	assert.True(t, personas.byName["newest"].IsBlocked)
}

func TestTierResolver_DowngradeSurvivesMembershipFailure(t *testing.T) {
	store := newMemStore()
	personas := newMemPersonaStore()
	clk := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store.subs[42] = proSubscription(42, clk.now, -time.Minute)
	store.membershipErr = errors.New("connection refused")

	personas.add(PersonaView{Name: "snarky", IsCustom: true, OwnerID: 42, IsActive: true})

	resolver := newTestResolver(store, personas, &fakeChecker{}, clk, nil)

	// The bonus check cannot complete; the downgrade still lands, reclaiming
	// to the base free limit of zero slots.
	result, err := resolver.Resolve(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, TierFree, result.Tier)
	assert.True(t, result.Downgraded)
	assert.False(t, store.subs[42].IsActive)
	assert.True(t, personas.byName["snarky"].IsBlocked)
}

func TestTierResolver_StoreErrorFailsClosed(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("connection refused")
	clk := &fakeClock{now: time.Now()}
	resolver := newTestResolver(store, newMemPersonaStore(), &fakeChecker{}, clk, nil)

	_, err := resolver.Resolve(context.Background(), 42)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
