package entitlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUsageLimiter(store *memStore, clk *fakeClock) *UsageLimiter {
	tiers := newTestResolver(store, newMemPersonaStore(), &fakeChecker{}, clk, nil)
	return NewUsageLimiter(store, tiers, testLimits(), clk, nil)
}

func TestUsageLimiter_ConsumesUpToCap(t *testing.T) {
	store := newMemStore()
	clk := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	limiter := newTestUsageLimiter(store, clk)
	ctx := context.Background()

	// Free tier summary_dm cap is 2.
	for i := 1; i <= 2; i++ {
		d, err := limiter.CheckAndConsume(ctx, 42, ActionSummaryDM)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "use %d should be allowed", i)
		assert.Equal(t, i, d.Current)
		assert.Equal(t, 2, d.Limit)
	}

	d, err := limiter.CheckAndConsume(ctx, 42, ActionSummaryDM)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonLimitReached, d.Reason)
	assert.Equal(t, 2, d.Current, "a denied check must not consume")

	// The counter did not move past the cap.
	usage, err := store.GetDailyUsage(ctx, 42, utcDate(clk.now))
	require.NoError(t, err)
	assert.Equal(t, 2, usage.SummariesDM)
}

func TestUsageLimiter_ActionsAreIndependent(t *testing.T) {
	store := newMemStore()
	clk := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	limiter := newTestUsageLimiter(store, clk)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := limiter.CheckAndConsume(ctx, 42, ActionSummaryDM)
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}

	// summary_dm exhausted, judge untouched.
	d, err := limiter.CheckAndConsume(ctx, 42, ActionJudge)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Current)
}

func TestUsageLimiter_ProTierUsesProCaps(t *testing.T) {
	store := newMemStore()
	clk := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store.subs[42] = proSubscription(42, clk.now, 48*time.Hour)
	limiter := newTestUsageLimiter(store, clk)

	d, err := limiter.CheckAndConsume(context.Background(), 42, ActionSummaryDM)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, TierPro, d.Tier)
	assert.Equal(t, 20, d.Limit)
}

func TestUsageLimiter_UTCDateRollover(t *testing.T) {
	store := newMemStore()
	clk := &fakeClock{now: time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)}
	limiter := newTestUsageLimiter(store, clk)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := limiter.CheckAndConsume(ctx, 42, ActionSummaryDM)
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}
	d, err := limiter.CheckAndConsume(ctx, 42, ActionSummaryDM)
	require.NoError(t, err)
	require.False(t, d.Allowed)

	// Past midnight UTC the counters start over.
	clk.advance(2 * time.Minute)
	d, err = limiter.CheckAndConsume(ctx, 42, ActionSummaryDM)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Current)
}

func TestUsageLimiter_DecisionsReachSink(t *testing.T) {
	store := newMemStore()
	clk := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	sink := &captureSink{}
	tiers := newTestResolver(store, newMemPersonaStore(), &fakeChecker{}, clk, nil)
	limiter := NewUsageLimiter(store, tiers, testLimits(), clk, sink)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := limiter.CheckAndConsume(ctx, 42, ActionSummaryDM)
		require.NoError(t, err)
	}
	d, err := limiter.CheckAndConsume(ctx, 42, ActionSummaryDM)
	require.NoError(t, err)
	require.False(t, d.Allowed)

	// Every check is reported, the denial included.
	require.Len(t, sink.usageChecks, 3)
	assert.True(t, sink.usageChecks[0].allowed)
	assert.True(t, sink.usageChecks[1].allowed)
	last := sink.usageChecks[2]
	assert.False(t, last.allowed)
	assert.EqualValues(t, 42, last.userID)
	assert.Equal(t, string(ActionSummaryDM), last.action)
	assert.Equal(t, string(TierFree), last.tier)
}

func TestUsageLimiter_StoreErrorSkipsSink(t *testing.T) {
	store := newMemStore()
	clk := &fakeClock{now: time.Now()}
	sink := &captureSink{}
	tiers := newTestResolver(store, newMemPersonaStore(), &fakeChecker{}, clk, nil)
	limiter := NewUsageLimiter(store, tiers, testLimits(), clk, sink)
	store.err = errors.New("connection refused")

	_, err := limiter.CheckAndConsume(context.Background(), 42, ActionMessageDM)
	require.Error(t, err)
	assert.Empty(t, sink.usageChecks, "a failed check is an error, not a decision")
}

func TestUsageLimiter_UnknownActionRejected(t *testing.T) {
	store := newMemStore()
	clk := &fakeClock{now: time.Now()}
	limiter := newTestUsageLimiter(store, clk)

	_, err := limiter.CheckAndConsume(context.Background(), 42, Action("teleport"))
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestUsageLimiter_StoreErrorFailsClosed(t *testing.T) {
	store := newMemStore()
	clk := &fakeClock{now: time.Now()}
	limiter := newTestUsageLimiter(store, clk)
	store.err = errors.New("connection refused")

	_, err := limiter.CheckAndConsume(context.Background(), 42, ActionMessageDM)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestUsageLimiter_StatusDoesNotConsume(t *testing.T) {
	store := newMemStore()
	clk := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	limiter := newTestUsageLimiter(store, clk)
	ctx := context.Background()

	_, err := limiter.CheckAndConsume(ctx, 42, ActionMessageDM)
	require.NoError(t, err)

	usage, caps, tier, err := limiter.Status(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, TierFree, tier)
	assert.Equal(t, 1, usage.MessagesDM)
	assert.Equal(t, 10, caps.MessageDM)

	again, _, _, err := limiter.Status(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, usage.MessagesDM, again.MessagesDM)
}

func TestUsageLimiter_Reset(t *testing.T) {
	store := newMemStore()
	clk := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	limiter := newTestUsageLimiter(store, clk)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := limiter.CheckAndConsume(ctx, 42, ActionSummaryDM)
		require.NoError(t, err)
	}

	require.NoError(t, limiter.Reset(ctx, 42))

	d, err := limiter.CheckAndConsume(ctx, 42, ActionSummaryDM)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Current)
}
