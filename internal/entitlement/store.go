package entitlement

import (
	"context"
	"time"
)

// Store is the row store behind the decision components. Absent rows are
// (nil, nil) for records and zero-valued for counters. Increments are atomic
// per-row upserts; the check-then-consume race tolerance in the limiters
// depends on that.
type Store interface {
	GetSubscription(ctx context.Context, userID int64) (*SubscriptionRecord, error)
	DeactivateSubscription(ctx context.Context, userID int64) error

	GetDailyUsage(ctx context.Context, userID int64, date time.Time) (DailyUsage, error)
	// IncrementDailyUsage applies a single atomic +1 and returns the
	// post-increment count.
	IncrementDailyUsage(ctx context.Context, userID int64, date time.Time, action Action) (int, error)
	ResetDailyUsage(ctx context.Context, userID int64, date time.Time) error

	GetPersonaUsage(ctx context.Context, userID int64, persona string, date time.Time) (PersonaUsage, error)
	IncrementPersonaUsage(ctx context.Context, userID int64, persona string, date time.Time, action PersonaAction) (int, error)

	GetMembershipCache(ctx context.Context, userID int64) (*MembershipCache, error)
	SetMembershipCache(ctx context.Context, userID int64, isMember bool, checkedAt time.Time) error
}

// PersonaView is the slice of a persona record the decision components need.
type PersonaView struct {
	Name         string
	IsCustom     bool
	OwnerID      int64
	IsActive     bool
	IsGroupBonus bool
	IsBlocked    bool
}

// PersonaStore exposes persona rows to the limiter and slot manager. The
// full persona lifecycle lives in the personas package.
type PersonaStore interface {
	// GetPersona returns (nil, nil) for an unknown name.
	GetPersona(ctx context.Context, name string) (*PersonaView, error)
	CountActiveCustom(ctx context.Context, ownerID int64) (int, error)
	// SetGroupBonusBlocked toggles the soft lock on every active
	// is_group_bonus persona owned by the user whose flag differs, and
	// returns how many rows actually transitioned. Re-applying the same
	// transition affects zero rows.
	SetGroupBonusBlocked(ctx context.Context, ownerID int64, blocked bool) (int64, error)
	// ReconcileToLimit unblocks the oldest `limit` active custom personas
	// and soft-blocks the rest. Returns (blocked, unblocked) transitions.
	ReconcileToLimit(ctx context.Context, ownerID int64, limit int) (int64, int64, error)
}

// MembershipChecker performs the live group-membership query against the
// messaging platform. May fail transiently.
type MembershipChecker interface {
	IsMemberLive(ctx context.Context, userID int64) (bool, error)
}

// TransitionSink receives notable entitlement transitions and limit
// decisions for analytics. Implementations must not fail the decision path;
// errors are logged and dropped by the implementation.
type TransitionSink interface {
	UsageChecked(ctx context.Context, userID int64, action, tier string, allowed bool, current, limit int)
	PersonaChecked(ctx context.Context, userID int64, persona, action, tier string, allowed bool, reason string)
	SubscriptionDowngraded(ctx context.Context, userID int64)
	MembershipChanged(ctx context.Context, userID int64, isMember bool)
	PersonasBlocked(ctx context.Context, userID int64, count int64)
	PersonasUnblocked(ctx context.Context, userID int64, count int64)
}

// NopSink discards all transitions.
type NopSink struct{}

func (NopSink) UsageChecked(context.Context, int64, string, string, bool, int, int) {}

func (NopSink) PersonaChecked(context.Context, int64, string, string, string, bool, string) {}

func (NopSink) SubscriptionDowngraded(context.Context, int64) {}

func (NopSink) MembershipChanged(context.Context, int64, bool) {}

func (NopSink) PersonasBlocked(context.Context, int64, int64) {}

func (NopSink) PersonasUnblocked(context.Context, int64, int64) {}
