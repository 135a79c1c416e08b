package entitlement

import (
	"time"

	"github.com/sutbot/sutbot/internal/config"
)

// Tier is the subscription level governing quota sizes.
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

// ParseTier validates a tier name from an external caller.
func ParseTier(s string) (Tier, bool) {
	switch Tier(s) {
	case TierFree, TierPro:
		return Tier(s), true
	}
	return "", false
}

// Action is a generic metered action with a per-tier daily cap.
type Action string

const (
	ActionMessageDM    Action = "message_dm"
	ActionSummaryDM    Action = "summary_dm"
	ActionSummaryGroup Action = "summary_group"
	ActionJudge        Action = "judge"
)

// ParseAction validates an action name from an external caller.
func ParseAction(s string) (Action, bool) {
	switch Action(s) {
	case ActionMessageDM, ActionSummaryDM, ActionSummaryGroup, ActionJudge:
		return Action(s), true
	}
	return "", false
}

// PersonaAction is a persona-scoped action with a free-tier per-persona cap.
type PersonaAction string

const (
	PersonaActionSummary PersonaAction = "summary"
	PersonaActionChat    PersonaAction = "chat"
	PersonaActionJudge   PersonaAction = "judge"
)

func ParsePersonaAction(s string) (PersonaAction, bool) {
	switch PersonaAction(s) {
	case PersonaActionSummary, PersonaActionChat, PersonaActionJudge:
		return PersonaAction(s), true
	}
	return "", false
}

// NeutralPersona is the builtin persona that is never metered.
const NeutralPersona = "neutral"

// Unlimited is the limit sentinel for checks that bypass counters entirely
// (pro tier persona use, the neutral persona).
const Unlimited = -1

// DenyReason classifies a denial for the caller's upgrade messaging.
// Denial is a normal result, not an error.
type DenyReason string

const (
	ReasonNone         DenyReason = ""
	ReasonLimitReached DenyReason = "limit_reached"
	ReasonBlocked      DenyReason = "blocked"

	// canCreate denial reasons, one per (tier, bonus) cell. The four-way
	// split is a caller-facing contract.
	ReasonNeedGroupOrPro DenyReason = "need_group_or_pro"
	ReasonNeedPro        DenyReason = "need_pro"
	ReasonNeedGroup      DenyReason = "need_group"
	ReasonMaxReached     DenyReason = "max_reached"
)

// SubscriptionRecord is one user's subscription row. A record with IsActive
// set and ExpiresAt in the past is stale; TierResolver deactivates it on read.
type SubscriptionRecord struct {
	UserID        int64      `json:"user_id"`
	Tier          Tier       `json:"tier"`
	StartedAt     time.Time  `json:"started_at"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	IsActive      bool       `json:"is_active"`
	PaymentMethod string     `json:"payment_method,omitempty"`
	TransactionID string     `json:"transaction_id,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// DailyUsage is one (user, UTC date) row of action counters. A missing row
// reads as all-zero.
type DailyUsage struct {
	UserID         int64     `json:"user_id"`
	Date           time.Time `json:"date"`
	MessagesDM     int       `json:"messages_dm"`
	SummariesDM    int       `json:"summaries_dm"`
	SummariesGroup int       `json:"summaries_group"`
	Judge          int       `json:"judge"`
}

// Count returns the counter for the given action.
func (u DailyUsage) Count(action Action) int {
	switch action {
	case ActionMessageDM:
		return u.MessagesDM
	case ActionSummaryDM:
		return u.SummariesDM
	case ActionSummaryGroup:
		return u.SummariesGroup
	case ActionJudge:
		return u.Judge
	}
	return 0
}

// PersonaUsage is one (user, persona, UTC date) row. Only free-tier checks
// ever read or write it.
type PersonaUsage struct {
	UserID       int64     `json:"user_id"`
	Persona      string    `json:"persona"`
	Date         time.Time `json:"date"`
	SummaryCount int       `json:"summary_count"`
	ChatCount    int       `json:"chat_count"`
	JudgeCount   int       `json:"judge_count"`
}

func (u PersonaUsage) Count(action PersonaAction) int {
	switch action {
	case PersonaActionSummary:
		return u.SummaryCount
	case PersonaActionChat:
		return u.ChatCount
	case PersonaActionJudge:
		return u.JudgeCount
	}
	return 0
}

// MembershipCache is the per-user cached group-membership flag.
type MembershipCache struct {
	UserID    int64     `json:"user_id"`
	IsMember  bool      `json:"is_member"`
	CheckedAt time.Time `json:"checked_at"`
}

// TierResult is the outcome of tier resolution. Downgraded signals the
// caller to notify the user and that excess persona slots were reclaimed.
type TierResult struct {
	Tier       Tier `json:"tier"`
	Downgraded bool `json:"downgraded"`
}

// UsageDecision is the outcome of a generic usage check.
type UsageDecision struct {
	Allowed bool       `json:"allowed"`
	Current int        `json:"current"`
	Limit   int        `json:"limit"`
	Tier    Tier       `json:"tier"`
	Reason  DenyReason `json:"reason,omitempty"`
}

// PersonaDecision is the outcome of a persona-use check.
type PersonaDecision struct {
	Allowed bool       `json:"allowed"`
	Current int        `json:"current"`
	Limit   int        `json:"limit"`
	Tier    Tier       `json:"tier"`
	Reason  DenyReason `json:"reason,omitempty"`
}

// CreateDecision is the outcome of a custom-persona slot check.
type CreateDecision struct {
	CanCreate bool       `json:"can_create"`
	Reason    DenyReason `json:"reason,omitempty"`
	Current   int        `json:"current"`
	Limit     int        `json:"limit"`
	Tier      Tier       `json:"tier"`
	InGroup   bool       `json:"in_group"`
}

// ReconcileResult reports a membership-change reconciliation.
type ReconcileResult struct {
	Blocked   int `json:"blocked"`
	Unblocked int `json:"unblocked"`
}

// capFor reads the configured daily cap for (tier, action). Config
// validation guarantees every cell is positive.
func capFor(limits config.LimitsConfig, tier Tier, action Action) int {
	caps := limits.Free
	if tier == TierPro {
		caps = limits.Pro
	}
	switch action {
	case ActionMessageDM:
		return caps.MessageDM
	case ActionSummaryDM:
		return caps.SummaryDM
	case ActionSummaryGroup:
		return caps.SummaryGroup
	case ActionJudge:
		return caps.Judge
	}
	return 0
}

// utcDate truncates an instant to its UTC calendar date.
func utcDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
