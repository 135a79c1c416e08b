package events

import "time"

// FetchTimeout is the default timeout for batch fetching messages from consumers.
const FetchTimeout = 2 * time.Second

// StreamEvents holds every entitlement transition and decision event.
const StreamEvents = "SUTBOT_EVENTS"

// Subject constants.
const (
	SubjectUsageDecision     = "sutbot.events.usage"
	SubjectPersonaDecision   = "sutbot.events.persona"
	SubjectDowngrade         = "sutbot.events.downgrade"
	SubjectMembershipChange  = "sutbot.events.membership"
	SubjectPersonaTransition = "sutbot.events.persona_transition"
)

// UsageDecisionEvent records one limit check, allowed or denied.
type UsageDecisionEvent struct {
	UserID    int64     `json:"user_id"`
	Action    string    `json:"action"`
	Tier      string    `json:"tier"`
	Allowed   bool      `json:"allowed"`
	Current   int       `json:"current"`
	Limit     int       `json:"limit"`
	Timestamp time.Time `json:"timestamp"`
}

// PersonaDecisionEvent records one persona-use check.
type PersonaDecisionEvent struct {
	UserID    int64     `json:"user_id"`
	Persona   string    `json:"persona"`
	Action    string    `json:"action"`
	Tier      string    `json:"tier"`
	Allowed   bool      `json:"allowed"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// DowngradeEvent records a lazy expiry downgrade.
type DowngradeEvent struct {
	UserID    int64     `json:"user_id"`
	FromTier  string    `json:"from_tier"`
	Timestamp time.Time `json:"timestamp"`
}

// MembershipChangeEvent records a group join or leave.
type MembershipChangeEvent struct {
	UserID    int64     `json:"user_id"`
	IsMember  bool      `json:"is_member"`
	Timestamp time.Time `json:"timestamp"`
}

// PersonaTransitionEvent records a block or unblock sweep over a user's
// custom personas.
type PersonaTransitionEvent struct {
	UserID    int64     `json:"user_id"`
	Blocked   bool      `json:"blocked"`
	Count     int64     `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}
