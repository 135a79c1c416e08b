package subscription

import (
	"time"

	"github.com/sutbot/sutbot/internal/entitlement"
)

// GrantRequest is the admin grant/renew payload. Duration is counted in
// days from the grant time; renewing an active subscription replaces the
// expiry rather than extending it.
type GrantRequest struct {
	UserID        int64  `json:"user_id" validate:"required,gt=0"`
	Tier          string `json:"tier" validate:"required"`
	DurationDays  int    `json:"duration_days" validate:"required,gt=0"`
	PaymentMethod string `json:"payment_method" validate:"omitempty,max=50"`
	TransactionID string `json:"transaction_id" validate:"omitempty,max=100"`
}

// Status is the subscription view returned to callers: the stored record
// plus the effective tier after lazy expiry.
type Status struct {
	UserID        int64            `json:"user_id"`
	EffectiveTier entitlement.Tier `json:"effective_tier"`
	Downgraded    bool             `json:"downgraded"`
	ExpiresAt     *time.Time       `json:"expires_at,omitempty"`
	IsActive      bool             `json:"is_active"`
}
