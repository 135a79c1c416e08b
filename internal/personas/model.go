package personas

import (
	"time"

	"github.com/google/uuid"
)

// Personality is a named response style. Builtin personas have no owner;
// custom ones are owned and slot-gated. IsGroupBonus is stamped at creation
// for free-tier creators and never changes afterwards, even if the owner
// later upgrades. IsBlocked is the reversible soft lock applied when the
// owner's bonus eligibility lapses or a downgrade reclaims slots.
type Personality struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	IsCustom     bool      `json:"is_custom"`
	CreatedBy    *int64    `json:"created_by_user_id,omitempty"`
	IsActive     bool      `json:"is_active"`
	IsGroupBonus bool      `json:"is_group_bonus"`
	IsBlocked    bool      `json:"is_blocked"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type CreateRequest struct {
	UserID      int64  `json:"user_id" validate:"required,gt=0"`
	Name        string `json:"name" validate:"required,min=1,max=50"`
	Description string `json:"description" validate:"required,min=10,max=500"`
}
