package analytics

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event matches the analytics_events table schema. Payload carries the
// original event body verbatim.
type Event struct {
	ID        uuid.UUID       `json:"id"`
	UserID    int64           `json:"user_id"`
	EventType string          `json:"event_type"`
	Subject   string          `json:"subject"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// ListParams holds pagination and filtering parameters for event queries.
type ListParams struct {
	UserID    int64
	EventType string
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}

// DefaultListParams returns sensible defaults.
func DefaultListParams() ListParams {
	return ListParams{
		Page:     1,
		PageSize: 20,
	}
}
