package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/sutbot/sutbot/internal/events"
)

// Consumer listens on the entitlement event subjects and persists every
// event to the database for reporting.
type Consumer struct {
	repo        *Repository
	consumerMgr *events.ConsumerManager
}

// NewConsumer creates a new analytics event Consumer.
func NewConsumer(repo *Repository, consumerMgr *events.ConsumerManager) *Consumer {
	return &Consumer{
		repo:        repo,
		consumerMgr: consumerMgr,
	}
}

// Start begins the consume loop. Blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	consumer, err := c.consumerMgr.EnsureConsumer(ctx, events.StreamEvents, "analytics-persister", "sutbot.events.>")
	if err != nil {
		return err
	}

	slog.Info("analytics consumer started", "consumer", "analytics-persister")

	for {
		msgs, err := consumer.Fetch(10, jetstream.FetchMaxWait(events.FetchTimeout))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Debug("analytics consumer: fetching events", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			c.handleEvent(ctx, msg)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

// envelope pulls the fields shared by every event type.
type envelope struct {
	UserID    int64     `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

func (c *Consumer) handleEvent(ctx context.Context, msg jetstream.Msg) {
	var env envelope
	if err := json.Unmarshal(msg.Data(), &env); err != nil {
		slog.Error("analytics consumer: unmarshaling event", "error", err, "subject", msg.Subject())
		_ = msg.Nak()
		return
	}

	createdAt := env.Timestamp
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	event := &Event{
		ID:        uuid.New(),
		UserID:    env.UserID,
		EventType: eventTypeFromSubject(msg.Subject()),
		Subject:   msg.Subject(),
		Payload:   json.RawMessage(msg.Data()),
		CreatedAt: createdAt,
	}

	if err := c.repo.Insert(ctx, event); err != nil {
		slog.Error("analytics consumer: persisting event", "error", err, "subject", msg.Subject())
		_ = msg.Nak()
		return
	}

	_ = msg.Ack()

	slog.Debug("analytics consumer: persisted event",
		"event_type", event.EventType,
		"user_id", event.UserID,
	)
}

func eventTypeFromSubject(subject string) string {
	switch subject {
	case events.SubjectUsageDecision:
		return "usage_decision"
	case events.SubjectPersonaDecision:
		return "persona_decision"
	case events.SubjectDowngrade:
		return "subscription_downgrade"
	case events.SubjectMembershipChange:
		return "membership_change"
	case events.SubjectPersonaTransition:
		return "persona_transition"
	}
	return "unknown"
}
