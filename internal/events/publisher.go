package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// Publisher provides typed methods for publishing events to NATS JetStream.
type Publisher struct {
	js jetstream.JetStream
}

// NewPublisher creates a new Publisher.
func NewPublisher(js jetstream.JetStream) *Publisher {
	return &Publisher{js: js}
}

// PublishUsageDecision publishes a usage limit decision.
func (p *Publisher) PublishUsageDecision(ctx context.Context, event UsageDecisionEvent) error {
	return p.publish(ctx, SubjectUsageDecision, event)
}

// PublishPersonaDecision publishes a persona use decision.
func (p *Publisher) PublishPersonaDecision(ctx context.Context, event PersonaDecisionEvent) error {
	return p.publish(ctx, SubjectPersonaDecision, event)
}

// PublishDowngrade publishes a lazy subscription downgrade.
func (p *Publisher) PublishDowngrade(ctx context.Context, event DowngradeEvent) error {
	return p.publish(ctx, SubjectDowngrade, event)
}

// PublishMembershipChange publishes a group membership transition.
func (p *Publisher) PublishMembershipChange(ctx context.Context, event MembershipChangeEvent) error {
	return p.publish(ctx, SubjectMembershipChange, event)
}

// PublishPersonaTransition publishes a block/unblock sweep.
func (p *Publisher) PublishPersonaTransition(ctx context.Context, event PersonaTransitionEvent) error {
	return p.publish(ctx, SubjectPersonaTransition, event)
}

func (p *Publisher) publish(ctx context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling event for %s: %w", subject, err)
	}
	_, err = p.js.Publish(ctx, subject, payload)
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}
