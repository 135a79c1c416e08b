package events

import (
	"context"
	"log/slog"
	"time"
)

// Sink adapts the Publisher to the entitlement transition callbacks.
// Publish failures are logged and dropped; an unavailable broker must not
// fail or delay a limit decision.
type Sink struct {
	pub *Publisher
}

func NewSink(pub *Publisher) *Sink {
	return &Sink{pub: pub}
}

func (s *Sink) UsageChecked(ctx context.Context, userID int64, action, tier string, allowed bool, current, limit int) {
	err := s.pub.PublishUsageDecision(ctx, UsageDecisionEvent{
		UserID:    userID,
		Action:    action,
		Tier:      tier,
		Allowed:   allowed,
		Current:   current,
		Limit:     limit,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		slog.Warn("publishing usage decision event", "user_id", userID, "action", action, "error", err)
	}
}

func (s *Sink) PersonaChecked(ctx context.Context, userID int64, persona, action, tier string, allowed bool, reason string) {
	err := s.pub.PublishPersonaDecision(ctx, PersonaDecisionEvent{
		UserID:    userID,
		Persona:   persona,
		Action:    action,
		Tier:      tier,
		Allowed:   allowed,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		slog.Warn("publishing persona decision event", "user_id", userID, "persona", persona, "error", err)
	}
}

func (s *Sink) SubscriptionDowngraded(ctx context.Context, userID int64) {
	err := s.pub.PublishDowngrade(ctx, DowngradeEvent{
		UserID:    userID,
		FromTier:  "pro",
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		slog.Warn("publishing downgrade event", "user_id", userID, "error", err)
	}
}

func (s *Sink) MembershipChanged(ctx context.Context, userID int64, isMember bool) {
	err := s.pub.PublishMembershipChange(ctx, MembershipChangeEvent{
		UserID:    userID,
		IsMember:  isMember,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		slog.Warn("publishing membership event", "user_id", userID, "error", err)
	}
}

func (s *Sink) PersonasBlocked(ctx context.Context, userID int64, count int64) {
	s.publishTransition(ctx, userID, true, count)
}

func (s *Sink) PersonasUnblocked(ctx context.Context, userID int64, count int64) {
	s.publishTransition(ctx, userID, false, count)
}

func (s *Sink) publishTransition(ctx context.Context, userID int64, blocked bool, count int64) {
	err := s.pub.PublishPersonaTransition(ctx, PersonaTransitionEvent{
		UserID:    userID,
		Blocked:   blocked,
		Count:     count,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		slog.Warn("publishing persona transition event", "user_id", userID, "error", err)
	}
}
