package personas

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sutbot/sutbot/internal/clock"
	"github.com/sutbot/sutbot/internal/entitlement"
)

type Service struct {
	repo  Repository
	slots *entitlement.SlotManager
	clock clock.Clock
}

func NewService(repo Repository, slots *entitlement.SlotManager, clk clock.Clock) *Service {
	return &Service{
		repo:  repo,
		slots: slots,
		clock: clk,
	}
}

// Create runs the slot check and, when allowed, inserts the custom persona.
// A denied decision is returned with a nil persona and a nil error; denial
// is a normal outcome, not a failure.
//
// The check-then-insert pair is not atomic, so after the insert the count is
// re-read and an over-limit row created by a concurrent request is removed
// again before reporting a conflict.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*Personality, *entitlement.CreateDecision, error) {
	decision, err := s.slots.CanCreate(ctx, req.UserID)
	if err != nil {
		return nil, nil, err
	}
	if !decision.CanCreate {
		return nil, &decision, nil
	}

	isBonus, err := s.slots.StampGroupBonus(ctx, req.UserID)
	if err != nil {
		return nil, nil, err
	}

	now := s.clock.Now()
	userID := req.UserID
	p := &Personality{
		ID:           uuid.New(),
		Name:         req.Name,
		Description:  req.Description,
		IsCustom:     true,
		CreatedBy:    &userID,
		IsActive:     true,
		IsGroupBonus: isBonus,
		IsBlocked:    false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, nil, err
	}

	count, err := s.repo.CountActiveCustom(ctx, req.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: re-counting after insert: %w", entitlement.ErrStoreUnavailable, err)
	}
	if count > decision.Limit {
		if delErr := s.repo.SoftDelete(ctx, p.ID); delErr != nil {
			slog.Error("rolling back over-limit persona", "persona_id", p.ID, "error", delErr)
		}
		return nil, nil, fmt.Errorf("%w: persona slots exhausted by a concurrent create", entitlement.ErrConflict)
	}

	slog.Info("custom persona created",
		"user_id", req.UserID, "persona", p.Name, "group_bonus", isBonus)
	return p, &decision, nil
}

func (s *Service) List(ctx context.Context, userID int64) ([]*Personality, error) {
	return s.repo.ListVisible(ctx, userID)
}

// Delete soft-deletes a custom persona. Only the owner may delete, and
// builtin personas are never deletable through this path.
func (s *Service) Delete(ctx context.Context, userID int64, personaID uuid.UUID) error {
	p, err := s.repo.GetByID(ctx, personaID)
	if err != nil {
		return err
	}
	if p == nil || !p.IsActive {
		return fmt.Errorf("%w: persona not found", entitlement.ErrInvalidRequest)
	}
	if !p.IsCustom || p.CreatedBy == nil || *p.CreatedBy != userID {
		return fmt.Errorf("%w: persona not owned by user", entitlement.ErrInvalidRequest)
	}

	if err := s.repo.SoftDelete(ctx, personaID); err != nil {
		return err
	}
	slog.Info("custom persona deleted", "user_id", userID, "persona", p.Name)
	return nil
}
