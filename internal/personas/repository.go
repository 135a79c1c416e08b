package personas

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sutbot/sutbot/internal/entitlement"
)

// ErrNameTaken reports a unique-name violation on insert.
var ErrNameTaken = errors.New("persona name already taken")

type Repository interface {
	entitlement.PersonaStore

	Create(ctx context.Context, p *Personality) error
	GetByID(ctx context.Context, id uuid.UUID) (*Personality, error)
	GetByName(ctx context.Context, name string) (*Personality, error)
	// ListVisible returns builtin personas plus the user's own custom ones.
	ListVisible(ctx context.Context, userID int64) ([]*Personality, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

const personaColumns = `id, name, description, is_custom, created_by_user_id, is_active, is_group_bonus, is_blocked, created_at, updated_at`

func scanPersonality(row pgx.Row) (*Personality, error) {
	p := &Personality{}
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.IsCustom, &p.CreatedBy,
		&p.IsActive, &p.IsGroupBonus, &p.IsBlocked, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *postgresRepository) Create(ctx context.Context, p *Personality) error {
	query := `
		INSERT INTO personalities (id, name, description, is_custom, created_by_user_id, is_active, is_group_bonus, is_blocked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		p.ID, p.Name, p.Description, p.IsCustom, p.CreatedBy,
		p.IsActive, p.IsGroupBonus, p.IsBlocked, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrNameTaken
		}
		return fmt.Errorf("inserting personality: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Personality, error) {
	query := `SELECT ` + personaColumns + ` FROM personalities WHERE id = $1`

	p, err := scanPersonality(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying personality by id: %w", err)
	}
	return p, nil
}

func (r *postgresRepository) GetByName(ctx context.Context, name string) (*Personality, error) {
	query := `SELECT ` + personaColumns + ` FROM personalities WHERE name = $1`

	p, err := scanPersonality(r.pool.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying personality by name: %w", err)
	}
	return p, nil
}

func (r *postgresRepository) ListVisible(ctx context.Context, userID int64) ([]*Personality, error) {
	query := `
		SELECT ` + personaColumns + `
		FROM personalities
		WHERE is_active = TRUE AND (is_custom = FALSE OR created_by_user_id = $1)
		ORDER BY is_custom, created_at`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing personalities: %w", err)
	}
	defer rows.Close()

	var out []*Personality
	for rows.Next() {
		p, err := scanPersonality(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning personality row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *postgresRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE personalities SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND is_active = TRUE`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("soft deleting personality: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("personality not found or already deleted")
	}
	return nil
}

// entitlement.PersonaStore implementation

func (r *postgresRepository) GetPersona(ctx context.Context, name string) (*entitlement.PersonaView, error) {
	p, err := r.GetByName(ctx, name)
	if err != nil || p == nil {
		return nil, err
	}

	view := &entitlement.PersonaView{
		Name:         p.Name,
		IsCustom:     p.IsCustom,
		IsActive:     p.IsActive,
		IsGroupBonus: p.IsGroupBonus,
		IsBlocked:    p.IsBlocked,
	}
	if p.CreatedBy != nil {
		view.OwnerID = *p.CreatedBy
	}
	return view, nil
}

func (r *postgresRepository) CountActiveCustom(ctx context.Context, ownerID int64) (int, error) {
	query := `
		SELECT COUNT(*) FROM personalities
		WHERE created_by_user_id = $1 AND is_custom = TRUE AND is_active = TRUE`

	var count int
	if err := r.pool.QueryRow(ctx, query, ownerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting custom personalities: %w", err)
	}
	return count, nil
}

func (r *postgresRepository) SetGroupBonusBlocked(ctx context.Context, ownerID int64, blocked bool) (int64, error) {
	// Only rows whose flag differs transition, which is what makes the
	// membership reconcile idempotent.
	query := `
		UPDATE personalities
		SET is_blocked = $2, updated_at = NOW()
		WHERE created_by_user_id = $1 AND is_group_bonus = TRUE AND is_active = TRUE AND is_blocked <> $2`

	result, err := r.pool.Exec(ctx, query, ownerID, blocked)
	if err != nil {
		return 0, fmt.Errorf("toggling group bonus personalities: %w", err)
	}
	return result.RowsAffected(), nil
}

func (r *postgresRepository) ReconcileToLimit(ctx context.Context, ownerID int64, limit int) (int64, int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("beginning reconcile tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Oldest-created personas keep their slots; everything past the limit
	// gets the same soft lock used for bonus revocation.
	unblockQuery := `
		UPDATE personalities SET is_blocked = FALSE, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM personalities
			WHERE created_by_user_id = $1 AND is_custom = TRUE AND is_active = TRUE
			ORDER BY created_at ASC
			LIMIT $2
		) AND is_blocked = TRUE`

	unblocked, err := tx.Exec(ctx, unblockQuery, ownerID, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("unblocking personalities within limit: %w", err)
	}

	blockQuery := `
		UPDATE personalities SET is_blocked = TRUE, updated_at = NOW()
		WHERE created_by_user_id = $1 AND is_custom = TRUE AND is_active = TRUE AND is_blocked = FALSE
		AND id NOT IN (
			SELECT id FROM personalities
			WHERE created_by_user_id = $1 AND is_custom = TRUE AND is_active = TRUE
			ORDER BY created_at ASC
			LIMIT $2
		)`

	blocked, err := tx.Exec(ctx, blockQuery, ownerID, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("blocking excess personalities: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("committing reconcile tx: %w", err)
	}
	return blocked.RowsAffected(), unblocked.RowsAffected(), nil
}
