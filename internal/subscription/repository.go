package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sutbot/sutbot/internal/entitlement"
)

type Repository interface {
	Upsert(ctx context.Context, record *entitlement.SubscriptionRecord) error
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) Upsert(ctx context.Context, record *entitlement.SubscriptionRecord) error {
	query := `
		INSERT INTO subscriptions (user_id, tier, started_at, expires_at, is_active, payment_method, transaction_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id)
		DO UPDATE SET tier = $2, started_at = $3, expires_at = $4, is_active = $5,
			payment_method = $6, transaction_id = $7, updated_at = $8`

	_, err := r.pool.Exec(ctx, query,
		record.UserID, record.Tier, record.StartedAt, record.ExpiresAt,
		record.IsActive, record.PaymentMethod, record.TransactionID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upserting subscription: %w", err)
	}
	return nil
}
