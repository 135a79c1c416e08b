package entitlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore returns the pgx-backed Store over the subscriptions,
// daily_usage, personality_usage and group_membership_cache tables.
func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &postgresStore{pool: pool}
}

func (s *postgresStore) GetSubscription(ctx context.Context, userID int64) (*SubscriptionRecord, error) {
	query := `
		SELECT user_id, tier, started_at, expires_at, is_active, payment_method, transaction_id, updated_at
		FROM subscriptions WHERE user_id = $1`

	sub := &SubscriptionRecord{}
	err := s.pool.QueryRow(ctx, query, userID).Scan(
		&sub.UserID, &sub.Tier, &sub.StartedAt, &sub.ExpiresAt,
		&sub.IsActive, &sub.PaymentMethod, &sub.TransactionID, &sub.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying subscription: %w", err)
	}
	return sub, nil
}

func (s *postgresStore) DeactivateSubscription(ctx context.Context, userID int64) error {
	query := `
		UPDATE subscriptions
		SET tier = 'free', is_active = FALSE, expires_at = NULL, updated_at = NOW()
		WHERE user_id = $1`

	if _, err := s.pool.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("deactivating subscription: %w", err)
	}
	return nil
}

func (s *postgresStore) GetDailyUsage(ctx context.Context, userID int64, date time.Time) (DailyUsage, error) {
	query := `
		SELECT user_id, date, messages_dm, summaries_dm, summaries_group, judge_count
		FROM daily_usage WHERE user_id = $1 AND date = $2`

	usage := DailyUsage{UserID: userID, Date: date}
	err := s.pool.QueryRow(ctx, query, userID, date).Scan(
		&usage.UserID, &usage.Date, &usage.MessagesDM,
		&usage.SummariesDM, &usage.SummariesGroup, &usage.Judge)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Missing row reads as all-zero.
			return DailyUsage{UserID: userID, Date: date}, nil
		}
		return DailyUsage{}, fmt.Errorf("querying daily usage: %w", err)
	}
	return usage, nil
}

func dailyUsageColumn(action Action) (string, error) {
	switch action {
	case ActionMessageDM:
		return "messages_dm", nil
	case ActionSummaryDM:
		return "summaries_dm", nil
	case ActionSummaryGroup:
		return "summaries_group", nil
	case ActionJudge:
		return "judge_count", nil
	}
	return "", fmt.Errorf("no counter column for action %q", action)
}

func (s *postgresStore) IncrementDailyUsage(ctx context.Context, userID int64, date time.Time, action Action) (int, error) {
	column, err := dailyUsageColumn(action)
	if err != nil {
		return 0, err
	}

	// Single atomic upsert-and-increment; the RETURNING value is the
	// post-increment count this call produced.
	query := fmt.Sprintf(`
		INSERT INTO daily_usage (user_id, date, %[1]s)
		VALUES ($1, $2, 1)
		ON CONFLICT (user_id, date)
		DO UPDATE SET %[1]s = daily_usage.%[1]s + 1
		RETURNING %[1]s`, column)

	var count int
	if err := s.pool.QueryRow(ctx, query, userID, date).Scan(&count); err != nil {
		return 0, fmt.Errorf("incrementing daily usage: %w", err)
	}
	return count, nil
}

func (s *postgresStore) ResetDailyUsage(ctx context.Context, userID int64, date time.Time) error {
	query := `
		UPDATE daily_usage
		SET messages_dm = 0, summaries_dm = 0, summaries_group = 0, judge_count = 0
		WHERE user_id = $1 AND date = $2`

	if _, err := s.pool.Exec(ctx, query, userID, date); err != nil {
		return fmt.Errorf("resetting daily usage: %w", err)
	}
	return nil
}

func (s *postgresStore) GetPersonaUsage(ctx context.Context, userID int64, persona string, date time.Time) (PersonaUsage, error) {
	query := `
		SELECT user_id, persona, date, summary_count, chat_count, judge_count
		FROM personality_usage WHERE user_id = $1 AND persona = $2 AND date = $3`

	usage := PersonaUsage{UserID: userID, Persona: persona, Date: date}
	err := s.pool.QueryRow(ctx, query, userID, persona, date).Scan(
		&usage.UserID, &usage.Persona, &usage.Date,
		&usage.SummaryCount, &usage.ChatCount, &usage.JudgeCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PersonaUsage{UserID: userID, Persona: persona, Date: date}, nil
		}
		return PersonaUsage{}, fmt.Errorf("querying persona usage: %w", err)
	}
	return usage, nil
}

func personaUsageColumn(action PersonaAction) (string, error) {
	switch action {
	case PersonaActionSummary:
		return "summary_count", nil
	case PersonaActionChat:
		return "chat_count", nil
	case PersonaActionJudge:
		return "judge_count", nil
	}
	return "", fmt.Errorf("no counter column for persona action %q", action)
}

func (s *postgresStore) IncrementPersonaUsage(ctx context.Context, userID int64, persona string, date time.Time, action PersonaAction) (int, error) {
	column, err := personaUsageColumn(action)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`
		INSERT INTO personality_usage (user_id, persona, date, %[1]s)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (user_id, persona, date)
		DO UPDATE SET %[1]s = personality_usage.%[1]s + 1
		RETURNING %[1]s`, column)

	var count int
	if err := s.pool.QueryRow(ctx, query, userID, persona, date).Scan(&count); err != nil {
		return 0, fmt.Errorf("incrementing persona usage: %w", err)
	}
	return count, nil
}

func (s *postgresStore) GetMembershipCache(ctx context.Context, userID int64) (*MembershipCache, error) {
	query := `SELECT user_id, is_member, checked_at FROM group_membership_cache WHERE user_id = $1`

	cache := &MembershipCache{}
	err := s.pool.QueryRow(ctx, query, userID).Scan(&cache.UserID, &cache.IsMember, &cache.CheckedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying membership cache: %w", err)
	}
	return cache, nil
}

func (s *postgresStore) SetMembershipCache(ctx context.Context, userID int64, isMember bool, checkedAt time.Time) error {
	query := `
		INSERT INTO group_membership_cache (user_id, is_member, checked_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id)
		DO UPDATE SET is_member = $2, checked_at = $3`

	if _, err := s.pool.Exec(ctx, query, userID, isMember, checkedAt); err != nil {
		return fmt.Errorf("writing membership cache: %w", err)
	}
	return nil
}
