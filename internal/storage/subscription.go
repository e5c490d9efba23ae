package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/group-access/internal/models"
)

// GetSubscription возвращает подписку пользователя.
func (s *Storage) GetSubscription(ctx context.Context, userID int64) (*models.Subscription, error) {
	const op = "storage.GetSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT user_id, tier, expires_at, last_payment_id, is_active, created_at, updated_at
			  FROM subscriptions WHERE user_id = $1`
	row := s.Db.QueryRowContext(ctx, query, userID)

	var result models.Subscription
	err := row.Scan(&result.UserID, &result.Tier, &result.ExpiresAt,
		&result.LastPaymentID, &result.IsActive, &result.CreatedAt, &result.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrSubscriptionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &result, nil
}

// UpsertSubscription создаёт подписку пользователя либо продлевает существующую.
// Последний подтверждённый платёж всегда перезаписывает дату окончания и тариф.
func (s *Storage) UpsertSubscription(ctx context.Context, sub models.Subscription) error {
	const op = "storage.UpsertSubscription"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO subscriptions (user_id, tier, expires_at, last_payment_id, is_active, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, TRUE, NOW(), NOW())
			  ON CONFLICT (user_id) DO UPDATE
			  SET tier = EXCLUDED.tier,
			      expires_at = EXCLUDED.expires_at,
			      last_payment_id = EXCLUDED.last_payment_id,
			      is_active = TRUE,
			      updated_at = NOW()`
	_, err := s.Db.ExecContext(ctx, query, sub.UserID, sub.Tier, sub.ExpiresAt, sub.LastPaymentID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListExpiredSubscriptions возвращает активные подписки с датой окончания не позже asOf.
// Пожизненные подписки (expires_at IS NULL) в выборку не попадают.
func (s *Storage) ListExpiredSubscriptions(ctx context.Context, asOf time.Time) ([]*models.Subscription, error) {
	const op = "storage.ListExpiredSubscriptions"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT user_id, tier, expires_at, last_payment_id, is_active, created_at, updated_at
			  FROM subscriptions
			  WHERE is_active = TRUE AND expires_at IS NOT NULL AND expires_at <= $1
			  ORDER BY expires_at`
	rows, err := s.Db.QueryContext(ctx, query, asOf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Subscription
	for rows.Next() {
		var item models.Subscription
		if err := rows.Scan(&item.UserID, &item.Tier, &item.ExpiresAt,
			&item.LastPaymentID, &item.IsActive, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// DeactivateSubscription помечает подписку неактивной после отзыва доступа
// и возвращает количество изменённых строк.
func (s *Storage) DeactivateSubscription(ctx context.Context, userID int64) (int, error) {
	const op = "storage.DeactivateSubscription"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions SET is_active = FALSE, updated_at = NOW() WHERE user_id = $1`
	result, err := s.Db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}
