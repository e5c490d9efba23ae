package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/group-access/internal/models"
)

// CreatePaymentAttempt сохраняет новую платёжную попытку.
func (s *Storage) CreatePaymentAttempt(ctx context.Context, attempt models.PaymentAttempt) error {
	const op = "storage.CreatePaymentAttempt"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO payment_attempts (payment_id, user_id, tier, amount, method,
			      state, gateway_status, attempts_made, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())`
	_, err := s.Db.ExecContext(ctx, query,
		attempt.PaymentID, attempt.UserID, attempt.Tier, attempt.Amount, attempt.Method,
		attempt.State, attempt.GatewayStatus, attempt.AttemptsMade)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdatePaymentAttempt обновляет состояние попытки, сырой статус шлюза
// и счётчик опросов по ID платежа.
func (s *Storage) UpdatePaymentAttempt(ctx context.Context, paymentID string,
	state models.PaymentState, gatewayStatus string, attemptsMade int) error {
	const op = "storage.UpdatePaymentAttempt"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE payment_attempts
			  SET state = $1, gateway_status = $2, attempts_made = $3, updated_at = NOW()
			  WHERE payment_id = $4`
	result, err := s.Db.ExecContext(ctx, query, state, gatewayStatus, attemptsMade, paymentID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, ErrAttemptNotFound)
	}
	return nil
}

// GetPaymentAttempt возвращает платёжную попытку по ID платежа.
func (s *Storage) GetPaymentAttempt(ctx context.Context, paymentID string) (*models.PaymentAttempt, error) {
	const op = "storage.GetPaymentAttempt"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT payment_id, user_id, tier, amount, method, state, gateway_status,
			      attempts_made, created_at, updated_at
			  FROM payment_attempts WHERE payment_id = $1`
	row := s.Db.QueryRowContext(ctx, query, paymentID)

	var result models.PaymentAttempt
	err := row.Scan(&result.PaymentID, &result.UserID, &result.Tier, &result.Amount,
		&result.Method, &result.State, &result.GatewayStatus,
		&result.AttemptsMade, &result.CreatedAt, &result.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrAttemptNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &result, nil
}
