package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const txColumns = `id, order_id, COALESCE(payment_id, ''), plan, credits_requested,
	COALESCE(user_id, ''), status, credited_at, created_at, updated_at`

// PostgresStore is the production Store backed by pgx.
type PostgresStore struct {
	Pool *pgxpool.Pool
}

// NewPostgresStore wraps pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{Pool: pool}
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var tx Transaction
	var status string
	err := row.Scan(&tx.ID, &tx.OrderID, &tx.PaymentID, &tx.Plan, &tx.CreditsRequested,
		&tx.UserID, &status, &tx.CreditedAt, &tx.CreatedAt, &tx.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, ErrNotFound
	}
	if err != nil {
		return Transaction{}, err
	}
	tx.Status = Status(status)
	return tx, nil
}

// RecordVerified implements Store.
func (s *PostgresStore) RecordVerified(ctx context.Context, p VerifiedPayment) (Transaction, error) {
	row := s.Pool.QueryRow(ctx, `
INSERT INTO transactions (id, order_id, payment_id, plan, credits_requested, user_id, status)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, NULLIF($6, ''), 'success')
ON CONFLICT (order_id) DO UPDATE SET
	payment_id = COALESCE(EXCLUDED.payment_id, transactions.payment_id),
	plan = COALESCE(NULLIF(EXCLUDED.plan, ''), transactions.plan),
	credits_requested = CASE WHEN EXCLUDED.credits_requested > 0
		THEN EXCLUDED.credits_requested ELSE transactions.credits_requested END,
	user_id = COALESCE(EXCLUDED.user_id, transactions.user_id),
	status = CASE WHEN transactions.status = 'captured' THEN 'captured' ELSE 'success' END,
	updated_at = now()
RETURNING `+txColumns,
		uuid.New(), p.OrderID, p.PaymentID, p.Plan, p.Credits, p.UserID)
	tx, err := scanTransaction(row)
	if err != nil {
		return Transaction{}, fmt.Errorf("record verified %s: %w", p.OrderID, err)
	}
	return tx, nil
}

// RecordFailure implements Store.
func (s *PostgresStore) RecordFailure(ctx context.Context, orderID, paymentID string) error {
	_, err := s.Pool.Exec(ctx, `
INSERT INTO transactions (id, order_id, payment_id, status)
VALUES ($1, $2, NULLIF($3, ''), 'failed')
ON CONFLICT (order_id) DO UPDATE SET
	payment_id = CASE WHEN transactions.status IN ('success', 'captured')
		THEN transactions.payment_id ELSE COALESCE(EXCLUDED.payment_id, transactions.payment_id) END,
	status = CASE WHEN transactions.status IN ('success', 'captured')
		THEN transactions.status ELSE 'failed' END,
	updated_at = now()`,
		uuid.New(), orderID, paymentID)
	if err != nil {
		return fmt.Errorf("record failure %s: %w", orderID, err)
	}
	return nil
}

// ApplyWebhookStatus implements Store.
func (s *PostgresStore) ApplyWebhookStatus(ctx context.Context, u WebhookUpdate) (Transaction, error) {
	if u.OrderID == "" && u.PaymentID == "" {
		return Transaction{}, ErrNotFound
	}
	dbtx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, fmt.Errorf("webhook begin: %w", err)
	}
	defer func() { _ = dbtx.Rollback(ctx) }()

	var current Transaction
	if u.OrderID != "" {
		if _, err := dbtx.Exec(ctx, `
INSERT INTO transactions (id, order_id, payment_id, plan, credits_requested, user_id, status)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, NULLIF($6, ''), $7)
ON CONFLICT (order_id) DO NOTHING`,
			uuid.New(), u.OrderID, u.PaymentID, u.Plan, u.Credits, u.UserID, string(u.Status)); err != nil {
			return Transaction{}, fmt.Errorf("webhook insert %s: %w", u.OrderID, err)
		}
		current, err = scanTransaction(dbtx.QueryRow(ctx,
			`SELECT `+txColumns+` FROM transactions WHERE order_id = $1 FOR UPDATE`, u.OrderID))
	} else {
		current, err = scanTransaction(dbtx.QueryRow(ctx, `
SELECT `+txColumns+` FROM transactions
WHERE payment_id = $1 AND status IN ('success', 'captured')
ORDER BY created_at
LIMIT 1
FOR UPDATE`, u.PaymentID))
	}
	if errors.Is(err, ErrNotFound) {
		return Transaction{}, ErrNotFound
	}
	if err != nil {
		return Transaction{}, fmt.Errorf("webhook lock %s/%s: %w", u.OrderID, u.PaymentID, err)
	}
	if otherAttempt(current, u.PaymentID) {
		return current, ErrStaleAttempt
	}

	tx, err := scanTransaction(dbtx.QueryRow(ctx, `
UPDATE transactions SET
	status = $2,
	payment_id = COALESCE(NULLIF($3, ''), payment_id),
	plan = CASE WHEN plan = '' THEN $4 ELSE plan END,
	credits_requested = CASE WHEN credits_requested = 0 THEN $5 ELSE credits_requested END,
	user_id = COALESCE(user_id, NULLIF($6, '')),
	updated_at = now()
WHERE id = $1
RETURNING `+txColumns,
		current.ID, string(u.Status), u.PaymentID, u.Plan, u.Credits, u.UserID))
	if err != nil {
		return Transaction{}, fmt.Errorf("webhook update %s: %w", current.OrderID, err)
	}
	if err := dbtx.Commit(ctx); err != nil {
		return Transaction{}, fmt.Errorf("webhook commit %s: %w", current.OrderID, err)
	}
	return tx, nil
}

// GrantCredits implements Store.
func (s *PostgresStore) GrantCredits(ctx context.Context, orderID string) (GrantResult, error) {
	dbtx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", fmt.Errorf("grant begin: %w", err)
	}
	defer func() { _ = dbtx.Rollback(ctx) }()

	tx, err := scanTransaction(dbtx.QueryRow(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE order_id = $1 FOR UPDATE`, orderID))
	switch {
	case errors.Is(err, ErrNotFound):
		return GrantNotEligible, nil
	case err != nil:
		return "", fmt.Errorf("grant lock %s: %w", orderID, err)
	case tx.CreditedAt != nil:
		return GrantAlreadyApplied, nil
	case !tx.Eligible():
		return GrantNotEligible, nil
	}

	if _, err := dbtx.Exec(ctx,
		`UPDATE transactions SET credited_at = now(), updated_at = now() WHERE id = $1 AND credited_at IS NULL`, tx.ID); err != nil {
		return "", fmt.Errorf("grant mark %s: %w", orderID, err)
	}
	if _, err := dbtx.Exec(ctx, `
INSERT INTO profiles (user_id, credits, credits_updated_at)
VALUES ($1, $2, current_date)
ON CONFLICT (user_id) DO UPDATE SET
	credits = profiles.credits + EXCLUDED.credits,
	credits_updated_at = current_date`,
		tx.UserID, tx.CreditsRequested); err != nil {
		return "", fmt.Errorf("grant increment %s: %w", orderID, err)
	}
	if err := dbtx.Commit(ctx); err != nil {
		return "", fmt.Errorf("grant commit %s: %w", orderID, err)
	}
	return GrantApplied, nil
}

// GetTransaction implements Store.
func (s *PostgresStore) GetTransaction(ctx context.Context, orderID string) (Transaction, error) {
	return scanTransaction(s.Pool.QueryRow(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE order_id = $1`, orderID))
}

// GetProfile implements Store.
func (s *PostgresStore) GetProfile(ctx context.Context, userID string) (Profile, error) {
	var p Profile
	err := s.Pool.QueryRow(ctx,
		`SELECT user_id, credits, credits_updated_at::timestamptz FROM profiles WHERE user_id = $1`, userID).
		Scan(&p.UserID, &p.Credits, &p.CreditsUpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// ListUncredited implements Store.
func (s *PostgresStore) ListUncredited(ctx context.Context, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.Pool.Query(ctx, `
SELECT `+txColumns+` FROM transactions
WHERE credited_at IS NULL
	AND status IN ('success', 'captured')
	AND user_id IS NOT NULL
	AND credits_requested > 0
ORDER BY created_at
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list uncredited: %w", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("list uncredited scan: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}
