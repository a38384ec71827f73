package ledger

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no transaction or profile matches.
var ErrNotFound = errors.New("ledger: not found")

// ErrStaleAttempt is returned when a webhook names a different payment than
// the one that already confirmed the order. The row is left unchanged.
var ErrStaleAttempt = errors.New("ledger: event for another payment attempt")

// otherAttempt reports whether paymentID differs from the payment that
// confirmed tx. Unconfirmed rows may carry an unverified client payment id
// and never block a signed event.
func otherAttempt(tx Transaction, paymentID string) bool {
	return tx.Status.Confirmed() && tx.PaymentID != "" && paymentID != "" && tx.PaymentID != paymentID
}

// Store persists transactions and profiles.
//
// Every write is keyed on order_id or payment_id so concurrent and repeated
// calls converge. GrantCredits performs at most one increment per transaction.
type Store interface {
	// RecordVerified upserts the row as success. An existing captured status is kept.
	RecordVerified(ctx context.Context, p VerifiedPayment) (Transaction, error)
	// RecordFailure marks the row failed unless it is already success or captured.
	RecordFailure(ctx context.Context, orderID, paymentID string) error
	// ApplyWebhookStatus matches by order id, creating the row when it is missing.
	// Without an order id it matches a confirmed row by payment id.
	// It returns ErrStaleAttempt when the row was confirmed by a different payment.
	ApplyWebhookStatus(ctx context.Context, u WebhookUpdate) (Transaction, error)
	// GrantCredits moves credited_at from NULL to now and adds the credits in one step.
	GrantCredits(ctx context.Context, orderID string) (GrantResult, error)
	GetTransaction(ctx context.Context, orderID string) (Transaction, error)
	GetProfile(ctx context.Context, userID string) (Profile, error)
	// ListUncredited returns eligible rows whose credits were never applied, oldest first.
	ListUncredited(ctx context.Context, limit int) ([]Transaction, error)
}
