package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a transaction row.
type Status string

const (
	StatusPending  Status = "pending"
	StatusSuccess  Status = "success"
	StatusFailed   Status = "failed"
	StatusCaptured Status = "captured"
)

// Confirmed reports whether the provider has confirmed the payment.
func (s Status) Confirmed() bool {
	return s == StatusSuccess || s == StatusCaptured
}

// Transaction mirrors a row of the transactions table. One row exists per provider order.
type Transaction struct {
	ID               uuid.UUID
	OrderID          string
	PaymentID        string
	Plan             string
	CreditsRequested int
	UserID           string
	Status           Status
	CreditedAt       *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Eligible reports whether the row may receive its one credit increment.
func (t Transaction) Eligible() bool {
	return t.Status.Confirmed() && t.UserID != "" && t.CreditsRequested > 0
}

// Profile is a user's credit balance.
type Profile struct {
	UserID           string
	Credits          int
	CreditsUpdatedAt *time.Time
}

// VerifiedPayment is a client-reported payment whose signature checked out.
type VerifiedPayment struct {
	OrderID   string
	PaymentID string
	Plan      string
	Credits   int
	UserID    string
}

// WebhookUpdate is a provider-pushed status for a payment.
// Plan, Credits and UserID come from the order notes and may be empty.
type WebhookUpdate struct {
	PaymentID string
	OrderID   string
	Status    Status
	Plan      string
	Credits   int
	UserID    string
}

// GrantResult is the outcome of a credit grant attempt.
type GrantResult string

const (
	GrantApplied            GrantResult = "applied"
	GrantAlreadyApplied     GrantResult = "already_applied"
	GrantNotEligible        GrantResult = "not_eligible"
	GrantStorageUnavailable GrantResult = "storage_unavailable"
)
