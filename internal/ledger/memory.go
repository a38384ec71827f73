package ledger

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for tests and local development.
// A single mutex gives it the same atomicity as the Postgres row locks.
type MemoryStore struct {
	mu       sync.Mutex
	byOrder  map[string]*Transaction
	profiles map[string]*Profile
	now      func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byOrder:  make(map[string]*Transaction),
		profiles: make(map[string]*Profile),
		now:      time.Now,
	}
}

func (m *MemoryStore) insertLocked(orderID string, status Status) *Transaction {
	now := m.now()
	tx := &Transaction{
		ID:        uuid.New(),
		OrderID:   orderID,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.byOrder[orderID] = tx
	return tx
}

// RecordVerified implements Store.
func (m *MemoryStore) RecordVerified(_ context.Context, p VerifiedPayment) (Transaction, error) {
	if p.OrderID == "" {
		return Transaction{}, errors.New("ledger: order id required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.byOrder[p.OrderID]
	if !ok {
		tx = m.insertLocked(p.OrderID, StatusSuccess)
	}
	if p.PaymentID != "" {
		tx.PaymentID = p.PaymentID
	}
	if p.Plan != "" {
		tx.Plan = p.Plan
	}
	if p.Credits > 0 {
		tx.CreditsRequested = p.Credits
	}
	if p.UserID != "" {
		tx.UserID = p.UserID
	}
	if tx.Status != StatusCaptured {
		tx.Status = StatusSuccess
	}
	tx.UpdatedAt = m.now()
	return *tx, nil
}

// RecordFailure implements Store.
func (m *MemoryStore) RecordFailure(_ context.Context, orderID, paymentID string) error {
	if orderID == "" {
		return errors.New("ledger: order id required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.byOrder[orderID]
	if !ok {
		tx = m.insertLocked(orderID, StatusFailed)
	}
	if !tx.Status.Confirmed() {
		tx.Status = StatusFailed
		if paymentID != "" {
			tx.PaymentID = paymentID
		}
	}
	tx.UpdatedAt = m.now()
	return nil
}

// ApplyWebhookStatus implements Store.
func (m *MemoryStore) ApplyWebhookStatus(_ context.Context, u WebhookUpdate) (Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var tx *Transaction
	switch {
	case u.OrderID != "":
		tx = m.byOrder[u.OrderID]
		if tx == nil {
			tx = m.insertLocked(u.OrderID, u.Status)
		}
	case u.PaymentID != "":
		for _, candidate := range m.byOrder {
			if candidate.PaymentID == u.PaymentID && candidate.Status.Confirmed() {
				tx = candidate
				break
			}
		}
	}
	if tx == nil {
		return Transaction{}, ErrNotFound
	}
	if otherAttempt(*tx, u.PaymentID) {
		return *tx, ErrStaleAttempt
	}

	tx.Status = u.Status
	if u.PaymentID != "" {
		tx.PaymentID = u.PaymentID
	}
	if tx.Plan == "" {
		tx.Plan = u.Plan
	}
	if tx.CreditsRequested == 0 {
		tx.CreditsRequested = u.Credits
	}
	if tx.UserID == "" {
		tx.UserID = u.UserID
	}
	tx.UpdatedAt = m.now()
	return *tx, nil
}

// GrantCredits implements Store.
func (m *MemoryStore) GrantCredits(_ context.Context, orderID string) (GrantResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.byOrder[orderID]
	if !ok {
		return GrantNotEligible, nil
	}
	if tx.CreditedAt != nil {
		return GrantAlreadyApplied, nil
	}
	if !tx.Eligible() {
		return GrantNotEligible, nil
	}
	now := m.now()
	tx.CreditedAt = &now
	tx.UpdatedAt = now

	profile, ok := m.profiles[tx.UserID]
	if !ok {
		profile = &Profile{UserID: tx.UserID}
		m.profiles[tx.UserID] = profile
	}
	profile.Credits += tx.CreditsRequested
	day := now.UTC().Truncate(24 * time.Hour)
	profile.CreditsUpdatedAt = &day
	return GrantApplied, nil
}

// GetTransaction implements Store.
func (m *MemoryStore) GetTransaction(_ context.Context, orderID string) (Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.byOrder[orderID]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return *tx, nil
}

// GetProfile implements Store.
func (m *MemoryStore) GetProfile(_ context.Context, userID string) (Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return *p, nil
}

// ListUncredited implements Store.
func (m *MemoryStore) ListUncredited(_ context.Context, limit int) ([]Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Transaction, 0)
	for _, tx := range m.byOrder {
		if tx.CreditedAt == nil && tx.Eligible() {
			out = append(out, *tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
