package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// runStoreSuite exercises the Store contract against any backend.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("verified then duplicate verify grants once", func(t *testing.T) {
		s := newStore(t)
		p := VerifiedPayment{OrderID: "order_A", PaymentID: "pay_A", Plan: "credits_100", Credits: 100, UserID: "user-1"}

		tx, err := s.RecordVerified(ctx, p)
		require.NoError(t, err)
		require.Equal(t, StatusSuccess, tx.Status)
		require.Nil(t, tx.CreditedAt)

		res, err := s.GrantCredits(ctx, "order_A")
		require.NoError(t, err)
		require.Equal(t, GrantApplied, res)

		_, err = s.RecordVerified(ctx, p)
		require.NoError(t, err)
		res, err = s.GrantCredits(ctx, "order_A")
		require.NoError(t, err)
		require.Equal(t, GrantAlreadyApplied, res)

		profile, err := s.GetProfile(ctx, "user-1")
		require.NoError(t, err)
		require.Equal(t, 100, profile.Credits)
		require.NotNil(t, profile.CreditsUpdatedAt)
	})

	t.Run("concurrent grants increment once", func(t *testing.T) {
		s := newStore(t)
		_, err := s.RecordVerified(ctx, VerifiedPayment{OrderID: "order_C", PaymentID: "pay_C", Plan: "credits_50", Credits: 50, UserID: "user-c"})
		require.NoError(t, err)

		var wg sync.WaitGroup
		results := make(chan GrantResult, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := s.GrantCredits(ctx, "order_C")
				if err == nil {
					results <- res
				}
			}()
		}
		wg.Wait()
		close(results)

		applied := 0
		for res := range results {
			if res == GrantApplied {
				applied++
			}
		}
		require.Equal(t, 1, applied)
		profile, err := s.GetProfile(ctx, "user-c")
		require.NoError(t, err)
		require.Equal(t, 50, profile.Credits)
	})

	t.Run("failure never regresses a confirmed row", func(t *testing.T) {
		s := newStore(t)
		_, err := s.RecordVerified(ctx, VerifiedPayment{OrderID: "order_F", PaymentID: "pay_F", Plan: "credits_10", Credits: 10, UserID: "u"})
		require.NoError(t, err)
		require.NoError(t, s.RecordFailure(ctx, "order_F", "pay_forged"))

		tx, err := s.GetTransaction(ctx, "order_F")
		require.NoError(t, err)
		require.Equal(t, StatusSuccess, tx.Status)
		require.Equal(t, "pay_F", tx.PaymentID)
	})

	t.Run("failure on unknown order records failed row", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.RecordFailure(ctx, "order_X", ""))
		tx, err := s.GetTransaction(ctx, "order_X")
		require.NoError(t, err)
		require.Equal(t, StatusFailed, tx.Status)
		require.Empty(t, tx.PaymentID)

		res, err := s.GrantCredits(ctx, "order_X")
		require.NoError(t, err)
		require.Equal(t, GrantNotEligible, res)
	})

	t.Run("client then webhook converge on captured", func(t *testing.T) {
		s := newStore(t)
		_, err := s.RecordVerified(ctx, VerifiedPayment{OrderID: "order_CW", PaymentID: "pay_CW", Plan: "credits_100", Credits: 100, UserID: "u-cw"})
		require.NoError(t, err)
		tx, err := s.ApplyWebhookStatus(ctx, WebhookUpdate{PaymentID: "pay_CW", OrderID: "order_CW", Status: StatusCaptured})
		require.NoError(t, err)
		require.Equal(t, StatusCaptured, tx.Status)
		require.Equal(t, 100, tx.CreditsRequested)
	})

	t.Run("webhook then client converge on captured", func(t *testing.T) {
		s := newStore(t)
		tx, err := s.ApplyWebhookStatus(ctx, WebhookUpdate{PaymentID: "pay_WC", OrderID: "order_WC", Status: StatusCaptured})
		require.NoError(t, err)
		require.Equal(t, StatusCaptured, tx.Status)
		require.Empty(t, tx.UserID)

		res, err := s.GrantCredits(ctx, "order_WC")
		require.NoError(t, err)
		require.Equal(t, GrantNotEligible, res, "no user yet")

		tx, err = s.RecordVerified(ctx, VerifiedPayment{OrderID: "order_WC", PaymentID: "pay_WC", Plan: "credits_100", Credits: 100, UserID: "u-wc"})
		require.NoError(t, err)
		require.Equal(t, StatusCaptured, tx.Status)

		res, err = s.GrantCredits(ctx, "order_WC")
		require.NoError(t, err)
		require.Equal(t, GrantApplied, res)
	})

	t.Run("webhook notes supply user and plan", func(t *testing.T) {
		s := newStore(t)
		tx, err := s.ApplyWebhookStatus(ctx, WebhookUpdate{
			PaymentID: "pay_N", OrderID: "order_N", Status: StatusCaptured,
			Plan: "credits_25", Credits: 25, UserID: "u-n",
		})
		require.NoError(t, err)
		require.True(t, tx.Eligible())

		pending, err := s.ListUncredited(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		require.Equal(t, "order_N", pending[0].OrderID)

		res, err := s.GrantCredits(ctx, "order_N")
		require.NoError(t, err)
		require.Equal(t, GrantApplied, res)

		pending, err = s.ListUncredited(ctx, 10)
		require.NoError(t, err)
		require.Empty(t, pending)
	})

	t.Run("webhook last event wins", func(t *testing.T) {
		s := newStore(t)
		_, err := s.ApplyWebhookStatus(ctx, WebhookUpdate{PaymentID: "pay_L", OrderID: "order_L", Status: StatusCaptured})
		require.NoError(t, err)
		tx, err := s.ApplyWebhookStatus(ctx, WebhookUpdate{PaymentID: "pay_L", OrderID: "order_L", Status: StatusFailed})
		require.NoError(t, err)
		require.Equal(t, StatusFailed, tx.Status)
	})

	t.Run("webhook without order id matches the confirmed payment", func(t *testing.T) {
		s := newStore(t)
		_, err := s.RecordVerified(ctx, VerifiedPayment{OrderID: "order_P", PaymentID: "pay_P", Plan: "credits_5", Credits: 5, UserID: "u-p"})
		require.NoError(t, err)
		tx, err := s.ApplyWebhookStatus(ctx, WebhookUpdate{PaymentID: "pay_P", Status: StatusCaptured})
		require.NoError(t, err)
		require.Equal(t, "order_P", tx.OrderID)
		require.Equal(t, StatusCaptured, tx.Status)
	})

	t.Run("webhook lands on its own order, not a forged failure row", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.RecordFailure(ctx, "order_fake", "pay_real"))

		tx, err := s.ApplyWebhookStatus(ctx, WebhookUpdate{
			PaymentID: "pay_real", OrderID: "order_real", Status: StatusCaptured,
			Plan: "credits_100", Credits: 100, UserID: "u1",
		})
		require.NoError(t, err)
		require.Equal(t, "order_real", tx.OrderID)
		res, err := s.GrantCredits(ctx, "order_real")
		require.NoError(t, err)
		require.Equal(t, GrantApplied, res)

		tx, err = s.RecordVerified(ctx, VerifiedPayment{OrderID: "order_real", PaymentID: "pay_real", Plan: "credits_100", Credits: 100, UserID: "u1"})
		require.NoError(t, err)
		require.Equal(t, StatusCaptured, tx.Status)
		res, err = s.GrantCredits(ctx, "order_real")
		require.NoError(t, err)
		require.Equal(t, GrantAlreadyApplied, res)

		fake, err := s.GetTransaction(ctx, "order_fake")
		require.NoError(t, err)
		require.Equal(t, StatusFailed, fake.Status)
		require.Empty(t, fake.UserID)
		require.Nil(t, fake.CreditedAt)

		profile, err := s.GetProfile(ctx, "u1")
		require.NoError(t, err)
		require.Equal(t, 100, profile.Credits)
	})

	t.Run("webhook for another attempt leaves a confirmed row alone", func(t *testing.T) {
		s := newStore(t)
		_, err := s.RecordVerified(ctx, VerifiedPayment{OrderID: "order_O", PaymentID: "pay_B", Plan: "credits_20", Credits: 20, UserID: "u-o"})
		require.NoError(t, err)

		tx, err := s.ApplyWebhookStatus(ctx, WebhookUpdate{PaymentID: "pay_A", OrderID: "order_O", Status: StatusFailed})
		require.ErrorIs(t, err, ErrStaleAttempt)
		require.Equal(t, "pay_B", tx.PaymentID)

		tx, err = s.GetTransaction(ctx, "order_O")
		require.NoError(t, err)
		require.Equal(t, StatusSuccess, tx.Status)
		require.Equal(t, "pay_B", tx.PaymentID)
	})

	t.Run("signed attempt replaces an unverified payment id", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.RecordFailure(ctx, "order_R", "pay_guess"))

		tx, err := s.ApplyWebhookStatus(ctx, WebhookUpdate{PaymentID: "pay_R", OrderID: "order_R", Status: StatusCaptured})
		require.NoError(t, err)
		require.Equal(t, StatusCaptured, tx.Status)
		require.Equal(t, "pay_R", tx.PaymentID)
	})

	t.Run("webhook without order id ignores unconfirmed rows", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.RecordFailure(ctx, "order_U", "pay_U"))

		_, err := s.ApplyWebhookStatus(ctx, WebhookUpdate{PaymentID: "pay_U", Status: StatusCaptured})
		require.ErrorIs(t, err, ErrNotFound)
		tx, err := s.GetTransaction(ctx, "order_U")
		require.NoError(t, err)
		require.Equal(t, StatusFailed, tx.Status)
	})

	t.Run("webhook without any key is not found", func(t *testing.T) {
		s := newStore(t)
		_, err := s.ApplyWebhookStatus(ctx, WebhookUpdate{PaymentID: "pay_missing", Status: StatusFailed})
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("zero credits never increments", func(t *testing.T) {
		s := newStore(t)
		_, err := s.RecordVerified(ctx, VerifiedPayment{OrderID: "order_Z", PaymentID: "pay_Z", Plan: "pro", UserID: "u-z"})
		require.NoError(t, err)
		res, err := s.GrantCredits(ctx, "order_Z")
		require.NoError(t, err)
		require.Equal(t, GrantNotEligible, res)
		_, err = s.GetProfile(ctx, "u-z")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("credits accumulate across orders", func(t *testing.T) {
		s := newStore(t)
		for _, id := range []string{"order_1", "order_2"} {
			_, err := s.RecordVerified(ctx, VerifiedPayment{OrderID: id, PaymentID: "pay_" + id, Plan: "credits_30", Credits: 30, UserID: "u-acc"})
			require.NoError(t, err)
			res, err := s.GrantCredits(ctx, id)
			require.NoError(t, err)
			require.Equal(t, GrantApplied, res)
		}
		profile, err := s.GetProfile(ctx, "u-acc")
		require.NoError(t, err)
		require.Equal(t, 60, profile.Credits)
	})

	t.Run("unknown order is not eligible", func(t *testing.T) {
		s := newStore(t)
		res, err := s.GrantCredits(ctx, "order_nope")
		require.NoError(t, err)
		require.Equal(t, GrantNotEligible, res)
		_, err = s.GetTransaction(ctx, "order_nope")
		require.ErrorIs(t, err, ErrNotFound)
	})
}
