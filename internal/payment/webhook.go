package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-fold/internal/common"
	"github.com/noah-isme/backend-fold/internal/ledger"
	"github.com/noah-isme/backend-fold/internal/obs"
)

// SignatureHeader carries the webhook HMAC.
const SignatureHeader = "X-Razorpay-Signature"

const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
)

// Webhook ingests Razorpay event callbacks.
type Webhook struct {
	Secret    string
	Ledger    *ledger.Service
	Replay    *redis.Client
	ReplayTTL time.Duration
	Logger    zerolog.Logger
}

type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity paymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

type paymentEntity struct {
	ID       string          `json:"id"`
	OrderID  string          `json:"order_id"`
	Amount   int64           `json:"amount"`
	Currency string          `json:"currency"`
	Status   string          `json:"status"`
	Notes    json.RawMessage `json:"notes"`
}

// notes returns the entity's string notes. Razorpay sends [] when there are none.
func (p paymentEntity) notes() map[string]string {
	trimmed := bytes.TrimSpace(p.Notes)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	var raw map[string]any
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch tv := v.(type) {
		case string:
			out[k] = strings.TrimSpace(tv)
		case nil:
		default:
			out[k] = fmt.Sprint(tv)
		}
	}
	return out
}

type webhookAck struct {
	Received  bool `json:"received"`
	Duplicate bool `json:"duplicate,omitempty"`
}

// Handle verifies the raw body against the signature header and applies the event.
// Once the signature verifies the response is always 200.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	signature := strings.TrimSpace(r.Header.Get(SignatureHeader))
	if signature == "" {
		obs.Inc(obs.PaymentWebhookTotal, "unknown", "missing_signature")
		common.WriteError(w, errMissingSignature)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		common.WriteError(w, common.InvalidInput("body", "unable to read request body"))
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		obs.Inc(obs.PaymentWebhookTotal, "unknown", "missing_body")
		common.WriteError(w, errMissingBody)
		return
	}
	if !Verify(body, []byte(h.Secret), signature) {
		obs.Inc(obs.PaymentWebhookTotal, "unknown", "invalid_signature")
		h.Logger.Warn().Str("remote_addr", common.ClientIP(r)).Msg("webhook signature mismatch")
		common.WriteError(w, errInvalidSignature)
		return
	}

	var evt webhookEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		obs.Inc(obs.PaymentWebhookTotal, "unknown", "malformed")
		h.Logger.Error().Err(err).Msg("webhook body is not valid JSON")
		common.JSON(w, http.StatusOK, webhookAck{Received: true})
		return
	}
	label := eventLabel(evt.Event)

	ctx := r.Context()
	replayKey := "wh:razorpay:" + common.Sha256Hex(string(body))
	if h.seen(ctx, replayKey) {
		obs.Inc(obs.PaymentWebhookTotal, label, "duplicate")
		h.Logger.Info().Str("event", evt.Event).Msg("webhook redelivery ignored")
		common.JSON(w, http.StatusOK, webhookAck{Received: true, Duplicate: true})
		return
	}

	result := h.apply(ctx, evt)
	if result == "storage_error" {
		h.forget(replayKey)
	}
	obs.Inc(obs.PaymentWebhookTotal, label, result)
	common.JSON(w, http.StatusOK, webhookAck{Received: true})
}

func (h Webhook) apply(ctx context.Context, evt webhookEvent) string {
	entity := evt.Payload.Payment.Entity
	logger := h.Logger.With().
		Str("event", evt.Event).
		Str("payment_id", entity.ID).
		Str("order_id", entity.OrderID).
		Logger()

	var status ledger.Status
	switch evt.Event {
	case EventPaymentCaptured:
		status = ledger.StatusCaptured
	case EventPaymentFailed:
		status = ledger.StatusFailed
	default:
		logger.Info().Msg("webhook event ignored")
		return "ignored"
	}

	update := ledger.WebhookUpdate{PaymentID: entity.ID, OrderID: entity.OrderID, Status: status}
	if notes := entity.notes(); notes != nil {
		update.UserID = notes["user_id"]
		update.Plan = notes["plan"]
		update.Credits = ParseCredits(update.Plan)
	}
	tx, err := h.Ledger.Store.ApplyWebhookStatus(ctx, update)
	if errors.Is(err, ledger.ErrNotFound) {
		logger.Warn().Msg("webhook matched no transaction and carries no order id")
		return "unmatched"
	}
	if errors.Is(err, ledger.ErrStaleAttempt) {
		logger.Warn().Str("status", string(tx.Status)).Str("confirmed_payment_id", tx.PaymentID).
			Msg("webhook names another payment attempt; order left unchanged")
		return "stale_attempt"
	}
	if err != nil {
		logger.Error().Err(err).Msg("webhook status update failed")
		return "storage_error"
	}
	logger.Info().Str("status", string(tx.Status)).Msg("webhook applied")

	if status == ledger.StatusCaptured {
		if grant := h.Ledger.Grant(ctx, tx.OrderID, ledger.SourceWebhook); grant == ledger.GrantStorageUnavailable {
			return "storage_error"
		}
	}
	return "ok"
}

// seen records the body digest and reports whether it was already present.
// Redis failures are logged and treated as unseen; the ledger writes are idempotent.
func (h Webhook) seen(ctx context.Context, key string) bool {
	if h.Replay == nil || h.ReplayTTL <= 0 {
		return false
	}
	fresh, err := h.Replay.SetNX(ctx, key, "1", h.ReplayTTL).Result()
	if err != nil {
		h.Logger.Warn().Err(err).Msg("webhook replay guard unavailable")
		return false
	}
	return !fresh
}

// forget drops the replay marker so a manual redelivery can be applied.
func (h Webhook) forget(key string) {
	if h.Replay == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = h.Replay.Del(ctx, key).Err()
}

func eventLabel(event string) string {
	switch event {
	case EventPaymentCaptured, EventPaymentFailed:
		return event
	case "":
		return "unknown"
	default:
		return "other"
	}
}
