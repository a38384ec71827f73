package payment

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-fold/internal/common"
	"github.com/noah-isme/backend-fold/internal/ledger"
	"github.com/noah-isme/backend-fold/internal/obs"
)

// Handler serves the create-order and verify-payment endpoints.
type Handler struct {
	Gateway         Gateway
	Ledger          *ledger.Service
	KeySecret       string
	DefaultCurrency string
	Validate        *validator.Validate
	Logger          zerolog.Logger
}

type createOrderReq struct {
	Amount   int64          `json:"amount" validate:"gt=0,lte=1000000000"`
	Currency string         `json:"currency" validate:"omitempty,len=3,alpha"`
	Receipt  string         `json:"receipt" validate:"omitempty,max=40"`
	Notes    map[string]any `json:"notes" validate:"omitempty,max=15"`
}

type verifyReq struct {
	OrderID   string `json:"razorpay_order_id" validate:"required"`
	PaymentID string `json:"razorpay_payment_id" validate:"required"`
	Signature string `json:"razorpay_signature" validate:"required"`
	Plan      string `json:"plan"`
	UserID    string `json:"user_id"`
}

type verifyResp struct {
	Success bool               `json:"success"`
	OrderID string             `json:"orderId,omitempty"`
	Grant   ledger.GrantResult `json:"grant,omitempty"`
}

var defaultValidator = common.NewValidator()

func (h *Handler) validator() *validator.Validate {
	if h.Validate != nil {
		return h.Validate
	}
	return defaultValidator
}

// decodeBody decodes a JSON object. An empty body decodes as {}.
func decodeBody(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// CreateOrder opens a provider order and returns it verbatim. Nothing is persisted.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderReq
	if err := decodeBody(r, &req); err != nil {
		common.WriteError(w, common.InvalidInput("amount", "amount must be a positive integer"))
		return
	}
	if err := h.validator().Struct(req); err != nil {
		field := "amount"
		if fes := common.FieldErrors(err); len(fes) > 0 {
			field = fes[0].Field
		}
		common.WriteError(w, common.InvalidInput(field, invalidMessage(field)))
		return
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = h.DefaultCurrency
	}
	if currency == "" {
		currency = "INR"
	}
	receipt := strings.TrimSpace(req.Receipt)
	if receipt == "" {
		receipt = "rcpt_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
	}

	order, err := h.Gateway.CreateOrder(r.Context(), OrderRequest{
		Amount:   MinorUnits(req.Amount, currency),
		Currency: currency,
		Receipt:  receipt,
		Notes:    req.Notes,
	})
	if err != nil {
		obs.Inc(obs.PaymentOrderTotal, currency, "error")
		h.Logger.Error().Err(err).Str("currency", currency).Str("receipt", receipt).Msg("create order failed")
		common.WriteError(w, upstreamAppError(err))
		return
	}
	obs.Inc(obs.PaymentOrderTotal, currency, "ok")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(order)
}

func invalidMessage(field string) string {
	switch field {
	case "amount":
		return "amount must be a positive integer"
	case "currency":
		return "currency must be a three-letter ISO code"
	case "receipt":
		return "receipt must be at most 40 characters"
	case "notes":
		return "notes may hold at most 15 entries"
	default:
		return field + " is invalid"
	}
}

// VerifyPayment checks the checkout signature and settles the ledger.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyReq
	ctx := r.Context()
	defer func() {
		if rec := recover(); rec != nil {
			h.Logger.Error().Interface("panic", rec).Str("order_id", req.OrderID).Msg("verify payment panic")
			obs.Inc(obs.PaymentVerifyTotal, "error")
			h.markFailed(ctx, req.OrderID, req.PaymentID)
			common.WriteError(w, errVerifyInternal.WithOrder(req.OrderID))
		}
	}()

	if err := decodeBody(r, &req); err != nil {
		common.WriteError(w, common.InvalidInput("body", "request body must be a JSON object"))
		return
	}
	req.OrderID = strings.TrimSpace(req.OrderID)
	req.PaymentID = strings.TrimSpace(req.PaymentID)
	req.Signature = strings.TrimSpace(req.Signature)

	if err := h.validator().Struct(req); err != nil {
		fes := common.FieldErrors(err)
		missing := make([]string, 0, len(fes))
		for _, fe := range fes {
			missing = append(missing, fe.Field)
		}
		obs.Inc(obs.PaymentVerifyTotal, "missing_parameters")
		common.WriteError(w, missingParameters(missing))
		return
	}

	logger := h.Logger.With().Str("order_id", req.OrderID).Str("payment_id", req.PaymentID).Logger()

	if !Verify(ClientMessage(req.OrderID, req.PaymentID), []byte(h.KeySecret), req.Signature) {
		logger.Warn().Msg("payment signature mismatch")
		obs.Inc(obs.PaymentVerifyTotal, "signature_mismatch")
		h.markFailed(ctx, req.OrderID, req.PaymentID)
		common.WriteError(w, verificationFailed(req.OrderID))
		return
	}

	userID := h.resolveUser(ctx, logger, strings.TrimSpace(req.UserID))
	if _, err := h.Ledger.Store.RecordVerified(ctx, ledger.VerifiedPayment{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Plan:      strings.TrimSpace(req.Plan),
		Credits:   ParseCredits(req.Plan),
		UserID:    userID,
	}); err != nil {
		logger.Error().Err(err).Msg("record verified payment failed")
		obs.Inc(obs.PaymentVerifyTotal, "storage_error")
		h.markFailed(ctx, req.OrderID, req.PaymentID)
		common.WriteError(w, errDatabase.WithOrder(req.OrderID))
		return
	}

	grant := h.Ledger.Grant(ctx, req.OrderID, ledger.SourceClient)
	obs.Inc(obs.PaymentVerifyTotal, "ok")
	logger.Info().Str("grant", string(grant)).Msg("payment verified")
	common.JSON(w, http.StatusOK, verifyResp{Success: true, OrderID: req.OrderID, Grant: grant})
}

// resolveUser prefers the authenticated caller over the body-supplied user id.
func (h *Handler) resolveUser(ctx context.Context, logger zerolog.Logger, bodyUser string) string {
	tokenUser, _ := common.UserID(ctx)
	switch {
	case tokenUser == "":
		return bodyUser
	case bodyUser != "" && bodyUser != tokenUser:
		logger.Warn().Str("body_user_id", bodyUser).Str("token_user_id", tokenUser).Msg("user_id does not match token subject; using token")
	}
	return tokenUser
}

// markFailed is best effort: errors are logged, not returned.
func (h *Handler) markFailed(ctx context.Context, orderID, paymentID string) {
	if orderID == "" || h.Ledger == nil {
		return
	}
	if err := h.Ledger.Store.RecordFailure(ctx, orderID, paymentID); err != nil {
		h.Logger.Error().Err(err).Str("order_id", orderID).Msg("record payment failure failed")
	}
}
