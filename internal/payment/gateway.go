package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/backend-fold/internal/resilience"
)

// OrderRequest is the provider order payload. Amount is already in the smallest unit.
type OrderRequest struct {
	Amount   int64          `json:"amount"`
	Currency string         `json:"currency"`
	Receipt  string         `json:"receipt,omitempty"`
	Notes    map[string]any `json:"notes,omitempty"`
}

// Gateway creates orders with the payment provider.
type Gateway interface {
	// CreateOrder returns the provider's order object untouched.
	CreateOrder(ctx context.Context, req OrderRequest) (json.RawMessage, error)
}

// RazorpayGateway talks to the Razorpay Orders REST API.
type RazorpayGateway struct {
	KeyID     string
	KeySecret string
	BaseURL   string
	HTTP      resilience.HTTPClient
}

const maxProviderBody = 1 << 20

// CreateOrder implements Gateway.
func (g RazorpayGateway) CreateOrder(ctx context.Context, req OrderRequest) (json.RawMessage, error) {
	ctx, span := otel.Tracer("payment").Start(ctx, "razorpay.create_order")
	defer span.End()
	span.SetAttributes(attribute.String("currency", req.Currency), attribute.Int64("amount", req.Amount))

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode order: %w", err)
	}
	base := strings.TrimRight(g.BaseURL, "/")
	if base == "" {
		base = "https://api.razorpay.com"
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/v1/orders", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build order request: %w", err)
	}
	httpReq.SetBasicAuth(g.KeyID, g.KeySecret)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := g.HTTP.Do(ctx, httpReq)
	if err != nil {
		span.RecordError(err)
		return nil, &UpstreamError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderBody))
	if err != nil {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read order response: %w", err)}
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		upErr := &UpstreamError{StatusCode: resp.StatusCode}
		var envelope struct {
			Error struct {
				Code        string `json:"code"`
				Description string `json:"description"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &envelope) == nil {
			upErr.Code = envelope.Error.Code
			upErr.Description = envelope.Error.Description
		}
		span.RecordError(upErr)
		return nil, upErr
	}
	if !json.Valid(body) {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Err: fmt.Errorf("order response is not JSON")}
	}
	return json.RawMessage(body), nil
}
