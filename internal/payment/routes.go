package payment

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-fold/internal/common"
	"github.com/noah-isme/backend-fold/internal/security"
)

// Routes mounts the payment endpoints on a router.
type Routes struct {
	Handler *Handler
	Webhook Webhook

	// Guard wraps create-order and verify-payment, typically the rate limiter.
	Guard []func(http.Handler) http.Handler
	// Idempotency wraps create-order only.
	Idempotency func(http.Handler) http.Handler
	// Identity attaches the bearer token subject to verify-payment when present.
	Identity func(http.Handler) http.Handler

	WebhookMaxBody int64
}

// Legacy paths served alongside the versioned ones.
const (
	LegacyCreateOrderPath   = "/api/create-order"
	LegacyVerifyPaymentPath = "/api/verify-payment"
	LegacyWebhookPath       = "/api/webhook"
)

// Mount registers the endpoints under prefix. An empty prefix registers the
// legacy /api/* aliases instead.
func (rt Routes) Mount(r chi.Router, prefix string) {
	createOrder, verify, webhook := rt.handlers()
	if prefix == "" {
		r.Handle(LegacyCreateOrderPath, createOrder)
		r.Handle(LegacyVerifyPaymentPath, verify)
		r.Handle(LegacyWebhookPath, webhook)
		return
	}
	r.Handle(prefix+"/create-order", createOrder)
	r.Handle(prefix+"/verify-payment", verify)
	r.Handle(prefix+"/webhook", webhook)
}

func (rt Routes) handlers() (createOrder, verify, webhook http.Handler) {
	createOrder = http.HandlerFunc(rt.Handler.CreateOrder)
	if rt.Idempotency != nil {
		createOrder = rt.Idempotency(createOrder)
	}
	createOrder = chi.Chain(rt.Guard...).Handler(createOrder)

	verify = http.HandlerFunc(rt.Handler.VerifyPayment)
	if rt.Identity != nil {
		verify = rt.Identity(verify)
	}
	verify = chi.Chain(rt.Guard...).Handler(verify)

	webhook = http.HandlerFunc(rt.Webhook.Handle)
	if rt.WebhookMaxBody > 0 {
		webhook = security.BodyLimit{Max: rt.WebhookMaxBody}.Middleware(webhook)
	}
	return postOnly(createOrder), postOnly(verify), postOnly(webhook)
}

// postOnly rejects every method but POST before any other middleware runs.
func postOnly(next http.Handler) http.Handler {
	reject := common.MethodNotAllowed(http.MethodPost)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			reject(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
