package payment

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-fold/internal/common"
)

func newTestRouter(t *testing.T, guardHits *int) http.Handler {
	t.Helper()
	f := newWebhookFixture(t)
	rt := Routes{
		Handler: newTestHandler(f.store, &stubGateway{}),
		Webhook: f.hook,
		Guard: []func(http.Handler) http.Handler{func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				*guardHits++
				next.ServeHTTP(w, r)
			})
		}},
		WebhookMaxBody: 512,
	}
	r := chi.NewRouter()
	rt.Mount(r, "/api/v1/payments")
	rt.Mount(r, "")
	return r
}

func TestRoutesRejectNonPost(t *testing.T) {
	hits := 0
	router := newTestRouter(t, &hits)

	for _, path := range []string{
		"/api/v1/payments/create-order",
		"/api/v1/payments/verify-payment",
		"/api/v1/payments/webhook",
		LegacyCreateOrderPath,
		LegacyVerifyPaymentPath,
		LegacyWebhookPath,
	} {
		for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
			require.Equal(t, http.StatusMethodNotAllowed, rec.Code, "%s %s", method, path)
			require.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
			require.Equal(t, common.CodeMethodNotAllowed, decodeError(t, rec).Code)
		}
	}
	require.Zero(t, hits, "405 is answered before the guard runs")
}

func TestRoutesLegacyAliasesServeSameHandlers(t *testing.T) {
	hits := 0
	router := newTestRouter(t, &hits)

	for _, path := range []string{"/api/v1/payments/create-order", LegacyCreateOrderPath} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"amount":10}`)))
		require.Equal(t, http.StatusOK, rec.Code, path)
	}

	body := verifyBody("order_r", "pay_r", "credits_1", "user_r")
	buf := `{"razorpay_order_id":"order_r","razorpay_payment_id":"pay_r","razorpay_signature":"` + body["razorpay_signature"] + `"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, LegacyVerifyPaymentPath, strings.NewReader(buf)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 3, hits)
}

func TestRoutesWebhookBodyLimit(t *testing.T) {
	hits := 0
	router := newTestRouter(t, &hits)

	big := bytes.Repeat([]byte("a"), 1024)
	req := httptest.NewRequest(http.MethodPost, LegacyWebhookPath, bytes.NewReader(big))
	req.Header.Set(SignatureHeader, Sign(big, []byte(testWebhookSecret)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	require.Equal(t, common.CodePayloadTooLarge, decodeError(t, rec).Code)

	small := paymentEvent(EventPaymentFailed, "pay_s", "order_s", `[]`)
	req = httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", bytes.NewReader(small))
	req.Header.Set(SignatureHeader, Sign(small, []byte(testWebhookSecret)))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Zero(t, hits, "webhooks bypass the client guard")
}
