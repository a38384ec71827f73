package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-fold/internal/common"
)

func echoUser(w http.ResponseWriter, r *http.Request) {
	id, _ := common.UserID(r.Context())
	_, _ = w.Write([]byte(id))
}

func serve(t *testing.T, h http.Handler, authorization string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticateAttachesSubject(t *testing.T) {
	m := Middleware{Verifier: testVerifier(), Logger: zerolog.Nop()}
	h := m.Authenticate(http.HandlerFunc(echoUser))

	rec := serve(t, h, "Bearer "+signToken(t, tokenOpts{subject: "user-1"}))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "user-1", rec.Body.String())

	rec = serve(t, h, "bearer "+signToken(t, tokenOpts{subject: "user-2"}))
	require.Equal(t, "user-2", rec.Body.String())
}

func TestAuthenticateAllowsAnonymous(t *testing.T) {
	m := Middleware{Verifier: testVerifier(), Logger: zerolog.Nop()}
	rec := serve(t, m.Authenticate(http.HandlerFunc(echoUser)), "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Body.String())
}

func TestAuthenticateRejectsBadToken(t *testing.T) {
	m := Middleware{Verifier: testVerifier(), Logger: zerolog.Nop()}
	rec := serve(t, m.Authenticate(http.HandlerFunc(echoUser)), "Bearer "+signToken(t, tokenOpts{subject: "u", secret: "forged"}))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), common.CodeUnauthorized)
}

func TestAuthenticateIgnoresTokensWhenDisabled(t *testing.T) {
	m := Middleware{Logger: zerolog.Nop()}
	rec := serve(t, m.Authenticate(http.HandlerFunc(echoUser)), "Bearer whatever")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Body.String())
}

func TestRequireAuth(t *testing.T) {
	m := Middleware{Verifier: testVerifier(), Logger: zerolog.Nop()}
	h := m.RequireAuth(http.HandlerFunc(echoUser))

	require.Equal(t, http.StatusUnauthorized, serve(t, h, "").Code)
	require.Equal(t, http.StatusUnauthorized, serve(t, h, "Basic dXNlcjpwYXNz").Code)

	rec := serve(t, h, "Bearer "+signToken(t, tokenOpts{subject: "user-3"}))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "user-3", rec.Body.String())
}
