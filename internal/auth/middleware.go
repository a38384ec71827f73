package auth

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-fold/internal/common"
)

// Middleware attaches the bearer token subject to the request context.
type Middleware struct {
	Verifier Verifier
	Logger   zerolog.Logger
}

// Authenticate sets the user id when a valid bearer token is present. Requests
// without a token pass through anonymously; a token that fails to verify is rejected.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" || !m.Verifier.Enabled() {
			next.ServeHTTP(w, r)
			return
		}
		userID, err := m.Verifier.Verify(token)
		if err != nil {
			m.Logger.Debug().Err(err).Msg("bearer token rejected")
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(common.WithUserID(r.Context(), userID)))
	})
}

// RequireAuth rejects requests without a valid bearer token.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := m.Verifier.Verify(bearerToken(r))
		if err != nil {
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(common.WithUserID(r.Context(), userID)))
	})
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func unauthorized(w http.ResponseWriter) {
	common.JSONError(w, http.StatusUnauthorized, common.CodeUnauthorized, "missing or invalid token", nil)
}
