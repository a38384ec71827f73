package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// ErrInvalidToken is returned for any token that does not verify.
var ErrInvalidToken = errors.New("auth: invalid token")

// Verifier checks Supabase access tokens, which are HS256 JWTs signed with the project's JWT secret.
type Verifier struct {
	Secret   []byte
	Issuer   string
	Audience string
	Skew     time.Duration
	Now      func() time.Time
}

// Enabled reports whether a signing secret is configured.
func (v Verifier) Enabled() bool { return len(v.Secret) > 0 }

// Verify validates signature, expiry, issuer and audience and returns the token subject.
func (v Verifier) Verify(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" || !v.Enabled() {
		return "", ErrInvalidToken
	}
	parsed, err := jwt.ParseString(token, jwt.WithKey(jwa.HS256, v.Secret), jwt.WithValidate(false))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	opts := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(now)),
		jwt.WithRequiredClaim(jwt.ExpirationKey),
	}
	if v.Skew > 0 {
		opts = append(opts, jwt.WithAcceptableSkew(v.Skew))
	}
	if v.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.Audience))
	}
	if err := jwt.Validate(parsed, opts...); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	subject := strings.TrimSpace(parsed.Subject())
	if subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return subject, nil
}
