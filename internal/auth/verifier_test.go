package auth

import (
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"
)

const (
	testSecret   = "supabase-jwt-secret"
	testIssuer   = "https://project.supabase.co/auth/v1"
	testAudience = "authenticated"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testVerifier() Verifier {
	return Verifier{
		Secret:   []byte(testSecret),
		Issuer:   testIssuer,
		Audience: testAudience,
		Skew:     30 * time.Second,
		Now:      func() time.Time { return fixedNow },
	}
}

type tokenOpts struct {
	subject  string
	issuer   string
	audience string
	expires  time.Time
	alg      jwa.SignatureAlgorithm
	secret   string
}

func signToken(t *testing.T, o tokenOpts) string {
	t.Helper()
	if o.issuer == "" {
		o.issuer = testIssuer
	}
	if o.audience == "" {
		o.audience = testAudience
	}
	if o.expires.IsZero() {
		o.expires = fixedNow.Add(time.Hour)
	}
	if o.alg == "" {
		o.alg = jwa.HS256
	}
	if o.secret == "" {
		o.secret = testSecret
	}
	builder := jwt.NewBuilder().
		Issuer(o.issuer).
		Audience([]string{o.audience}).
		IssuedAt(fixedNow.Add(-time.Minute)).
		Expiration(o.expires)
	if o.subject != "" {
		builder = builder.Subject(o.subject)
	}
	tok, err := builder.Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(o.alg, []byte(o.secret)))
	require.NoError(t, err)
	return string(signed)
}

func TestVerifierAcceptsSupabaseToken(t *testing.T) {
	subject, err := testVerifier().Verify(signToken(t, tokenOpts{subject: "4f6d3c1e-user"}))
	require.NoError(t, err)
	require.Equal(t, "4f6d3c1e-user", subject)
}

func TestVerifierRejects(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"garbage":        "not.a.jwt",
		"wrong secret":   signToken(t, tokenOpts{subject: "u", secret: "other"}),
		"wrong alg":      signToken(t, tokenOpts{subject: "u", alg: jwa.HS384}),
		"expired":        signToken(t, tokenOpts{subject: "u", expires: fixedNow.Add(-time.Minute)}),
		"wrong issuer":   signToken(t, tokenOpts{subject: "u", issuer: "https://evil.example"}),
		"wrong audience": signToken(t, tokenOpts{subject: "u", audience: "anon"}),
		"no subject":     signToken(t, tokenOpts{}),
	}
	v := testVerifier()
	for name, token := range cases {
		_, err := v.Verify(token)
		require.ErrorIs(t, err, ErrInvalidToken, name)
	}
}

func TestVerifierSkewToleratesRecentExpiry(t *testing.T) {
	token := signToken(t, tokenOpts{subject: "u", expires: fixedNow.Add(-10 * time.Second)})
	_, err := testVerifier().Verify(token)
	require.NoError(t, err)
}

func TestVerifierDisabledWithoutSecret(t *testing.T) {
	v := Verifier{}
	require.False(t, v.Enabled())
	_, err := v.Verify(signToken(t, tokenOpts{subject: "u"}))
	require.ErrorIs(t, err, ErrInvalidToken)
}
