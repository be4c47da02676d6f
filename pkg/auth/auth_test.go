package auth_test

import (
	"context"
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/focusforward/caseguard/pkg/auth"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func hmacValidator(t *testing.T) (*auth.HMACKeySet, *auth.JWTValidator) {
	t.Helper()
	ks, err := auth.NewHMACKeySet([]byte(testSecret))
	require.NoError(t, err)
	return ks, auth.NewJWTValidator(ks)
}

func TestHMACKeySet_RejectsShortSecret(t *testing.T) {
	_, err := auth.NewHMACKeySet([]byte("short"))
	require.Error(t, err)
}

func TestJWTValidator_RoundTrip(t *testing.T) {
	ks, v := hmacValidator(t)
	tok, err := auth.IssueToken(context.Background(), ks, "dr.rao@example.org", time.Hour)
	require.NoError(t, err)

	p, err := v.Validate(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "dr.rao@example.org", p.Email)
	assert.Equal(t, auth.Issuer, p.Issuer)
}

func TestJWTValidator_DerivedKeyIsNotTheSecret(t *testing.T) {
	_, v := hmacValidator(t)
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    auth.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Email: "a@b.c",
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = v.Validate(context.Background(), raw)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestJWTValidator_Rejects(t *testing.T) {
	ks, v := hmacValidator(t)
	ctx := context.Background()

	expired, err := auth.IssueToken(ctx, ks, "a@b.c", -time.Hour)
	require.NoError(t, err)
	_, err = v.Validate(ctx, expired)
	assert.ErrorIs(t, err, auth.ErrInvalidToken, "expired")

	noEmail, err := ks.Sign(ctx, auth.Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    auth.Issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})
	require.NoError(t, err)
	_, err = v.Validate(ctx, noEmail)
	assert.ErrorIs(t, err, auth.ErrNoEmail)

	foreign, err := ks.Sign(ctx, auth.Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}, Email: "a@b.c"})
	require.NoError(t, err)
	_, err = v.Validate(ctx, foreign)
	assert.ErrorIs(t, err, auth.ErrInvalidToken, "wrong issuer")

	_, err = v.Validate(ctx, "not.a.token")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestEd25519KeySet_Rotation(t *testing.T) {
	ks, err := auth.NewEd25519KeySet()
	require.NoError(t, err)
	v := auth.NewJWTValidator(ks)
	ctx := context.Background()

	old, err := auth.IssueToken(ctx, ks, "a@b.c", time.Hour)
	require.NoError(t, err)
	require.NoError(t, ks.Rotate())
	fresh, err := auth.IssueToken(ctx, ks, "a@b.c", time.Hour)
	require.NoError(t, err)

	_, err = v.Validate(ctx, old)
	assert.NoError(t, err, "rotated key still verifies")
	_, err = v.Validate(ctx, fresh)
	assert.NoError(t, err)

	// An HMAC token must not verify against the EdDSA set.
	hks, _ := hmacValidator(t)
	other, err := auth.IssueToken(ctx, hks, "a@b.c", time.Hour)
	require.NoError(t, err)
	_, err = v.Validate(ctx, other)
	assert.Error(t, err)
}

func TestChain(t *testing.T) {
	hks, hv := hmacValidator(t)
	eks, err := auth.NewEd25519KeySet()
	require.NoError(t, err)
	chain := auth.Chain{hv, auth.NewJWTValidator(eks)}
	ctx := context.Background()

	for _, ks := range []auth.KeySet{hks, eks} {
		tok, err := auth.IssueToken(ctx, ks, "a@b.c", time.Hour)
		require.NoError(t, err)
		p, err := chain.Validate(ctx, tok)
		require.NoError(t, err)
		assert.Equal(t, "a@b.c", p.Email)
	}

	_, err = auth.Chain{}.Validate(ctx, "x")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func oidcToken(t *testing.T, priv ed25519.PrivateKey, email string, verified bool) string {
	t.Helper()
	claims := jwt.MapClaims{
		"iss":            "https://id.example.org",
		"aud":            "caseguard",
		"sub":            "u-1",
		"exp":            time.Now().Add(time.Hour).Unix(),
		"iat":            time.Now().Unix(),
		"email":          email,
		"email_verified": verified,
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(priv)
	require.NoError(t, err)
	return raw
}

func TestOIDCValidator(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	keys := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{pub}}
	v := auth.NewOIDCValidatorWithKeys("https://id.example.org", "caseguard", keys, oidc.EdDSA)
	ctx := context.Background()

	p, err := v.Validate(ctx, oidcToken(t, priv, "dr.rao@example.org", true))
	require.NoError(t, err)
	assert.Equal(t, "dr.rao@example.org", p.Email)
	assert.Equal(t, "u-1", p.Subject)

	_, err = v.Validate(ctx, oidcToken(t, priv, "dr.rao@example.org", false))
	assert.ErrorIs(t, err, auth.ErrNoEmail)

	_, other, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	_, err = v.Validate(ctx, oidcToken(t, other, "dr.rao@example.org", true))
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func protected(t *testing.T, v auth.TokenValidator) (http.Handler, *auth.Principal) {
	t.Helper()
	got := &auth.Principal{}
	h := auth.NewMiddleware(v, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, err := auth.GetPrincipal(r.Context()); err == nil {
			*got = *p
		}
		w.WriteHeader(http.StatusOK)
	}))
	return h, got
}

func TestMiddleware(t *testing.T) {
	ks, v := hmacValidator(t)
	tok, err := auth.IssueToken(context.Background(), ks, "dr.rao@example.org", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"valid", "/v1/review", "Bearer " + tok, http.StatusOK},
		{"lowercase scheme", "/v1/review", "bearer " + tok, http.StatusOK},
		{"missing", "/v1/review", "", http.StatusUnauthorized},
		{"basic", "/v1/review", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"empty token", "/v1/review", "Bearer ", http.StatusUnauthorized},
		{"garbage", "/v1/review", "Bearer nope", http.StatusUnauthorized},
		{"public health", "/health", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := protected(t, v)
			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
				assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestMiddleware_SetsPrincipal(t *testing.T) {
	ks, v := hmacValidator(t)
	tok, err := auth.IssueToken(context.Background(), ks, "dr.rao@example.org", time.Hour)
	require.NoError(t, err)

	h, got := protected(t, v)
	req := httptest.NewRequest(http.MethodPost, "/v1/review", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "dr.rao@example.org", got.Email)
}

func TestMiddleware_NilValidatorFailsClosed(t *testing.T) {
	h, _ := protected(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/review", nil)
	req.Header.Set("Authorization", "Bearer anything")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetPrincipal_Missing(t *testing.T) {
	_, err := auth.GetPrincipal(context.Background())
	assert.ErrorIs(t, err, auth.ErrNoPrincipal)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := auth.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = auth.RequestIDFrom(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "client-id-1")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "client-id-1", seen)

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("x", 200))
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Len(t, seen, 36, "oversized client IDs are replaced")
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := auth.CORS([]string{"https://app.example.org"})(next)

	req := httptest.NewRequest(http.MethodOptions, "/v1/review", nil)
	req.Header.Set("Origin", "https://app.example.org")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.org", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodPost, "/v1/review", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
