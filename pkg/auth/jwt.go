package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer is the iss claim of tokens minted by caseguard itself.
const Issuer = "caseguard"

// Claims are the JWT claims caseguard reads.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// TokenValidator turns a raw bearer token into a Principal.
type TokenValidator interface {
	Validate(ctx context.Context, raw string) (*Principal, error)
}

var (
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrNoEmail      = errors.New("auth: token carries no email")
)

// JWTValidator validates tokens signed by a KeySet.
type JWTValidator struct {
	keys   KeySet
	parser *jwt.Parser
}

func NewJWTValidator(ks KeySet) *JWTValidator {
	return &JWTValidator{
		keys: ks,
		parser: jwt.NewParser(
			jwt.WithIssuer(Issuer),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(30*time.Second),
		),
	}
}

func (v *JWTValidator) Validate(_ context.Context, raw string) (*Principal, error) {
	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(raw, claims, v.keys.KeyFunc())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Email == "" {
		return nil, ErrNoEmail
	}
	return &Principal{Subject: claims.Subject, Email: claims.Email, Issuer: claims.Issuer}, nil
}

// IssueToken mints a token for email valid for ttl.
func IssueToken(ctx context.Context, ks KeySet, email string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	return ks.Sign(ctx, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			Issuer:    Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: email,
	})
}

// Chain tries each validator in order and accepts the first success.
type Chain []TokenValidator

func (c Chain) Validate(ctx context.Context, raw string) (*Principal, error) {
	if len(c) == 0 {
		return nil, fmt.Errorf("%w: no validators configured", ErrInvalidToken)
	}
	var errs []error
	for _, v := range c {
		p, err := v.Validate(ctx, raw)
		if err == nil {
			return p, nil
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}
