// Package auth verifies bearer tokens issued elsewhere and carries the
// caller identity through request contexts.
package auth

import (
	"context"
	"errors"
)

// Principal is an authenticated caller.
type Principal struct {
	Subject string
	Email   string
	Issuer  string
}

type contextKey string

const principalKey contextKey = "principal"

// ErrNoPrincipal is returned when a context carries no identity.
var ErrNoPrincipal = errors.New("auth: no principal in context")

// WithPrincipal attaches p to ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// GetPrincipal retrieves the Principal from the context.
func GetPrincipal(ctx context.Context) (*Principal, error) {
	p, ok := ctx.Value(principalKey).(*Principal)
	if !ok || p == nil {
		return nil, ErrNoPrincipal
	}
	return p, nil
}
