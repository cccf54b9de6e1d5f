package httpinterface

import (
	"context"
	"crypto/subtle"
)

type contextKey int

const adminTokenKey contextKey = iota

// WithAdminToken returns a context carrying the admin token presented by a
// request.
func WithAdminToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, adminTokenKey, token)
}

// TokenAuthorizer grants the admin role to requests presenting the
// configured token. An empty configured token grants nobody.
type TokenAuthorizer struct {
	token string
}

// NewTokenAuthorizer returns an authorizer checking against the given token.
func NewTokenAuthorizer(token string) *TokenAuthorizer {
	return &TokenAuthorizer{token}
}

func (a *TokenAuthorizer) IsAdmin(ctx context.Context) (bool, error) {
	if a.token == "" {
		return false, nil
	}
	presented, _ := ctx.Value(adminTokenKey).(string)
	ok := subtle.ConstantTimeCompare([]byte(a.token), []byte(presented)) == 1
	return ok, nil
}
