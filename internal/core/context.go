package core

import (
	"context"
	"time"
)

// AuthContext carries decoded token claims for the duration of a request.
// It is attached to the request context after authentication and discarded
// when the request completes; it is never persisted.
type AuthContext struct {
	Subject   string
	Role      string
	ExpiresAt time.Time
	Claims    map[string]any
}

type authContextKey struct{}

// WithAuthContext attaches auth info to a context
func WithAuthContext(ctx context.Context, auth *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, auth)
}

// AuthContextFrom extracts auth info from a context, if present
func AuthContextFrom(ctx context.Context) (*AuthContext, bool) {
	auth, ok := ctx.Value(authContextKey{}).(*AuthContext)
	return auth, ok
}
