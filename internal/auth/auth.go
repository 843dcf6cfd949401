// Package auth resolves the authenticated groupware user for each request.
//
// Sessions are provisioned by the host platform and stored in Redis; this
// package only validates them. OAuth/OIDC handshakes are out of scope.
package auth

import (
	"context"
)

// Authentication methods.
const (
	MethodSession = "session"
	MethodDev     = "dev"
)

// Identity describes the authenticated caller.
type Identity struct {
	UserID string
	Method string
}

type contextKey struct{}

// NewContext returns a context carrying the given identity.
func NewContext(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext extracts the identity from the context, or nil.
func FromContext(ctx context.Context) *Identity {
	if id, ok := ctx.Value(contextKey{}).(*Identity); ok {
		return id
	}
	return nil
}
