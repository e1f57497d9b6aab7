// Package auth verifies bearer credentials and attaches the resulting
// identity to requests forwarded to backend services.
package auth

import "context"

// Identity is the verified caller identity derived from a bearer token.
type Identity struct {
	// UserID is the token subject.
	UserID string

	// Email is the email claim, if present.
	Email string
}

// Header names carrying the verified identity to backends. Backends
// trust these values without re-verifying the original credential, so
// the gateway always overwrites them and never merges client input.
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserEmail = "X-User-Email"
)

type ctxKey struct{}

// ContextWithIdentity attaches a verified identity to the context.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFromContext returns the verified identity, or nil when the
// request is unauthenticated.
func IdentityFromContext(ctx context.Context) *Identity {
	if id, ok := ctx.Value(ctxKey{}).(*Identity); ok {
		return id
	}
	return nil
}
