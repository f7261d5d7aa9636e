package shared

import "context"

// Identity describes the authenticated user attached to a request.
// It is stamped onto every timeline entry and verification note.
type Identity struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
}

type identityContextKey struct{}

// ContextWithIdentity stores the identity in context.
func ContextWithIdentity(ctx context.Context, ident *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, ident)
}

// IdentityFromContext extracts the identity from context, nil when absent.
func IdentityFromContext(ctx context.Context) *Identity {
	ident, _ := ctx.Value(identityContextKey{}).(*Identity)
	return ident
}
