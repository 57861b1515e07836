package httpx

import "context"

// Principal is the canonical identity of the caller for the lifetime of one
// request. It is populated by the session middleware after the account has
// been re-fetched from storage, so handlers can trust it without consulting
// the session again. There is deliberately exactly one shape: legacy callers
// are translated into this at the boundary.
type Principal struct {
	UserID string
	Email  string
	Role   string
	Method string // authentication method, e.g. "password"
}

// IsAdmin reports whether the principal carries the administrator role.
func (p Principal) IsAdmin() bool { return p.Role == "admin" }

type principalKey struct{}

// WithPrincipal stores the authenticated principal in the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
