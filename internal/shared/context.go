package shared

import "context"

// Role names stored on users.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID   int64
	Username string
	Role     string
	TokenID  string
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}

// ErrNoPrincipal is returned when a protected operation runs without an authenticated caller.
var ErrNoPrincipal = NewError(ErrUnauthorized, "authentification requise")

// RequirePrincipal returns the caller or ErrNoPrincipal.
func RequirePrincipal(ctx context.Context) (Principal, error) {
	p, ok := PrincipalFromContext(ctx)
	if !ok || p.UserID <= 0 {
		return Principal{}, ErrNoPrincipal
	}
	return p, nil
}
