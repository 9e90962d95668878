package guard

import (
	"context"

	authModels "gatehouse/internal/auth/models"
)

type contextKey struct{}

// WithPrincipal attaches the resolved principal for downstream handlers.
func WithPrincipal(ctx context.Context, principal *authModels.Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, principal)
}

// PrincipalFrom returns the principal attached by the guard, or nil on
// unauthenticated routes.
func PrincipalFrom(ctx context.Context) *authModels.Principal {
	principal, _ := ctx.Value(contextKey{}).(*authModels.Principal)
	return principal
}
