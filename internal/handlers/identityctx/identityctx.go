package identityctx

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey string

const principalKey ctxKey = "principal"

// Authenticated caller
type Principal struct {
	IdentityID uuid.UUID

	// Empty if caller was identified by gateway header
	AccessToken string
}

// Create a new context with the principal
func New(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// Extract the principal from the context
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
