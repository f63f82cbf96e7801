package tenant

import (
	"context"
	"errors"
)

var ErrMissingScope = errors.New("tenant scope is missing from context")

// Scope is the tenant boundary every core operation runs under.
// It is resolved once at the edge (auth middleware, queue consumer) and then
// passed explicitly; repositories never infer it.
type Scope struct {
	TenantID string
}

func (s Scope) Valid() bool { return s.TenantID != "" }

type scopeKey struct{}

func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

func FromContext(ctx context.Context) (Scope, error) {
	s, ok := ctx.Value(scopeKey{}).(Scope)
	if !ok || !s.Valid() {
		return Scope{}, ErrMissingScope
	}
	return s, nil
}
