package authsync

import (
	"context"
)

var userCtxKey = &contextKey{"user"}

type contextKey struct {
	name string
}

// WithContext sets the composite user in the given context
func WithContext(r context.Context, user *CompositeUser) context.Context {
	return context.WithValue(r, userCtxKey, user)
}

// FromContext finds the composite user from the context.
func FromContext(ctx context.Context) (*CompositeUser, bool) {
	raw, ok := ctx.Value(userCtxKey).(*CompositeUser)
	return raw, ok
}
