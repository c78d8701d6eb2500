// Package identity carries the caller identity supplied by the upstream
// authentication layer through request contexts.
package identity

import (
	"context"
	"slices"
)

type ctxKey struct{}

type Identity struct {
	User  string
	Roles []string
}

func With(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func From(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// User returns the calling user, or "" when the request was anonymous.
func User(ctx context.Context) string {
	id, _ := From(ctx)
	return id.User
}

func (id Identity) HasRole(role string) bool {
	return slices.Contains(id.Roles, role)
}
