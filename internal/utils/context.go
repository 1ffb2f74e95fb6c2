package utils

import (
	"context"
)

type contextKey string

const contextIdentityKey contextKey = "identity"

// Identity is the authenticated caller attached by the auth middleware.
type Identity struct {
	UserID string
	Role   string
	Name   string
	Email  string
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextIdentityKey, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextIdentityKey).(Identity)
	return id, ok && id.UserID != ""
}

func GetUserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := IdentityFromContext(ctx)
	return id.UserID, ok
}
