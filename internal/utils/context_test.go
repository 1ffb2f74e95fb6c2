package utils

import (
	"context"
	"testing"
)

func TestIdentityRoundTrip(t *testing.T) {
	ctx := WithIdentity(context.Background(), Identity{UserID: "u1", Role: "admin"})

	id, ok := IdentityFromContext(ctx)
	if !ok {
		t.Fatal("expected identity in context")
	}
	if id.Role != "admin" {
		t.Errorf("expected role admin, got %q", id.Role)
	}

	userID, ok := GetUserIDFromContext(ctx)
	if !ok || userID != "u1" {
		t.Errorf("expected user id u1, got %q (ok=%v)", userID, ok)
	}
}

func TestIdentityMissing(t *testing.T) {
	if _, ok := IdentityFromContext(context.Background()); ok {
		t.Error("expected no identity in empty context")
	}
	if _, ok := IdentityFromContext(WithIdentity(context.Background(), Identity{})); ok {
		t.Error("expected an identity without a user id to be rejected")
	}
}
