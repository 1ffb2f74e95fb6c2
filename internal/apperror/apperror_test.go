package apperror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestNormalize_Shapes(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantKind   Kind
		wantStatus int
	}{
		{"app error passes through", NotFound("Item not found"), KindNotFound, http.StatusNotFound},
		{"wrapped app error", fmt.Errorf("ctx: %w", Forbidden("Not authorized")), KindForbidden, http.StatusForbidden},
		{"unique violation", &pgconn.PgError{Code: "23505", ConstraintName: "idx_users_email"}, KindConflict, http.StatusConflict},
		{"invalid uuid text", &pgconn.PgError{Code: "22P02"}, KindNotFound, http.StatusNotFound},
		{"record not found", fmt.Errorf("find: %w", gorm.ErrRecordNotFound), KindNotFound, http.StatusNotFound},
		{"duplicated key", gorm.ErrDuplicatedKey, KindConflict, http.StatusConflict},
		{"token expired", fmt.Errorf("verify: %w", jwt.ErrTokenExpired), KindUnauthenticated, http.StatusUnauthorized},
		{"bad signature", jwt.ErrTokenSignatureInvalid, KindUnauthenticated, http.StatusUnauthorized},
		{"deadline", context.DeadlineExceeded, KindInternal, http.StatusInternalServerError},
		{"anything else", errors.New("boom"), KindInternal, http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Normalize(tc.err)
			assert.Equal(t, tc.wantKind, got.Kind)
			assert.Equal(t, tc.wantStatus, got.HTTPStatus())
		})
	}
}

func TestNormalize_UniqueViolationNamesConstraint(t *testing.T) {
	got := Normalize(&pgconn.PgError{Code: "23505", ConstraintName: "idx_users_email"})
	assert.Equal(t, "Duplicate value entered for idx_users_email.", got.Message)
}

func TestInternal_HidesCause(t *testing.T) {
	got := Internal(errors.New("connection refused to 10.0.0.3"))
	assert.Equal(t, "Server Error", got.Message)
	assert.ErrorContains(t, got, "connection refused")
}

func TestWithStatus_DoesNotMutateOriginal(t *testing.T) {
	base := Conflict("Email already registered")
	overridden := base.WithStatus(http.StatusBadRequest)

	assert.Equal(t, http.StatusConflict, base.HTTPStatus())
	assert.Equal(t, http.StatusBadRequest, overridden.HTTPStatus())
	assert.True(t, Is(overridden, KindConflict))
}

func TestNormalize_Nil(t *testing.T) {
	assert.Nil(t, Normalize(nil))
	assert.False(t, Is(nil, KindInternal))
}
