// Package apperror defines the client-facing error taxonomy and the
// normalizer that maps storage and library errors onto it.
package apperror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
	KindAlreadyApplied
	KindSelfReferral
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindAlreadyApplied:
		return "already_applied"
	case KindSelfReferral:
		return "self_referral"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

// Error is an error that knows how it should be reported to a client.
type Error struct {
	Kind    Kind
	Message string
	// Status overrides the default HTTP status of Kind when non-zero.
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus returns the response status for e.
func (e *Error) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	return StatusFor(e.Kind)
}

// WithStatus returns a copy of e reported with the given status.
func (e *Error) WithStatus(status int) *Error {
	cp := *e
	cp.Status = status
	return &cp
}

func StatusFor(k Kind) int {
	switch k {
	case KindValidation, KindAlreadyApplied, KindSelfReferral:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func Validation(msg string) *Error      { return &Error{Kind: KindValidation, Message: msg} }
func Unauthenticated(msg string) *Error { return &Error{Kind: KindUnauthenticated, Message: msg} }
func Forbidden(msg string) *Error       { return &Error{Kind: KindForbidden, Message: msg} }
func NotFound(msg string) *Error        { return &Error{Kind: KindNotFound, Message: msg} }
func Conflict(msg string) *Error        { return &Error{Kind: KindConflict, Message: msg} }
func AlreadyApplied(msg string) *Error  { return &Error{Kind: KindAlreadyApplied, Message: msg} }
func SelfReferral(msg string) *Error    { return &Error{Kind: KindSelfReferral, Message: msg} }
func RateLimited(msg string) *Error     { return &Error{Kind: KindRateLimited, Message: msg} }

// Internal wraps an unexpected failure. The message is what clients see.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "Server Error", Err: err}
}

// Is reports whether err normalizes to kind k.
func Is(err error, k Kind) bool {
	if err == nil {
		return false
	}
	return Normalize(err).Kind == k
}

// Postgres SQLSTATE codes we classify.
const (
	pgUniqueViolation      = "23505"
	pgInvalidTextRepresent = "22P02"
)

// Normalize classifies any error into an *Error by its shape.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			field := strings.TrimSpace(pgErr.ConstraintName)
			if field == "" {
				field = "unique field"
			}
			return &Error{Kind: KindConflict, Message: fmt.Sprintf("Duplicate value entered for %s.", field), Err: err}
		case pgInvalidTextRepresent:
			return &Error{Kind: KindNotFound, Message: "Resource not found or invalid ID format.", Err: err}
		}
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &Error{Kind: KindNotFound, Message: "Resource not found.", Err: err}
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &Error{Kind: KindConflict, Message: "Duplicate value entered.", Err: err}
	case errors.Is(err, jwt.ErrTokenExpired):
		return &Error{Kind: KindUnauthenticated, Message: "Session expired. Please log in again.", Err: err}
	case errors.Is(err, jwt.ErrTokenMalformed), errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return &Error{Kind: KindUnauthenticated, Message: "Invalid or expired token. Please log in again.", Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindInternal, Message: "Request timed out", Err: err}
	}

	return Internal(err)
}
