// Package httputil writes the uniform JSON envelope used by every endpoint:
// {"success": bool, "message": "...", ...payload}.
package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/EmpoweredVote/watchlist-backend/internal/apperror"
	"go.uber.org/zap"
)

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 10 << 10

// Responder writes envelopes and normalizes errors. Verbose adds the internal
// error detail to 500 bodies and is only set in development.
type Responder struct {
	Log     *zap.Logger
	Verbose bool
}

func NewResponder(log *zap.Logger, verbose bool) *Responder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Responder{Log: log, Verbose: verbose}
}

// Success writes {"success": true, "message": msg, ...payload}.
func (rs *Responder) Success(w http.ResponseWriter, status int, msg string, payload map[string]any) {
	body := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		body[k] = v
	}
	body["success"] = true
	if msg != "" {
		body["message"] = msg
	}
	rs.JSON(w, status, body)
}

// JSON writes v as the response body.
func (rs *Responder) JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		rs.Log.Warn("failed to encode response", zap.Error(err))
	}
}

// Error classifies err and writes the failure envelope. Internal errors are
// logged with full detail; clients only see the generic message.
func (rs *Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperror.Normalize(err)
	status := appErr.HTTPStatus()

	body := map[string]any{
		"success": false,
		"message": appErr.Message,
	}

	if appErr.Kind == apperror.KindInternal {
		rs.Log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		if rs.Verbose {
			body["detail"] = err.Error()
		}
	} else {
		rs.Log.Debug("request rejected",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("kind", appErr.Kind.String()),
			zap.Int("status", status),
		)
	}

	rs.JSON(w, status, body)
}

// Decode reads a JSON body of at most MaxBodyBytes into dst.
func Decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return nil
	}

	var maxErr *http.MaxBytesError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		return apperror.Validation("Request body is required")
	case errors.As(err, &maxErr):
		return apperror.Validation("Request body too large").WithStatus(http.StatusRequestEntityTooLarge)
	case errors.As(err, &typeErr):
		if typeErr.Field != "" {
			return apperror.Validation("Invalid value for " + typeErr.Field)
		}
		return apperror.Validation("Invalid request format")
	default:
		var errWithMsg interface{ ValidationMessage() string }
		if errors.As(err, &errWithMsg) {
			return apperror.Validation(errWithMsg.ValidationMessage())
		}
		return apperror.Validation("Invalid request format")
	}
}
