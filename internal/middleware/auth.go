package middleware

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/EmpoweredVote/watchlist-backend/internal/apperror"
	"github.com/EmpoweredVote/watchlist-backend/internal/auth"
	"github.com/EmpoweredVote/watchlist-backend/internal/httputil"
	"github.com/EmpoweredVote/watchlist-backend/internal/utils"
)

var (
	errNoToken      = apperror.Unauthenticated("Not authorized, no token provided")
	errBadToken     = apperror.Unauthenticated("Not authorized, token invalid or expired")
	errUserGone     = apperror.Unauthenticated("User no longer exists")
	errNoIdentity   = apperror.Unauthenticated("Not authorized")
	errAdminOnly    = apperror.Forbidden("Admin access required")
	errUserRoleOnly = apperror.Forbidden("User access required")
)

// IdentityFetcher resolves a token subject to a live account.
type IdentityFetcher interface {
	FindIdentity(ctx context.Context, userID string) (utils.Identity, error)
}

// TokenVerifier returns the user id bound to a session token.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Authenticate requires a valid session token for a user that still exists
// and attaches the caller's identity to the request context.
func Authenticate(fetcher IdentityFetcher, verifier TokenVerifier, rs *httputil.Responder) func(http.Handler) http.Handler {
	log := rs.Log.Named("auth")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.Extract(r)
			if token == "" {
				rs.Error(w, r, errNoToken)
				return
			}

			userID, err := verifier.Verify(token)
			if err != nil {
				reason := "invalid"
				if errors.Is(err, auth.ErrTokenExpired) {
					reason = "expired"
				}
				log.Debug("rejected token", zap.String("reason", reason), zap.Error(err))
				rs.Error(w, r, errBadToken)
				return
			}

			id, err := fetcher.FindIdentity(r.Context(), userID)
			if auth.IsNotFound(err) {
				log.Debug("token for deleted user", zap.String("user_id", userID))
				rs.Error(w, r, errUserGone)
				return
			}
			if err != nil {
				rs.Error(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(utils.WithIdentity(r.Context(), id)))
		})
	}
}

// RequireRole admits only callers whose role matches. It must run after
// Authenticate.
func RequireRole(rs *httputil.Responder, role string) func(http.Handler) http.Handler {
	denied := errUserRoleOnly
	if role == auth.RoleAdmin {
		denied = errAdminOnly
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := utils.IdentityFromContext(r.Context())
			if !ok {
				rs.Error(w, r, errNoIdentity)
				return
			}
			if id.Role != role {
				rs.Error(w, r, denied)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
