package auth

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/EmpoweredVote/watchlist-backend/internal/apperror"
	"github.com/EmpoweredVote/watchlist-backend/internal/httputil"
	"github.com/EmpoweredVote/watchlist-backend/internal/utils"
)

// ReferralRedeemer applies a referral code for a freshly registered user.
type ReferralRedeemer interface {
	Redeem(ctx context.Context, userID, code string) error
}

// RegistrationRecorder counts new accounts; *metrics.Metrics satisfies it.
type RegistrationRecorder interface {
	Registered()
}

type Handler struct {
	svc       *Service
	tokens    *TokenIssuer
	cookies   SessionCookies
	rs        *httputil.Responder
	log       *zap.Logger
	referrals ReferralRedeemer
	recorder  RegistrationRecorder
}

type HandlerConfig struct {
	Service   *Service
	Tokens    *TokenIssuer
	Cookies   SessionCookies
	Responder *httputil.Responder
	// Referrals is optional; without it a referralCode on register is ignored.
	Referrals ReferralRedeemer
	Recorder  RegistrationRecorder
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		svc:       cfg.Service,
		tokens:    cfg.Tokens,
		cookies:   cfg.Cookies,
		rs:        cfg.Responder,
		log:       cfg.Responder.Log.Named("auth"),
		referrals: cfg.Referrals,
		recorder:  cfg.Recorder,
	}
}

type registerRequest struct {
	Name         string `json:"name" validate:"required,min=2"`
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=8,hasdigit,hasupper"`
	ReferralCode string `json:"referralCode" validate:"-"`
}

var registerMessages = httputil.Messages{
	"name.required":     "Name is required",
	"name.min":          "Name must be at least 2 characters",
	"email":             "Valid email is required",
	"password.required": "Password is required",
	"password.min":      "Password must be at least 8 characters",
	"password.hasdigit": "Password must contain a number",
	"password.hasupper": "Password must contain an uppercase letter",
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

var loginMessages = httputil.Messages{
	"email":    "Valid email is required",
	"password": "Password is required",
}

type profileRequest struct {
	Name     string `json:"name" validate:"omitempty,min=2"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"omitempty,min=8"`
}

var profileMessages = httputil.Messages{
	"name":     "Name must be at least 2 characters",
	"email":    "Email is invalid",
	"password": "Password must be at least 8 characters",
}

// startSession issues a token for user and sets the session cookie.
func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, user *User) error {
	token, _, err := h.tokens.Issue(user.ID)
	if err != nil {
		return err
	}
	h.cookies.Set(w, r, token)
	return nil
}

// Register handles POST /api/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httputil.Decode(w, r, &req); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if err := httputil.Validate(req, registerMessages); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	user, err := h.svc.Create(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	if h.recorder != nil {
		h.recorder.Registered()
	}

	if err := h.startSession(w, r, user); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.log.Info("user registered", zap.String("user_id", user.ID))

	payload := map[string]any{"user": user.Summary()}

	// A bad referral code never fails the registration itself.
	if code := strings.TrimSpace(req.ReferralCode); code != "" && h.referrals != nil {
		if err := h.referrals.Redeem(r.Context(), user.ID, code); err != nil {
			appErr := apperror.Normalize(err)
			if appErr.Kind == apperror.KindInternal {
				h.log.Error("referral on register failed", zap.String("user_id", user.ID), zap.Error(err))
			}
			payload["referralApplied"] = false
			payload["referralMessage"] = appErr.Message
		} else {
			payload["referralApplied"] = true
		}
	}

	h.rs.Success(w, http.StatusCreated, "Registration successful", payload)
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httputil.Decode(w, r, &req); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := httputil.Validate(req, loginMessages); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	user, err := h.svc.VerifyCredentials(r.Context(), req.Email, req.Password)
	if err != nil {
		if apperror.Is(err, apperror.KindUnauthenticated) {
			h.log.Info("login failed", zap.String("client", r.RemoteAddr))
		}
		h.rs.Error(w, r, err)
		return
	}

	if err := h.startSession(w, r, user); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	h.rs.Success(w, http.StatusOK, "Login successful", map[string]any{"user": user.Summary()})
}

// Logout handles POST /api/auth/logout. It only clears the cookie, so it
// always succeeds.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.cookies.Clear(w, r)
	h.rs.Success(w, http.StatusOK, "Logged out successfully", nil)
}

// Profile handles GET /api/users/profile.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())

	user, err := h.svc.Get(r.Context(), userID)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	h.rs.Success(w, http.StatusOK, "", map[string]any{"user": user})
}

// UpdateProfile handles PUT /api/users/profile. Empty fields are ignored.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())

	var req profileRequest
	if err := httputil.Decode(w, r, &req); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if err := httputil.Validate(req, profileMessages); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	var patch ProfilePatch
	if req.Name != "" {
		patch.Name = &req.Name
	}
	if req.Email != "" {
		patch.Email = &req.Email
	}
	if req.Password != "" {
		patch.Password = &req.Password
	}

	user, err := h.svc.UpdateProfile(r.Context(), userID, patch)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	h.rs.Success(w, http.StatusOK, "Profile updated", map[string]any{"user": user.Summary()})
}

// DeleteProfile handles DELETE /api/users/profile.
func (h *Handler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())

	if err := h.svc.Delete(r.Context(), userID); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.cookies.Clear(w, r)
	h.log.Info("user deleted", zap.String("user_id", userID))

	h.rs.Success(w, http.StatusOK, "User deleted", nil)
}

// ListUsers handles GET /api/users (admin only).
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.List(r.Context())
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	h.rs.Success(w, http.StatusOK, "", map[string]any{
		"count": len(users),
		"users": users,
	})
}
