// Package server wires the services, middleware and routes into one handler.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/EmpoweredVote/watchlist-backend/internal/auth"
	"github.com/EmpoweredVote/watchlist-backend/internal/config"
	"github.com/EmpoweredVote/watchlist-backend/internal/httputil"
	"github.com/EmpoweredVote/watchlist-backend/internal/metrics"
	"github.com/EmpoweredVote/watchlist-backend/internal/middleware"
	"github.com/EmpoweredVote/watchlist-backend/internal/ratelimit"
	"github.com/EmpoweredVote/watchlist-backend/internal/referral"
	"github.com/EmpoweredVote/watchlist-backend/internal/watchlist"
)

const (
	generalLimitMessage = "Too many requests, please try again after 15 minutes."
	authLimitMessage    = "Too many login/register attempts. Try again later."
)

// Deps are the collaborators the router is built from. Metrics may be nil.
type Deps struct {
	Config       config.Config
	Log          *zap.Logger
	Metrics      *metrics.Metrics
	Users        auth.UserStore
	Items        watchlist.Store
	GeneralLimit ratelimit.Limiter
	AuthLimit    ratelimit.Limiter
	// Hasher defaults to bcrypt at Config.BcryptCost.
	Hasher auth.PasswordHasher
}

// Server holds the built services so commands and tests can reach them.
type Server struct {
	Users     *auth.Service
	Watchlist *watchlist.Service
	Referrals *referral.Service
	Tokens    *auth.TokenIssuer
	Handler   http.Handler
}

func New(d Deps) *Server {
	cfg := d.Config
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}

	hasher := d.Hasher
	if hasher == nil {
		hasher = auth.NewBcryptHasher(cfg.BcryptCost)
	}

	rs := httputil.NewResponder(log, !cfg.IsProduction())

	users := auth.NewService(d.Users, hasher)
	items := watchlist.NewService(d.Items, watchlist.Policy{UniqueSymbol: cfg.UniqueSymbol})
	if cfg.CascadeDelete {
		users.CascadeTo(items)
	}

	var recorder referral.Recorder
	var registrations auth.RegistrationRecorder
	if d.Metrics != nil {
		recorder = d.Metrics
		registrations = d.Metrics
	}
	referrals := referral.NewService(d.Users, recorder)

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenLifetime)
	cookies := auth.SessionCookies{Lifetime: cfg.TokenLifetime, Production: cfg.IsProduction()}

	authHandler := auth.NewHandler(auth.HandlerConfig{
		Service:   users,
		Tokens:    tokens,
		Cookies:   cookies,
		Responder: rs,
		Referrals: referrals,
		Recorder:  registrations,
	})

	authn := middleware.Authenticate(users, tokens, rs)
	adminOnly := middleware.RequireRole(rs, auth.RoleAdmin)
	generalLimit := middleware.RateLimit(d.GeneralLimit, middleware.RateLimitOptions{
		Name:    "general",
		Message: generalLimitMessage,
		Metrics: d.Metrics,
	}, rs)
	authLimit := middleware.RateLimit(d.AuthLimit, middleware.RateLimitOptions{
		Name:    "auth",
		Message: authLimitMessage,
		Metrics: d.Metrics,
	}, rs)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	// Forwarding headers are client-controlled unless a proxy rewrites them;
	// without one the limiters key on the socket peer.
	if cfg.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.RequestLogger(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Instrument(d.Metrics))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.NewCORS(cfg.AllowedOrigins))
	if cfg.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		rs.JSON(w, http.StatusNotFound, map[string]any{
			"success": false,
			"message": "Route not found",
			"path":    r.URL.Path,
		})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		rs.JSON(w, http.StatusMethodNotAllowed, map[string]any{
			"success": false,
			"message": "Method not allowed",
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		rs.Success(w, http.StatusOK, "API is running", map[string]any{"environment": cfg.Env})
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(generalLimit)

		r.Mount("/auth", auth.SetupRoutes(authHandler, authLimit))
		r.Mount("/users", auth.SetupUserRoutes(authHandler, authn, adminOnly))
		r.Mount("/watchlist", watchlist.SetupRoutes(watchlist.NewHandler(items, rs), authn))
		r.Mount("/referral", referral.SetupRoutes(referral.NewHandler(referrals, rs), authn))
	})

	return &Server{
		Users:     users,
		Watchlist: items,
		Referrals: referrals,
		Tokens:    tokens,
		Handler:   r,
	}
}
