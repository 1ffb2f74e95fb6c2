package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SetupRoutes mounts /api/auth. limit throttles register and login only.
func SetupRoutes(h *Handler, limit func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.With(limit).Post("/register", h.Register)
	r.With(limit).Post("/login", h.Login)
	r.Post("/logout", h.Logout)

	return r
}

// SetupUserRoutes mounts /api/users. adminOnly runs after authn.
func SetupUserRoutes(h *Handler, authn, adminOnly func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(authn)

	r.With(adminOnly).Get("/", h.ListUsers)

	r.Get("/profile", h.Profile)
	r.Put("/profile", h.UpdateProfile)
	r.Delete("/profile", h.DeleteProfile)

	return r
}
