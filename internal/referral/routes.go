package referral

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func SetupRoutes(h *Handler, authn func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(authn)

	r.Get("/", h.Get)
	r.Post("/apply", h.Apply)

	return r
}
