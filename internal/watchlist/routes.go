package watchlist

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SetupRoutes mounts the watchlist endpoints. Every route requires authn.
func SetupRoutes(h *Handler, authn func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(authn)

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)

	return r
}
