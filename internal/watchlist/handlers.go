package watchlist

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/EmpoweredVote/watchlist-backend/internal/apperror"
	"github.com/EmpoweredVote/watchlist-backend/internal/httputil"
	"github.com/EmpoweredVote/watchlist-backend/internal/utils"
)

var errInvalidItemID = apperror.NotFound("Resource not found or invalid ID format.")

type Handler struct {
	svc *Service
	rs  *httputil.Responder
}

func NewHandler(svc *Service, rs *httputil.Responder) *Handler {
	return &Handler{svc: svc, rs: rs}
}

type itemRequest struct {
	Name       *string    `json:"name"`
	Symbol     *string    `json:"symbol"`
	PriceAlert PriceAlert `json:"priceAlert"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func itemID(r *http.Request) (string, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return "", errInvalidItemID
	}
	return id.String(), nil
}

// List handles GET /api/watchlist.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())

	items, err := h.svc.List(r.Context(), userID)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	h.rs.Success(w, http.StatusOK, "", map[string]any{
		"count": len(items),
		"items": items,
	})
}

// Create handles POST /api/watchlist.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())

	var req itemRequest
	if err := httputil.Decode(w, r, &req); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	item, err := h.svc.Create(r.Context(), userID, CreateInput{
		Name:       deref(req.Name),
		Symbol:     deref(req.Symbol),
		PriceAlert: req.PriceAlert.Value,
	})
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	h.rs.Success(w, http.StatusCreated, "", map[string]any{"item": item})
}

// Update handles PUT /api/watchlist/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())

	id, err := itemID(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	var req itemRequest
	if err := httputil.Decode(w, r, &req); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	item, err := h.svc.Update(r.Context(), userID, id, Patch{
		Name:       req.Name,
		Symbol:     req.Symbol,
		PriceAlert: req.PriceAlert,
	})
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	h.rs.Success(w, http.StatusOK, "", map[string]any{"item": item})
}

// Delete handles DELETE /api/watchlist/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())

	id, err := itemID(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	if err := h.svc.Delete(r.Context(), userID, id); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	h.rs.Success(w, http.StatusOK, "Item removed", nil)
}
