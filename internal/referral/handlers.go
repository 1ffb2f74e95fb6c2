package referral

import (
	"net/http"

	"github.com/EmpoweredVote/watchlist-backend/internal/httputil"
	"github.com/EmpoweredVote/watchlist-backend/internal/utils"
)

type Handler struct {
	svc *Service
	rs  *httputil.Responder
}

func NewHandler(svc *Service, rs *httputil.Responder) *Handler {
	return &Handler{svc: svc, rs: rs}
}

type applyRequest struct {
	Code string `json:"code"`
}

// Apply handles POST /api/referral/apply.
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())

	var req applyRequest
	if err := httputil.Decode(w, r, &req); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	res, err := h.svc.Apply(r.Context(), userID, req.Code)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	h.rs.Success(w, http.StatusOK, "Referral applied successfully!", map[string]any{
		"perksUnlocked": res.PerksUnlocked,
		"user": map[string]any{
			"name":          res.User.Name,
			"email":         res.User.Email,
			"hasReferral":   res.User.HasReferral,
			"perksUnlocked": res.PerksUnlocked,
		},
	})
}

// Get handles GET /api/referral.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())

	data, err := h.svc.Data(r.Context(), userID)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	h.rs.Success(w, http.StatusOK, "", map[string]any{
		"referralCode":  data.ReferralCode,
		"referralCount": data.ReferralCount,
		"perksUnlocked": data.PerksUnlocked,
		"referral":      data,
	})
}
