package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/edge-rewards/internal/application/rewards"
	"github.com/edge-rewards/internal/domain"
	"github.com/edge-rewards/internal/pkg/validate"
	"github.com/edge-rewards/internal/transport/http/middleware"
)

// AdminHandler serves operator endpoints for parked claims and campaigns.
type AdminHandler struct {
	svc rewards.Service
}

func NewAdminHandler(svc rewards.Service) *AdminHandler {
	return &AdminHandler{svc: svc}
}

type setActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

func (h *AdminHandler) ListParked(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	claims, err := h.svc.ListParked(r.Context(), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if claims == nil {
		claims = []domain.Claim{}
	}
	writeJSON(w, http.StatusOK, ParkedClaimsEnvelope{Count: len(claims), Claims: claims})
}

func (h *AdminHandler) RetryPayout(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.RetryPayout(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		slog.Info("payout re-driven by operator", "claim_id", chi.URLParam(r, "id"), "operator", claims.Subject, "delayed", res.Delayed)
	}
	writeJSON(w, http.StatusOK, ConfirmEnvelope{Success: !res.Delayed, Message: res.Message, Delayed: res.Delayed})
}

func (h *AdminHandler) SetCampaignActive(w http.ResponseWriter, r *http.Request) {
	var req setActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := h.svc.SetCampaignActive(r.Context(), chi.URLParam(r, "id"), *req.Active); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Success: true, Message: "Campaign updated"})
}
