package handlers

import (
	"net/http"

	"github.com/coinbot/backend/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ReferralHandler struct {
	referrals *services.ReferralService
	log       *zap.Logger
}

func NewReferralHandler(referrals *services.ReferralService, log *zap.Logger) *ReferralHandler {
	return &ReferralHandler{referrals: referrals, log: log.Named("referral_api")}
}

// ListReconciliations returns referrer rewards still owed
// @Summary List pending referral reconciliations
// @Tags referrals
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.ReferralReconciliation
// @Router /referrals/reconciliations [get]
func (h *ReferralHandler) ListReconciliations(w http.ResponseWriter, r *http.Request) {
	pending, err := h.referrals.PendingReconciliations(r.Context())
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reconciliations": pending})
}

// ResolveReconciliation grants an owed referrer reward
// @Summary Resolve a referral reconciliation
// @Tags referrals
// @Produce json
// @Security BearerAuth
// @Param id path string true "Reconciliation ID"
// @Success 200 {object} models.Account
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /referrals/reconciliations/{id}/resolve [post]
func (h *ReferralHandler) ResolveReconciliation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		services.SendErrorResponse(w, "Invalid reconciliation id", http.StatusBadRequest, nil)
		return
	}

	account, err := h.referrals.ResolveReconciliation(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}
