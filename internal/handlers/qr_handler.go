package handlers

import (
	"net/http"

	"github.com/coinbot/backend/internal/services"
	"go.uber.org/zap"
)

type InviteHandler struct {
	ledger *services.LedgerService
	qr     *services.QRService
	log    *zap.Logger
}

func NewInviteHandler(ledger *services.LedgerService, qr *services.QRService, log *zap.Logger) *InviteHandler {
	return &InviteHandler{ledger: ledger, qr: qr, log: log.Named("invite_api")}
}

// GetInvite returns an account's invite link and QR code
// @Summary Get invite QR code
// @Description Referral deep link plus a base64 PNG QR code of it
// @Tags referrals
// @Produce json
// @Security BearerAuth
// @Param id path int true "Account ID"
// @Success 200 {object} object{code=string,link=string,qrImage=string}
// @Failure 404 {object} services.ErrorResponse
// @Router /accounts/{id}/invite [get]
func (h *InviteHandler) GetInvite(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	account, err := h.ledger.GetAccount(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}

	qrImage, err := h.qr.InviteQRBase64(account.ReferralCode)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"code":    account.ReferralCode,
		"link":    h.qr.InviteLink(account.ReferralCode),
		"qrImage": qrImage,
	})
}
