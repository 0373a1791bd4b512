package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/coinbot/backend/internal/bot"
	"github.com/coinbot/backend/internal/middleware"
	"github.com/coinbot/backend/internal/services"
	"go.uber.org/zap"
)

// Broadcaster delivers one message to every active account in the background.
type Broadcaster interface {
	StartBroadcast(ctx context.Context, text string) error
	BroadcastStatus() bot.BroadcastStatus
}

type BroadcastHandler struct {
	bot       Broadcaster
	validator *services.ValidationHelper
	log       *zap.Logger
}

func NewBroadcastHandler(b Broadcaster, log *zap.Logger) *BroadcastHandler {
	return &BroadcastHandler{bot: b, validator: services.NewValidationHelper(), log: log.Named("broadcast_api")}
}

// Broadcast starts messaging every active account
// @Summary Broadcast a message
// @Description Delivery runs in the background; poll GET /broadcast for the counts.
// @Tags bot
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{message=string} true "Message"
// @Success 202 {object} bot.BroadcastStatus
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /broadcast [post]
func (h *BroadcastHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message" validate:"notblank,max=4000"`
	}
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	err := h.bot.StartBroadcast(r.Context(), req.Message)
	switch {
	case errors.Is(err, bot.ErrBroadcastRunning):
		services.SendErrorResponse(w, err.Error(), http.StatusConflict, nil)
		return
	case err != nil:
		writeServiceError(w, h.log, err)
		return
	}

	adminID, _ := middleware.AdminIDFromContext(r.Context())
	h.log.Info("broadcast started", zap.String("admin_id", adminID), zap.Int("length", len(req.Message)))
	writeJSON(w, http.StatusAccepted, h.bot.BroadcastStatus())
}

// Status reports the latest broadcast
// @Summary Broadcast status
// @Tags bot
// @Produce json
// @Security BearerAuth
// @Success 200 {object} bot.BroadcastStatus
// @Router /broadcast [get]
func (h *BroadcastHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.bot.BroadcastStatus())
}
