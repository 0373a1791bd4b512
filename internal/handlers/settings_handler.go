package handlers

import (
	"net/http"
	"strconv"

	"github.com/coinbot/backend/internal/models"
	"github.com/coinbot/backend/internal/services"
	"go.uber.org/zap"
)

type SettingsHandler struct {
	settings  *services.SettingsService
	validator *services.ValidationHelper
	log       *zap.Logger
}

func NewSettingsHandler(settings *services.SettingsService, log *zap.Logger) *SettingsHandler {
	return &SettingsHandler{
		settings:  settings,
		validator: services.NewValidationHelper(),
		log:       log.Named("settings_api"),
	}
}

// UpdateSettingsRequest changes reward amounts; omitted fields are left alone
// @Description Reward settings update
type UpdateSettingsRequest struct {
	DailyRewardAmount    *int64 `json:"daily_reward_amount" validate:"omitempty,gt=0" example:"10"`
	ReferralRewardAmount *int64 `json:"referral_reward_amount" validate:"omitempty,gte=0" example:"5"`
}

// GetSettings returns the effective reward amounts
// @Summary Get reward settings
// @Tags settings
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.RewardAmounts
// @Router /settings [get]
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.settings.Rewards(r.Context()))
}

// UpdateSettings changes reward amounts
// @Summary Update reward settings
// @Tags settings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UpdateSettingsRequest true "New amounts"
// @Success 200 {object} services.RewardAmounts
// @Failure 400 {object} services.ErrorResponse
// @Router /settings [patch]
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettingsRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	if req.DailyRewardAmount != nil {
		err := h.settings.Set(r.Context(), models.SettingDailyRewardAmount,
			strconv.FormatInt(*req.DailyRewardAmount, 10), "Coins granted per daily claim")
		if err != nil {
			writeServiceError(w, h.log, err)
			return
		}
	}
	if req.ReferralRewardAmount != nil {
		err := h.settings.Set(r.Context(), models.SettingReferralRewardAmount,
			strconv.FormatInt(*req.ReferralRewardAmount, 10), "Coins granted to each side of a referral")
		if err != nil {
			writeServiceError(w, h.log, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, h.settings.Rewards(r.Context()))
}
