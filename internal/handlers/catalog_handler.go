package handlers

import (
	"net/http"

	"github.com/coinbot/backend/internal/middleware"
	"github.com/coinbot/backend/internal/services"
	"go.uber.org/zap"
)

// CatalogHandler manages what accounts can spend coins on: shop items and raffles.
type CatalogHandler struct {
	shop      *services.ShopService
	raffles   *services.RaffleService
	validator *services.ValidationHelper
	log       *zap.Logger
}

func NewCatalogHandler(shop *services.ShopService, raffles *services.RaffleService, log *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		shop:      shop,
		raffles:   raffles,
		validator: services.NewValidationHelper(),
		log:       log.Named("catalog_api"),
	}
}

// ListShopItems returns every shop item
// @Summary List shop items
// @Tags shop
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.ShopItem
// @Router /shop [get]
func (h *CatalogHandler) ListShopItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.shop.ListAll(r.Context())
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// CreateShopItem adds a shop item
// @Summary Create shop item
// @Tags shop
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.ShopItemInput true "Item"
// @Success 201 {object} models.ShopItem
// @Failure 400 {object} services.ErrorResponse
// @Router /shop [post]
func (h *CatalogHandler) CreateShopItem(w http.ResponseWriter, r *http.Request) {
	var req services.ShopItemInput
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}
	item, err := h.shop.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	adminID, _ := middleware.AdminIDFromContext(r.Context())
	h.log.Info("shop item created", zap.String("admin_id", adminID), zap.Int64("item_id", item.ID), zap.Int64("cost", item.Cost))
	writeJSON(w, http.StatusCreated, item)
}

// UpdateShopItem changes a shop item
// @Summary Update shop item
// @Tags shop
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Item ID"
// @Param request body services.ShopItemPatch true "Changes"
// @Success 200 {object} models.ShopItem
// @Failure 404 {object} services.ErrorResponse
// @Router /shop/{id} [patch]
func (h *CatalogHandler) UpdateShopItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req services.ShopItemPatch
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}
	item, err := h.shop.Update(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// ListRaffles returns every raffle
// @Summary List raffles
// @Tags raffles
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Raffle
// @Router /raffles [get]
func (h *CatalogHandler) ListRaffles(w http.ResponseWriter, r *http.Request) {
	raffles, err := h.raffles.ListAll(r.Context())
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"raffles": raffles})
}

// CreateRaffle opens a raffle
// @Summary Create raffle
// @Tags raffles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.RaffleInput true "Raffle"
// @Success 201 {object} models.Raffle
// @Failure 400 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Router /raffles [post]
func (h *CatalogHandler) CreateRaffle(w http.ResponseWriter, r *http.Request) {
	var req services.RaffleInput
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}
	raffle, err := h.raffles.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	adminID, _ := middleware.AdminIDFromContext(r.Context())
	h.log.Info("raffle created", zap.String("admin_id", adminID), zap.Int64("raffle_id", raffle.ID), zap.Time("end_date", raffle.EndDate))
	writeJSON(w, http.StatusCreated, raffle)
}

// UpdateRaffle changes a raffle, including picking its winner
// @Summary Update raffle
// @Tags raffles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Raffle ID"
// @Param request body services.RafflePatch true "Changes"
// @Success 200 {object} models.Raffle
// @Failure 404 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Router /raffles/{id} [patch]
func (h *CatalogHandler) UpdateRaffle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req services.RafflePatch
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}
	raffle, err := h.raffles.Update(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, raffle)
}

// RaffleEntries lists who entered a raffle
// @Summary List raffle entries
// @Tags raffles
// @Produce json
// @Security BearerAuth
// @Param id path int true "Raffle ID"
// @Success 200 {array} models.RaffleEntrant
// @Failure 404 {object} services.ErrorResponse
// @Router /raffles/{id}/entries [get]
func (h *CatalogHandler) RaffleEntries(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	entries, err := h.raffles.Entries(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
