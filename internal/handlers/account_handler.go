package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/coinbot/backend/internal/clock"
	"github.com/coinbot/backend/internal/middleware"
	"github.com/coinbot/backend/internal/services"
	"go.uber.org/zap"
)

type AccountHandler struct {
	ledger    *services.LedgerService
	accounts  *services.AccountService
	calendar  *clock.Calendar
	validator *services.ValidationHelper
	log       *zap.Logger
}

func NewAccountHandler(ledger *services.LedgerService, accounts *services.AccountService, calendar *clock.Calendar, log *zap.Logger) *AccountHandler {
	return &AccountHandler{
		ledger:    ledger,
		accounts:  accounts,
		calendar:  calendar,
		validator: services.NewValidationHelper(),
		log:       log.Named("accounts_api"),
	}
}

// ListAccounts pages through accounts, newest first
// @Summary List accounts
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size (default 50, max 200)"
// @Param offset query int false "Offset"
// @Success 200 {array} models.Account
// @Router /accounts [get]
func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	accounts, err := h.accounts.List(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

// Dashboard summarises accounts, coins and raffles
// @Summary Dashboard stats
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.DashboardStats
// @Router /dashboard/stats [get]
func (h *AccountHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	stats, err := h.accounts.Stats(r.Context(), now, h.calendar.DayStart(now))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// AdjustRequest represents an admin balance adjustment
// @Description Admin balance adjustment
type AdjustRequest struct {
	Amount int64  `json:"amount" validate:"required,gt=0" example:"50"`
	Type   string `json:"type" validate:"required,oneof=add withdraw" example:"add"`
	Reason string `json:"reason" validate:"max=200" example:"Contest prize"`
}

// GetAccount returns one account
// @Summary Get account
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Account ID"
// @Success 200 {object} models.Account
// @Failure 404 {object} services.ErrorResponse
// @Router /accounts/{id} [get]
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	account, err := h.ledger.GetAccount(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// ListEntries returns the newest ledger entries of an account
// @Summary List ledger entries
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Account ID"
// @Param limit query int false "Max entries (default 20, max 100)"
// @Success 200 {array} models.LedgerEntry
// @Router /accounts/{id}/entries [get]
func (h *AccountHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.ledger.ListEntries(r.Context(), id, limit)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// VerifyBalance checks an account balance against its ledger
// @Summary Verify balance
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Account ID"
// @Success 200 {object} services.BalanceCheck
// @Router /accounts/{id}/verify [get]
func (h *AccountHandler) VerifyBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	check, err := h.ledger.VerifyBalance(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	if !check.Consistent {
		h.log.Error("balance does not match ledger",
			zap.Int64("account_id", id),
			zap.Int64("balance", check.Balance),
			zap.Int64("ledger_sum", check.LedgerSum),
		)
	}
	writeJSON(w, http.StatusOK, check)
}

// AdjustBalance adds or withdraws coins
// @Summary Adjust balance
// @Tags accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Account ID"
// @Param request body AdjustRequest true "Adjustment"
// @Success 200 {object} models.Account
// @Failure 400 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Router /accounts/{id}/adjust [post]
func (h *AccountHandler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req AdjustRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	delta := req.Amount
	if req.Type == "withdraw" {
		delta = -delta
	}
	adminID, _ := middleware.AdminIDFromContext(r.Context())
	h.log.Info("balance adjustment",
		zap.String("admin_id", adminID),
		zap.Int64("account_id", id),
		zap.Int64("amount", delta),
	)

	account, err := h.ledger.AdjustBalance(r.Context(), id, delta, req.Reason)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// SetStatus enables or disables an account
// @Summary Set account status
// @Tags accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Account ID"
// @Param request body object{active=bool} true "Status"
// @Success 200 {object} object{active=bool}
// @Router /accounts/{id}/status [post]
func (h *AccountHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Active *bool `json:"active" validate:"required"`
	}
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}
	if err := h.accounts.SetActive(r.Context(), id, *req.Active); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"active": *req.Active})
}

// ResetBalances zeroes every balance
// @Summary Reset all balances
// @Tags accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{reason=string} false "Reason"
// @Success 200 {object} services.ResetSummary
// @Failure 503 {object} object{error=string,summary=services.ResetSummary}
// @Router /accounts/reset-balances [post]
func (h *AccountHandler) ResetBalances(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason" validate:"max=200"`
	}
	if r.ContentLength != 0 && !decodeJSON(w, r, h.validator, &req) {
		return
	}

	adminID, _ := middleware.AdminIDFromContext(r.Context())
	h.log.Warn("resetting all balances", zap.String("admin_id", adminID))

	summary, err := h.ledger.ResetAllBalances(r.Context(), req.Reason)
	if err != nil && summary != nil {
		// Stopped part way; the accounts in reset_ids are already zeroed.
		h.log.Error("balance reset interrupted", zap.Int("reset", summary.Reset), zap.Int("accounts", summary.Accounts), zap.Error(err))
		status := http.StatusServiceUnavailable
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		writeJSON(w, status, map[string]any{"error": "Balance reset interrupted", "summary": summary})
		return
	}
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
