package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/coinbot/backend/internal/services"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxBodyBytes = 1_048_576

// decodeJSON reads exactly one JSON object into dst and validates it.
// It writes the error response itself and reports whether to continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, v *services.ValidationHelper, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	if err := v.ValidateStruct(dst); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		services.SendErrorResponse(w, "Invalid id", http.StatusBadRequest, nil)
		return 0, false
	}
	return id, true
}

// writeServiceError maps service errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, log *zap.Logger, err error) {
	status := http.StatusInternalServerError
	message := "An Internal Error Occurred"

	switch {
	case errors.Is(err, services.ErrAccountNotFound),
		errors.Is(err, services.ErrItemNotFound),
		errors.Is(err, services.ErrRaffleNotFound),
		errors.Is(err, services.ErrReconciliationNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, services.ErrAlreadyClaimed),
		errors.Is(err, services.ErrAlreadyReferred),
		errors.Is(err, services.ErrAlreadyResolved),
		errors.Is(err, services.ErrOutOfStock),
		errors.Is(err, services.ErrRaffleClosed),
		errors.Is(err, services.ErrRaffleFull):
		status, message = http.StatusConflict, err.Error()
	case errors.Is(err, services.ErrInsufficientBalance),
		errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrInvalidCode),
		errors.Is(err, services.ErrSelfReferral),
		errors.Is(err, services.ErrRaffleSchedule):
		status, message = http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, services.ErrStorageConflict):
		status, message = http.StatusServiceUnavailable, "Account is busy, try again"
	default:
		log.Error("request failed", zap.Error(err))
	}
	services.SendErrorResponse(w, message, status, nil)
}
