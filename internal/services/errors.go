package services

import (
	"errors"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrAlreadyClaimed      = errors.New("daily reward already claimed")
	ErrInvalidCode         = errors.New("invalid referral code")
	ErrSelfReferral        = errors.New("cannot redeem own referral code")
	ErrAlreadyReferred     = errors.New("account already referred")
	// ErrStorageConflict is transient; it is returned once retries are exhausted.
	ErrStorageConflict = errors.New("storage conflict")

	ErrItemNotFound   = errors.New("shop item not found")
	ErrOutOfStock     = errors.New("shop item out of stock")
	ErrRaffleNotFound = errors.New("raffle not found")
	ErrRaffleClosed   = errors.New("raffle closed")
	ErrRaffleFull     = errors.New("raffle full")
	ErrRaffleSchedule = errors.New("raffle must end after it starts")

	ErrReconciliationNotFound = errors.New("reconciliation not found")
	ErrAlreadyResolved        = errors.New("reconciliation already resolved")
)

// errVersionConflict means the account row changed between lock and save.
var errVersionConflict = errors.New("optimistic lock failed")

// reasonOf labels an error for metrics.
func reasonOf(err error) string {
	switch {
	case errors.Is(err, ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrAlreadyClaimed):
		return "already_claimed"
	case errors.Is(err, ErrInvalidCode):
		return "invalid_code"
	case errors.Is(err, ErrSelfReferral):
		return "self_referral"
	case errors.Is(err, ErrAlreadyReferred):
		return "already_referred"
	case errors.Is(err, ErrStorageConflict):
		return "storage_conflict"
	case errors.Is(err, ErrItemNotFound), errors.Is(err, ErrOutOfStock):
		return "shop"
	case errors.Is(err, ErrRaffleNotFound), errors.Is(err, ErrRaffleClosed), errors.Is(err, ErrRaffleFull),
		errors.Is(err, ErrRaffleSchedule):
		return "raffle"
	case errors.Is(err, ErrReconciliationNotFound), errors.Is(err, ErrAlreadyResolved):
		return "reconciliation"
	default:
		return "error"
	}
}

// IsBusinessError reports whether err is an expected outcome rather than a system failure.
func IsBusinessError(err error) bool {
	switch reasonOf(err) {
	case "error", "storage_conflict":
		return false
	}
	return true
}
