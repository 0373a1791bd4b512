package models

import (
	"time"
)

// EntryKind categorises a ledger entry.
type EntryKind string

const (
	KindDailyReward     EntryKind = "daily_reward"
	KindReferral        EntryKind = "referral"
	KindRaffleEntry     EntryKind = "raffle_entry"
	KindShopPurchase    EntryKind = "shop_purchase"
	KindAdminAdjustment EntryKind = "admin_adjustment"
)

func (k EntryKind) Valid() bool {
	switch k {
	case KindDailyReward, KindReferral, KindRaffleEntry, KindShopPurchase, KindAdminAdjustment:
		return true
	}
	return false
}

// LedgerEntry is an immutable record of one balance change.
type LedgerEntry struct {
	ID           int64     `json:"id" db:"id"`
	Reference    string    `json:"reference" db:"reference"`
	AccountID    int64     `json:"account_id" db:"account_id"`
	Kind         EntryKind `json:"kind" db:"kind"`
	Amount       int64     `json:"amount" db:"amount"` // positive = credit
	BalanceAfter int64     `json:"balance_after" db:"balance_after"`
	Description  string    `json:"description" db:"description"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Account is one bot end-user's identity, balance, streak and referral state.
type Account struct {
	ID           int64      `json:"id" db:"id"`
	TelegramID   string     `json:"telegram_id" db:"telegram_id"`
	Username     string     `json:"username" db:"username"`
	FirstName    string     `json:"first_name" db:"first_name"`
	LastName     string     `json:"last_name" db:"last_name"`
	Balance      int64      `json:"balance" db:"balance"`
	Streak       int        `json:"streak" db:"streak"`
	LastClaimAt  *time.Time `json:"last_claim_at" db:"last_claim_at"`
	ReferralCode string     `json:"referral_code" db:"referral_code"`
	ReferredBy   *string    `json:"referred_by" db:"referred_by"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	Version      int        `json:"version" db:"version"` // for optimistic locking
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// DisplayName prefers the telegram handle, then the first name.
func (a *Account) DisplayName() string {
	if a.Username != "" {
		return "@" + a.Username
	}
	if a.FirstName != "" {
		return a.FirstName
	}
	return "user " + a.TelegramID
}
