package models

import "time"

// Setting keys stored in bot_settings
const (
	SettingDailyRewardAmount    = "daily_reward_amount"
	SettingReferralRewardAmount = "referral_reward_amount"
)

type Setting struct {
	Key         string    `json:"key" db:"key"`
	Value       string    `json:"value" db:"value"`
	Description string    `json:"description" db:"description"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// ReferralReconciliation flags a referrer reward that could not be granted.
type ReferralReconciliation struct {
	ID         string     `json:"id" db:"id"`
	ReferrerID int64      `json:"referrer_id" db:"referrer_id"`
	ReferredID int64      `json:"referred_id" db:"referred_id"`
	Amount     int64      `json:"amount" db:"amount"`
	Reason     string     `json:"reason" db:"reason"`
	Resolved   bool       `json:"resolved" db:"resolved"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at" db:"resolved_at"`
}
