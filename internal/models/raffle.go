package models

import "time"

// Raffle is a prize draw accounts enter by spending coins. A nil MaxEntries means unlimited.
type Raffle struct {
	ID               int64     `json:"id" db:"id"`
	Title            string    `json:"title" db:"title"`
	Description      string    `json:"description" db:"description"`
	PrizeDescription string    `json:"prize_description" db:"prize_description"`
	EntryCost        int64     `json:"entry_cost" db:"entry_cost"`
	MaxEntries       *int      `json:"max_entries" db:"max_entries"`
	CurrentEntries   int       `json:"current_entries" db:"current_entries"`
	StartDate        time.Time `json:"start_date" db:"start_date"`
	EndDate          time.Time `json:"end_date" db:"end_date"`
	WinnerID         *int64    `json:"winner_id" db:"winner_id"`
	IsActive         bool      `json:"is_active" db:"is_active"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// Open reports whether the raffle accepts entries at now.
func (r *Raffle) Open(now time.Time) bool {
	return r.IsActive && now.Before(r.EndDate)
}

type RaffleEntry struct {
	ID        int64     `json:"id" db:"id"`
	RaffleID  int64     `json:"raffle_id" db:"raffle_id"`
	AccountID int64     `json:"account_id" db:"account_id"`
	Entries   int       `json:"entries" db:"entries"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// RaffleEntrant is an entry joined with the account that made it.
type RaffleEntrant struct {
	RaffleEntry
	TelegramID string `json:"telegram_id"`
	Username   string `json:"username,omitempty"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
}
