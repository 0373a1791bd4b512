package models

import "time"

// ShopItem is something accounts can buy with coins. A nil Stock means unlimited.
type ShopItem struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Cost        int64     `json:"cost" db:"cost"`
	Stock       *int      `json:"stock" db:"stock"`
	ImageURL    string    `json:"image_url" db:"image_url"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Purchase statuses
const (
	PurchaseStatusPending   = "pending"
	PurchaseStatusCompleted = "completed"
	PurchaseStatusCancelled = "cancelled"
)

type Purchase struct {
	ID        int64     `json:"id" db:"id"`
	AccountID int64     `json:"account_id" db:"account_id"`
	ItemID    int64     `json:"item_id" db:"item_id"`
	Quantity  int       `json:"quantity" db:"quantity"`
	TotalCost int64     `json:"total_cost" db:"total_cost"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
