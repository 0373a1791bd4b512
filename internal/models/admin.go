package models

import "time"

type Admin struct {
	ID        int       `json:"id" example:"1"`          // Admin ID
	Username  string    `json:"username" example:"root"` // Login name
	Name      string    `json:"name" example:"Jane Doe"` // Display name
	CreatedAt time.Time `json:"created_at"`
}
