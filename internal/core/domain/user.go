package domain

import "time"

// User is issued by the external auth service and only read here.
// Credentials never leave the store.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
