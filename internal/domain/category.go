package domain

import "time"

// Category is a user-defined label applied to transactions. Name and
// color are free-form strings; uniqueness is not enforced.
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}
