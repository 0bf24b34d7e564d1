package domain

import "time"

// User owns categories, statements and transactions. Anonymous users are
// created without credentials and can be converted in place to permanent
// accounts at sign-up.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email,omitempty"`
	Name         string    `json:"name,omitempty"`
	PasswordHash string    `json:"-"`
	Anonymous    bool      `json:"anonymous"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Session is one issued bearer token. Expired sessions are treated as
// absent and removed lazily on lookup.
type Session struct {
	Token     string    `json:"-"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}
