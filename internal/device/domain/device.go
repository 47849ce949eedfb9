package domain

import "time"

// Device is a registered authenticator bound to a user. The most recently
// created device is treated as canonical for login-start lookups.
type Device struct {
	ID        string
	UserID    string
	Label     string
	Platform  string
	CreatedAt time.Time
}
