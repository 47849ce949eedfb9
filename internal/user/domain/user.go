package domain

import (
	"errors"
	"regexp"
	"time"
)

// User is the identity anchor. Owns devices, TOTP secrets, and recovery codes.
type User struct {
	ID        string
	Email     string
	CreatedAt time.Time
}

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Validate checks the user's required fields.
func (u *User) Validate() error {
	if u.ID == "" {
		return errors.New("user id is required")
	}
	if !emailRe.MatchString(u.Email) {
		return errors.New("invalid email format")
	}
	return nil
}
