package entity

import (
	"time"
)

// User is the aggregate root for the account domain. PasswordHash holds a
// bcrypt digest and is empty for accounts created through OAuth linking.
// OTPHash and OTPExpiresAt are always set and cleared together.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Name         string
	LastName     string
	Contact      string
	Company      string
	Address      string
	Logo         string
	Image        string
	Role         string
	OTPHash      string
	OTPExpiresAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPassword reports whether the account can authenticate with credentials.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}
