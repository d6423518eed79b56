package auth

import (
	"time"

	"github.com/avdeyev/roster/internal/email"
)

// User contains the data for a registered user.
type User struct {
	ID           int
	FirstName    string
	LastName     string
	Email        email.Address
	PasswordHash Argon2Hash
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FullName returns the user's display name.
func (u User) FullName() string {
	return u.FirstName + " " + u.LastName
}
