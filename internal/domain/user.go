package domain

import "time"

// UserStatus represents lifecycle states for an account.
type UserStatus string

const (
	UserStatusActive      UserStatus = "ACTIVE"
	UserStatusLocked      UserStatus = "LOCKED"
	UserStatusUnconfirmed UserStatus = "UNCONFIRMED"
)

// User is the domain model for registered accounts. Roles and persisted
// claims are stored separately and resolved through the credential verifier.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Status       UserStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CanSignIn reports whether the account is permitted to authenticate.
func (u *User) CanSignIn() bool {
	return u.Status == UserStatusActive
}
