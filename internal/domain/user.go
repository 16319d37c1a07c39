package domain

import "time"

// User is an account holder.
type User struct {
	ID             string
	Name           string
	Email          string
	EmailVerified  bool
	FavoriteNumber int
	// PasswordHash is empty for accounts without a credential.
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPassword reports whether the user can sign in with email and password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}
