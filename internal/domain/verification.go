package domain

import "time"

// VerificationPurpose scopes a one-time token.
type VerificationPurpose string

const (
	VerificationResetPassword VerificationPurpose = "reset-password"
	VerificationDeleteAccount VerificationPurpose = "delete-account"
)

// Verification is a one-time token mailed to a user.
type Verification struct {
	ID        string
	Purpose   VerificationPurpose
	Token     string
	UserID    string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Usable reports whether the token can still be redeemed at now.
func (v *Verification) Usable(now time.Time) bool {
	return v.UsedAt == nil && now.Before(v.ExpiresAt)
}
