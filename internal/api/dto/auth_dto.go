package dto

import (
	"time"

	"github.com/spec-kit/auth-gateway/internal/domain"
)

// SignUpRequest payload for POST /sign-up/email.
type SignUpRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	FavoriteNumber *int   `json:"favoriteNumber"`
	RememberMe     *bool  `json:"rememberMe"`
	CallbackURL    string `json:"callbackURL"`
}

// SignInRequest payload for POST /sign-in/email.
type SignInRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	RememberMe  *bool  `json:"rememberMe"`
	CallbackURL string `json:"callbackURL"`
}

// ForgetPasswordRequest payload for POST /forget-password.
type ForgetPasswordRequest struct {
	Email      string `json:"email"`
	RedirectTo string `json:"redirectTo"`
}

// ResetPasswordRequest payload for POST /reset-password.
type ResetPasswordRequest struct {
	NewPassword string `json:"newPassword"`
	Token       string `json:"token"`
}

// ChangePasswordRequest payload for POST /change-password.
type ChangePasswordRequest struct {
	CurrentPassword     string `json:"currentPassword"`
	NewPassword         string `json:"newPassword"`
	RevokeOtherSessions bool   `json:"revokeOtherSessions"`
}

// UpdateUserRequest payload for POST /update-user.
type UpdateUserRequest struct {
	Name           *string `json:"name"`
	FavoriteNumber *int    `json:"favoriteNumber"`
}

// ChangeEmailRequest payload for POST /change-email.
type ChangeEmailRequest struct {
	NewEmail    string `json:"newEmail"`
	CallbackURL string `json:"callbackURL"`
}

// DeleteUserRequest payload for POST /delete-user.
type DeleteUserRequest struct {
	CallbackURL string `json:"callbackURL"`
}

// RevokeSessionRequest payload for POST /revoke-session.
type RevokeSessionRequest struct {
	Token string `json:"token"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	EmailVerified  bool      `json:"emailVerified"`
	FavoriteNumber int       `json:"favoriteNumber"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// SessionResponse is the public view of a session.
type SessionResponse struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
	IPAddress string    `json:"ipAddress,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AuthResponse is returned by sign-up and sign-in.
type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// SessionEnvelope is returned by get-session.
type SessionEnvelope struct {
	Session SessionResponse `json:"session"`
	User    UserResponse    `json:"user"`
}

// StatusResponse is the body of endpoints that only acknowledge.
type StatusResponse struct {
	Status bool `json:"status"`
}

// NewUserResponse maps a domain user.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		EmailVerified:  u.EmailVerified,
		FavoriteNumber: u.FavoriteNumber,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

// NewSessionResponse maps a domain session.
func NewSessionResponse(s *domain.Session) SessionResponse {
	return SessionResponse{
		ID:        s.ID,
		Token:     s.Token,
		UserID:    s.UserID,
		ExpiresAt: s.ExpiresAt,
		IPAddress: s.IPAddress,
		UserAgent: s.UserAgent,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}
