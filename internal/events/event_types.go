package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserSignedUp             EventType = "user_signed_up"
	EventUserSignedIn             EventType = "user_signed_in"
	EventUserSignedOut            EventType = "user_signed_out"
	EventPasswordResetRequested   EventType = "password_reset_requested"
	EventPasswordChanged          EventType = "password_changed"
	EventAccountDeletionRequested EventType = "account_deletion_requested"
	EventUserDeleted              EventType = "user_deleted"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	UserID    string    `json:"user_id"`
	Locale    string    `json:"locale,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// New stamps an event with an id and the current time.
func New(t EventType, userID, locale string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		UserID:    userID,
		Locale:    locale,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// Recipient identifies who a mail goes to.
type Recipient struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UserSignedUpPayload payload.
type UserSignedUpPayload struct {
	Recipient
}

// SessionPayload payload for sign-in and sign-out.
type SessionPayload struct {
	SessionID string `json:"session_id"`
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// PasswordResetRequestedPayload payload.
type PasswordResetRequestedPayload struct {
	Recipient
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PasswordChangedPayload payload.
type PasswordChangedPayload struct {
	RevokedSessions int64 `json:"revoked_sessions"`
}

// AccountDeletionRequestedPayload payload.
type AccountDeletionRequestedPayload struct {
	Recipient
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UserDeletedPayload payload.
type UserDeletedPayload struct {
	Recipient
}
