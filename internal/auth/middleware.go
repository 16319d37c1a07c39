package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-gateway/internal/domain"
	apperrors "github.com/spec-kit/auth-gateway/pkg/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the signed-in caller.
type Principal struct {
	Session *domain.Session
	User    *domain.User
}

// SessionAuthenticator validates a session token against the store.
type SessionAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*Principal, error)
}

// SessionMiddleware requires a valid session cookie.
type SessionMiddleware struct {
	sessions SessionAuthenticator
}

// NewSessionMiddleware constructs middleware.
func NewSessionMiddleware(sessions SessionAuthenticator) *SessionMiddleware {
	return &SessionMiddleware{sessions: sessions}
}

// Handle enforces a session for protected routes.
func (m *SessionMiddleware) Handle(c *fiber.Ctx) error {
	token := c.Cookies(SessionTokenCookie)
	if token == "" {
		return apperrors.NewUnauthorized("missing session")
	}

	principal, err := m.sessions.Authenticate(c.UserContext(), token)
	if err != nil {
		return err
	}

	c.Locals(principalKey, principal)
	return c.Next()
}

// PrincipalFromContext retrieves the signed-in caller.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
