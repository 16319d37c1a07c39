package gate

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-gateway/internal/i18n"
	"github.com/spec-kit/auth-gateway/internal/shield"
)

// Denial is the HTTP shape of a denied request.
type Denial struct {
	Status     int
	MessageKey string
}

// emailPriority orders the email types that have their own message.
var emailPriority = []struct {
	kind shield.EmailType
	key  string
}{
	{shield.EmailInvalid, i18n.KeyGateEmailInvalid},
	{shield.EmailNoMX, i18n.KeyGateEmailInvalidDomain},
	{shield.EmailDisposable, i18n.KeyGateEmailDisposable},
}

// DenialFor maps a denial reason to its response. Attack signature hits are
// reported like bot blocks.
func DenialFor(reason shield.Reason) Denial {
	switch {
	case reason.IsRateLimit():
		return Denial{Status: fiber.StatusTooManyRequests, MessageKey: i18n.KeyGateRateLimited}
	case reason.IsEmail():
		for _, p := range emailPriority {
			if reason.HasEmailType(p.kind) {
				return Denial{Status: fiber.StatusBadRequest, MessageKey: p.key}
			}
		}
		return Denial{Status: fiber.StatusBadRequest, MessageKey: i18n.KeyGateEmailNotAllowed}
	default:
		return Denial{Status: fiber.StatusBadRequest, MessageKey: i18n.KeyGateBotBlocked}
	}
}
