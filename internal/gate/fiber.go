package gate

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-gateway/internal/i18n"
	apperrors "github.com/spec-kit/auth-gateway/pkg/errorutil"
)

// Handler returns the fiber middleware guarding the auth routes. Only POST is
// gated.
func (g *Gate) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost {
			return c.Next()
		}

		// fasthttp reuses the request buffer; keep our own copy of the raw
		// bytes for downstream. c.Body decodes Content-Encoding, so the decoded
		// form is only used for inspection.
		raw := append([]byte(nil), c.Request().Body()...)
		body := raw
		if len(c.Request().Header.ContentEncoding()) > 0 {
			body = append([]byte(nil), c.Body()...)
		}

		ev, err := g.Evaluate(c.UserContext(), Request{
			Method:   c.Method(),
			Path:     c.Path(),
			Query:    string(c.Request().URI().QueryString()),
			Header:   requestHeader(c),
			Body:     body,
			RemoteIP: c.Context().RemoteIP().String(),
		})
		if err != nil {
			if !g.failOpen {
				return apperrors.NewInternalError(err)
			}
			g.logger.Warn("gate failed open", zap.Error(err), zap.String("path", c.Path()))
		} else if ev.Decision.IsDenied() {
			denial := DenialFor(ev.Decision.Reason)
			tag := i18n.ResolveTag(c.Get(fiber.HeaderAcceptLanguage))
			return c.Status(denial.Status).JSON(fiber.Map{"message": i18n.T(tag, denial.MessageKey)})
		}

		c.Request().SetBody(raw)
		return c.Next()
	}
}

func requestHeader(c *fiber.Ctx) http.Header {
	header := make(http.Header)
	c.Request().Header.VisitAll(func(key, value []byte) {
		header.Add(string(key), string(value))
	})
	return header
}
