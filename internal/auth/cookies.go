package auth

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Cookie names.
const (
	SessionTokenCookie = "auth.session_token"
	SessionDataCookie  = "auth.session_data"
)

// CookieOptions are the attributes shared by the session cookies.
type CookieOptions struct {
	Secure bool
	Domain string
}

// SessionCookies is what gets written after sign-in or a refresh. A zero
// TokenExpires writes a browser-session cookie.
type SessionCookies struct {
	Token        string
	TokenExpires time.Time
	Data         string
	DataExpires  time.Time
}

// SetSessionCookies writes whichever of the two cookies carry a value.
func SetSessionCookies(c *fiber.Ctx, opts CookieOptions, sc SessionCookies) {
	if sc.Token != "" {
		c.Cookie(newCookie(opts, SessionTokenCookie, sc.Token, sc.TokenExpires))
	}
	if sc.Data != "" {
		c.Cookie(newCookie(opts, SessionDataCookie, sc.Data, sc.DataExpires))
	}
}

// ClearSessionCookies expires both cookies.
func ClearSessionCookies(c *fiber.Ctx, opts CookieOptions) {
	for _, name := range []string{SessionTokenCookie, SessionDataCookie} {
		cookie := newCookie(opts, name, "", time.Unix(0, 0))
		cookie.MaxAge = -1
		c.Cookie(cookie)
	}
}

func newCookie(opts CookieOptions, name, value string, expires time.Time) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   opts.Domain,
		Expires:  expires,
		Secure:   opts.Secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	}
}

// SessionCookiesFromHeader reads the session token and cached data from raw
// request headers.
func SessionCookiesFromHeader(header http.Header) (token, data string) {
	req := http.Request{Header: header}
	if c, err := req.Cookie(SessionTokenCookie); err == nil {
		token = c.Value
	}
	if c, err := req.Cookie(SessionDataCookie); err == nil {
		data = c.Value
	}
	return token, data
}
