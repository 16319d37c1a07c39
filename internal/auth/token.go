package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/auth-gateway/internal/domain"
)

// CookieCache signs a short-lived snapshot of a session so reads can skip the
// database.
type CookieCache struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewCookieCache builds a cache. A non-positive ttl falls back to five minutes.
func NewCookieCache(secret string, ttl time.Duration) *CookieCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CookieCache{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// SessionClaims is the payload of the session data cookie.
type SessionClaims struct {
	SessionID        string `json:"sid"`
	Fingerprint      string `json:"fp"`
	SessionExpiresAt int64  `json:"sexp"`
	UserID           string `json:"uid"`
	Name             string `json:"name"`
	Email            string `json:"email"`
	EmailVerified    bool   `json:"ev"`
	FavoriteNumber   int    `json:"fav"`
	jwt.RegisteredClaims
}

// Issue signs a snapshot of session and user. It expires after the cache ttl
// or with the session, whichever is first.
func (cc *CookieCache) Issue(session *domain.Session, user *domain.User) (string, time.Time, error) {
	now := cc.now()
	expiresAt := now.Add(cc.ttl)
	if session.ExpiresAt.Before(expiresAt) {
		expiresAt = session.ExpiresAt
	}
	claims := &SessionClaims{
		SessionID:        session.ID,
		Fingerprint:      Fingerprint(session.Token),
		SessionExpiresAt: session.ExpiresAt.Unix(),
		UserID:           user.ID,
		Name:             user.Name,
		Email:            user.Email,
		EmailVerified:    user.EmailVerified,
		FavoriteNumber:   user.FavoriteNumber,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(cc.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Parse validates a cookie value and returns its claims.
func (cc *CookieCache) Parse(value string) (*SessionClaims, error) {
	if value == "" {
		return nil, errors.New("empty session data")
	}
	parsed, err := jwt.ParseWithClaims(value, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return cc.secret, nil
	}, jwt.WithTimeFunc(cc.now))
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid session data claims")
	}
	return claims, nil
}

// Lookup parses value and checks it was issued for sessionToken.
func (cc *CookieCache) Lookup(sessionToken, value string) (*SessionClaims, bool) {
	if sessionToken == "" {
		return nil, false
	}
	claims, err := cc.Parse(value)
	if err != nil || claims.Fingerprint != Fingerprint(sessionToken) {
		return nil, false
	}
	return claims, true
}

// Fingerprint ties a cookie cache entry to its session token without
// embedding the token.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:12])
}

// Session rebuilds the cached session.
func (c *SessionClaims) Session() *domain.Session {
	return &domain.Session{
		ID:        c.SessionID,
		UserID:    c.UserID,
		ExpiresAt: time.Unix(c.SessionExpiresAt, 0),
	}
}

// User rebuilds the cached user.
func (c *SessionClaims) User() *domain.User {
	return &domain.User{
		ID:             c.UserID,
		Name:           c.Name,
		Email:          c.Email,
		EmailVerified:  c.EmailVerified,
		FavoriteNumber: c.FavoriteNumber,
	}
}
