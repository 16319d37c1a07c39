package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/auth-gateway/internal/auth"
	"github.com/spec-kit/auth-gateway/internal/repository"
)

// SessionResolver answers the gate's "who is this caller" question from the
// raw request headers. A valid signed cookie cache answers without a store
// round trip.
type SessionResolver struct {
	sessions repository.SessionRepository
	cache    *auth.CookieCache
	now      func() time.Time
}

// NewSessionResolver builds a resolver. cache may be nil.
func NewSessionResolver(sessions repository.SessionRepository, cache *auth.CookieCache) *SessionResolver {
	return &SessionResolver{sessions: sessions, cache: cache, now: time.Now}
}

// UserIDFromHeaders returns the signed-in user id, or "" when the request
// carries no live session.
func (r *SessionResolver) UserIDFromHeaders(ctx context.Context, header http.Header) (string, error) {
	token, data := auth.SessionCookiesFromHeader(header)
	if token == "" {
		return "", nil
	}
	if r.cache != nil && data != "" {
		if claims, ok := r.cache.Lookup(token, data); ok {
			return claims.UserID, nil
		}
	}

	session, err := r.sessions.GetByToken(ctx, token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if session.Expired(r.now()) {
		return "", nil
	}
	return session.UserID, nil
}
