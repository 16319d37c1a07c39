package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-gateway/internal/auth"
	"github.com/spec-kit/auth-gateway/internal/config"
	"github.com/spec-kit/auth-gateway/internal/domain"
	"github.com/spec-kit/auth-gateway/internal/events"
	"github.com/spec-kit/auth-gateway/internal/repository"
	apperrors "github.com/spec-kit/auth-gateway/pkg/errorutil"
)

const (
	// freshAge bounds how old a session may be for destructive actions.
	freshAge = 24 * time.Hour
	// shortSessionTTL is the server-side lifetime of a session created
	// without remember-me. Such sessions are never extended.
	shortSessionTTL = 24 * time.Hour
)

// ClientInfo describes the caller of an auth operation.
type ClientInfo struct {
	IPAddress string
	UserAgent string
	Locale    string
}

// SignUpInput is the payload of an email sign-up.
type SignUpInput struct {
	Name           string
	Email          string
	Password       string
	FavoriteNumber *int
	RememberMe     *bool
	Client         ClientInfo
}

// SignInInput is the payload of an email sign-in.
type SignInInput struct {
	Email      string
	Password   string
	RememberMe *bool
	Client     ClientInfo
}

// AuthResult is a session with its user and the cookies to write.
type AuthResult struct {
	Session    *domain.Session
	User       *domain.User
	RememberMe bool
	// Cookies is nil when nothing has to be written.
	Cookies *auth.SessionCookies
}

// UpdateUserInput holds optional profile changes.
type UpdateUserInput struct {
	Name           *string
	FavoriteNumber *int
}

// AuthService coordinates sign-up, sign-in and account management.
type AuthService struct {
	users         repository.UserRepository
	sessions      repository.SessionRepository
	verifications repository.VerificationRepository
	cache         *auth.CookieCache
	dispatcher    events.Dispatcher
	logger        *zap.Logger

	bcryptCost     int
	minPassword    int
	maxPassword    int
	sessionTTL     time.Duration
	updateAge      time.Duration
	resetTTL       time.Duration
	deleteTTL      time.Duration
	cookieCache    bool
	rememberMe     bool
	baseURL        string
	trustedOrigins []string
	now            func() time.Time
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	Users         repository.UserRepository
	Sessions      repository.SessionRepository
	Verifications repository.VerificationRepository
	Dispatcher    events.Dispatcher
	Logger        *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:          deps.Users,
		sessions:       deps.Sessions,
		verifications:  deps.Verifications,
		cache:          auth.NewCookieCache(cfg.Auth.Secret, cfg.Session.CookieCacheTTL),
		dispatcher:     deps.Dispatcher,
		logger:         logger,
		bcryptCost:     cfg.Auth.BcryptCost,
		minPassword:    cfg.Auth.MinPasswordLength,
		maxPassword:    cfg.Auth.MaxPasswordLength,
		sessionTTL:     cfg.Session.ExpiresIn,
		updateAge:      cfg.Session.UpdateAge,
		resetTTL:       time.Duration(cfg.Auth.ResetTokenTTLMinutes) * time.Minute,
		deleteTTL:      time.Duration(cfg.Auth.DeleteTokenTTLMinutes) * time.Minute,
		cookieCache:    cfg.Session.CookieCache,
		rememberMe:     cfg.Session.RememberMeDefault,
		baseURL:        cfg.App.BaseURL,
		trustedOrigins: cfg.Auth.TrustedCallbackOrigins,
		now:            time.Now,
	}
}

// CookieCache exposes the signer shared with the session resolver.
func (s *AuthService) CookieCache() *auth.CookieCache {
	return s.cache
}

// SignUp creates an account with a password and signs it in.
func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) (*AuthResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)

	details := map[string]any{}
	if in.Name == "" {
		details["name"] = "required"
	}
	if !looksLikeEmail(in.Email) {
		details["email"] = "invalid"
	}
	if in.FavoriteNumber == nil {
		details["favoriteNumber"] = "required"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid sign-up payload", details)
	}
	if err := s.checkPassword(in.Password); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return nil, apperrors.NewUnprocessable(apperrors.CodeUserAlreadyExists, "user already exists")
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		Name:           in.Name,
		Email:          in.Email,
		FavoriteNumber: *in.FavoriteNumber,
		PasswordHash:   hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewUnprocessable(apperrors.CodeUserAlreadyExists, "user already exists")
		}
		return nil, err
	}

	res, err := s.startSession(ctx, user, s.remember(in.RememberMe), in.Client)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.New(events.EventUserSignedUp, user.ID, in.Client.Locale,
		events.UserSignedUpPayload{Recipient: recipient(user)}))
	return res, nil
}

// SignIn checks credentials and opens a session.
func (s *AuthService) SignIn(ctx context.Context, in SignInInput) (*AuthResult, error) {
	invalid := apperrors.NewUnauthorizedCode(apperrors.CodeInvalidEmailOrPassword, "invalid email or password")

	email := normalizeEmail(in.Email)
	if !looksLikeEmail(email) || in.Password == "" {
		return nil, invalid
	}
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, pgx.ErrNoRows) {
		auth.CompareDummy(in.Password, s.bcryptCost)
		return nil, invalid
	}
	if err != nil {
		return nil, err
	}
	if !user.HasPassword() {
		return nil, invalid
	}
	if err := auth.ComparePassword(user.PasswordHash, in.Password); err != nil {
		return nil, invalid
	}

	res, err := s.startSession(ctx, user, s.remember(in.RememberMe), in.Client)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.New(events.EventUserSignedIn, user.ID, in.Client.Locale, events.SessionPayload{
		SessionID: res.Session.ID,
		IPAddress: in.Client.IPAddress,
		UserAgent: in.Client.UserAgent,
	}))
	return res, nil
}

// SignOut deletes the session behind token. Unknown tokens are ignored.
func (s *AuthService) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	session, err := s.sessions.GetByToken(ctx, token)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.sessions.DeleteByToken(ctx, token); err != nil {
		return err
	}
	s.publish(ctx, events.New(events.EventUserSignedOut, session.UserID, "", events.SessionPayload{SessionID: session.ID}))
	return nil
}

// GetSession returns the current session or nil. A valid cookie cache answers
// without touching the store. Sessions older than the update age are extended
// and the result carries fresh cookies.
func (s *AuthService) GetSession(ctx context.Context, token, cached string, disableCache bool) (*AuthResult, error) {
	if token == "" {
		return nil, nil
	}
	if s.cookieCache && !disableCache {
		if claims, ok := s.cache.Lookup(token, cached); ok {
			session := claims.Session()
			session.Token = token
			return &AuthResult{Session: session, User: claims.User()}, nil
		}
	}

	principal, err := s.loadSession(ctx, token)
	if err != nil || principal == nil {
		return nil, err
	}
	res := &AuthResult{Session: principal.Session, User: principal.User}

	now := s.now()
	if s.refreshable(principal.Session, now) {
		expiresAt := now.Add(s.sessionTTL)
		if err := s.sessions.Extend(ctx, principal.Session.ID, expiresAt); err != nil {
			return nil, err
		}
		res.Session.ExpiresAt = expiresAt
		res.RememberMe = true
		cookies, err := s.cookies(res.Session, res.User, true)
		if err != nil {
			return nil, err
		}
		res.Cookies = cookies
	} else if s.cookieCache {
		cookies, err := s.cookies(res.Session, res.User, true)
		if err != nil {
			return nil, err
		}
		// token cookie is unchanged; only refresh the cache
		cookies.Token = ""
		res.Cookies = cookies
	}
	return res, nil
}

// Authenticate implements auth.SessionAuthenticator.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*auth.Principal, error) {
	principal, err := s.loadSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if principal == nil {
		return nil, apperrors.NewUnauthorizedCode(apperrors.CodeSessionExpired, "session expired")
	}
	return principal, nil
}

// loadSession returns nil without error when the session is unknown or
// expired.
func (s *AuthService) loadSession(ctx context.Context, token string) (*auth.Principal, error) {
	session, err := s.sessions.GetByToken(ctx, token)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if session.Expired(s.now()) {
		if err := s.sessions.DeleteByToken(ctx, token); err != nil {
			s.logger.Warn("delete expired session", zap.Error(err))
		}
		return nil, nil
	}
	user, err := s.users.GetByID(ctx, session.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &auth.Principal{Session: session, User: user}, nil
}

// ForgetPassword mails a reset link when the address belongs to a user. The
// outcome is never revealed to the caller.
func (s *AuthService) ForgetPassword(ctx context.Context, email, redirectTo, locale string) error {
	if err := s.ValidateCallback(redirectTo); err != nil {
		return err
	}
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, pgx.ErrNoRows) {
		s.logger.Debug("password reset for unknown email")
		return nil
	}
	if err != nil {
		return err
	}

	v, err := s.issueVerification(ctx, domain.VerificationResetPassword, user.ID, s.resetTTL)
	if err != nil {
		return err
	}
	link := s.baseURL + "/api/auth/reset-password/" + url.PathEscape(v.Token) +
		"?callbackURL=" + url.QueryEscape(redirectTo)
	s.publish(ctx, events.New(events.EventPasswordResetRequested, user.ID, locale, events.PasswordResetRequestedPayload{
		Recipient: recipient(user),
		URL:       link,
		ExpiresAt: v.ExpiresAt,
	}))
	return nil
}

// ResetPasswordRedirect resolves the link in a reset mail to the client page,
// passing the token on or reporting it as invalid.
func (s *AuthService) ResetPasswordRedirect(ctx context.Context, token, callbackURL string) (string, error) {
	if err := s.ValidateCallback(callbackURL); err != nil {
		return "", err
	}
	v, err := s.verifications.GetByToken(ctx, domain.VerificationResetPassword, token)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}
	if err != nil || !v.Usable(s.now()) {
		return withQuery(callbackURL, "error", apperrors.CodeInvalidToken), nil
	}
	return withQuery(callbackURL, "token", token), nil
}

// ResetPassword redeems a reset token.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := s.checkPassword(newPassword); err != nil {
		return err
	}
	v, err := s.usableVerification(ctx, domain.VerificationResetPassword, token)
	if err != nil {
		return err
	}
	user, err := s.users.GetByID(ctx, v.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewBadRequest(apperrors.CodeInvalidToken, "invalid token")
		}
		return err
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	if err := s.verifications.MarkUsed(ctx, v.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewBadRequest(apperrors.CodeInvalidToken, "invalid token")
		}
		return err
	}
	user.PasswordHash = hash
	return s.users.Update(ctx, user)
}

// ChangePassword verifies the current password before replacing it.
func (s *AuthService) ChangePassword(ctx context.Context, p *auth.Principal, current, next string, revokeOthers bool) (*domain.User, error) {
	if !p.User.HasPassword() {
		return nil, apperrors.NewBadRequest(apperrors.CodeCredentialNotFound, "credential account not found")
	}
	if err := auth.ComparePassword(p.User.PasswordHash, current); err != nil {
		return nil, apperrors.NewBadRequest(apperrors.CodeInvalidPassword, "invalid password")
	}
	if err := s.checkPassword(next); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(next, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	p.User.PasswordHash = hash
	if err := s.users.Update(ctx, p.User); err != nil {
		return nil, err
	}

	var revoked int64
	if revokeOthers {
		if revoked, err = s.sessions.DeleteByUser(ctx, p.User.ID, p.Session.Token); err != nil {
			return nil, err
		}
	}
	s.publish(ctx, events.New(events.EventPasswordChanged, p.User.ID, "", events.PasswordChangedPayload{RevokedSessions: revoked}))
	return p.User, nil
}

// UpdateUser applies profile changes.
func (s *AuthService) UpdateUser(ctx context.Context, p *auth.Principal, in UpdateUserInput) (*domain.User, error) {
	if in.Name == nil && in.FavoriteNumber == nil {
		return nil, apperrors.NewValidationError("no fields to update", nil)
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperrors.NewValidationError("invalid profile", map[string]any{"name": "required"})
		}
		p.User.Name = name
	}
	if in.FavoriteNumber != nil {
		p.User.FavoriteNumber = *in.FavoriteNumber
	}
	if err := s.users.Update(ctx, p.User); err != nil {
		return nil, err
	}
	return p.User, nil
}

// ChangeEmail moves the account to a new, unverified address.
func (s *AuthService) ChangeEmail(ctx context.Context, p *auth.Principal, newEmail string) (*domain.User, error) {
	newEmail = normalizeEmail(newEmail)
	if !looksLikeEmail(newEmail) {
		return nil, apperrors.NewValidationError("invalid email", map[string]any{"newEmail": "invalid"})
	}
	if strings.EqualFold(newEmail, p.User.Email) {
		return nil, apperrors.NewBadRequest(apperrors.CodeEmailAlreadyInUse, "email is the same")
	}
	if _, err := s.users.GetByEmail(ctx, newEmail); err == nil {
		return nil, apperrors.NewBadRequest(apperrors.CodeEmailAlreadyInUse, "email already in use")
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	p.User.Email = newEmail
	p.User.EmailVerified = false
	if err := s.users.Update(ctx, p.User); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewBadRequest(apperrors.CodeEmailAlreadyInUse, "email already in use")
		}
		return nil, err
	}
	return p.User, nil
}

// RequestDeletion mails a confirmation link. The session must be fresh.
func (s *AuthService) RequestDeletion(ctx context.Context, p *auth.Principal, callbackURL, locale string) error {
	if s.now().Sub(p.Session.CreatedAt) > freshAge {
		return apperrors.NewForbiddenCode(apperrors.CodeSessionNotFreshEnough, "session is not fresh enough")
	}
	if err := s.ValidateCallback(callbackURL); err != nil {
		return err
	}
	v, err := s.issueVerification(ctx, domain.VerificationDeleteAccount, p.User.ID, s.deleteTTL)
	if err != nil {
		return err
	}
	link := s.baseURL + "/api/auth/delete-user/callback?token=" + url.QueryEscape(v.Token)
	if callbackURL != "" {
		link += "&callbackURL=" + url.QueryEscape(callbackURL)
	}
	s.publish(ctx, events.New(events.EventAccountDeletionRequested, p.User.ID, locale, events.AccountDeletionRequestedPayload{
		Recipient: recipient(p.User),
		URL:       link,
		ExpiresAt: v.ExpiresAt,
	}))
	return nil
}

// ConfirmDeletion redeems a deletion token and removes the account with all
// its sessions.
func (s *AuthService) ConfirmDeletion(ctx context.Context, token, locale string) error {
	v, err := s.usableVerification(ctx, domain.VerificationDeleteAccount, token)
	if err != nil {
		return err
	}
	user, err := s.users.GetByID(ctx, v.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewBadRequest(apperrors.CodeInvalidToken, "invalid token")
		}
		return err
	}
	if err := s.verifications.MarkUsed(ctx, v.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewBadRequest(apperrors.CodeInvalidToken, "invalid token")
		}
		return err
	}
	if err := s.users.Delete(ctx, user.ID); err != nil {
		return err
	}
	s.publish(ctx, events.New(events.EventUserDeleted, user.ID, locale, events.UserDeletedPayload{Recipient: recipient(user)}))
	return nil
}

// ListSessions returns the caller's active sessions.
func (s *AuthService) ListSessions(ctx context.Context, p *auth.Principal) ([]domain.Session, error) {
	return s.sessions.ListByUser(ctx, p.User.ID)
}

// RevokeSession deletes one of the caller's sessions.
func (s *AuthService) RevokeSession(ctx context.Context, p *auth.Principal, token string) error {
	session, err := s.sessions.GetByToken(ctx, token)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && session.UserID != p.User.ID) {
		return apperrors.NewNotFound("session", nil)
	}
	if err != nil {
		return err
	}
	return s.sessions.DeleteByToken(ctx, token)
}

// RevokeOtherSessions deletes every session of the caller but the current one.
func (s *AuthService) RevokeOtherSessions(ctx context.Context, p *auth.Principal) error {
	_, err := s.sessions.DeleteByUser(ctx, p.User.ID, p.Session.Token)
	return err
}

// RevokeSessions deletes every session of the caller, the current one
// included.
func (s *AuthService) RevokeSessions(ctx context.Context, p *auth.Principal) error {
	_, err := s.sessions.DeleteByUser(ctx, p.User.ID, "")
	return err
}

func (s *AuthService) startSession(ctx context.Context, user *domain.User, rememberMe bool, client ClientInfo) (*AuthResult, error) {
	ttl := s.sessionTTL
	if !rememberMe && ttl > shortSessionTTL {
		ttl = shortSessionTTL
	}
	session := &domain.Session{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: s.now().Add(ttl),
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		s.logger.Error("create session", zap.Error(err))
		return nil, apperrors.NewDomainError(apperrors.CodeFailedToCreateSession, "failed to create session", 500, nil)
	}
	cookies, err := s.cookies(session, user, rememberMe)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Session: session, User: user, RememberMe: rememberMe, Cookies: cookies}, nil
}

// refreshable reports whether a remembered session has gone longer than the
// update age without being extended.
func (s *AuthService) refreshable(session *domain.Session, now time.Time) bool {
	if s.updateAge <= 0 || session.ExpiresAt.Sub(session.CreatedAt) <= shortSessionTTL {
		return false
	}
	return session.ExpiresAt.Sub(now) < s.sessionTTL-s.updateAge
}

func (s *AuthService) cookies(session *domain.Session, user *domain.User, rememberMe bool) (*auth.SessionCookies, error) {
	sc := &auth.SessionCookies{Token: session.Token}
	if rememberMe {
		sc.TokenExpires = session.ExpiresAt
	}
	if s.cookieCache {
		data, exp, err := s.cache.Issue(session, user)
		if err != nil {
			return nil, err
		}
		sc.Data, sc.DataExpires = data, exp
	}
	return sc, nil
}

func (s *AuthService) issueVerification(ctx context.Context, purpose domain.VerificationPurpose, userID string, ttl time.Duration) (*domain.Verification, error) {
	if ttl <= 0 {
		ttl = time.Hour
	}
	v := &domain.Verification{
		Purpose:   purpose,
		Token:     uuid.NewString(),
		UserID:    userID,
		ExpiresAt: s.now().Add(ttl),
	}
	if err := s.verifications.Create(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *AuthService) usableVerification(ctx context.Context, purpose domain.VerificationPurpose, token string) (*domain.Verification, error) {
	invalid := apperrors.NewBadRequest(apperrors.CodeInvalidToken, "invalid token")
	if token == "" {
		return nil, invalid
	}
	v, err := s.verifications.GetByToken(ctx, purpose, token)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, invalid
	}
	if err != nil {
		return nil, err
	}
	if !v.Usable(s.now()) {
		return nil, invalid
	}
	return v, nil
}

func (s *AuthService) checkPassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < s.minPassword {
		return apperrors.NewBadRequest(apperrors.CodePasswordTooShort, "password too short")
	}
	if n > s.maxPassword {
		return apperrors.NewBadRequest(apperrors.CodePasswordTooLong, "password too long")
	}
	return nil
}

// ValidateCallback accepts relative paths, the service's own origin and the
// configured trusted origins.
func (s *AuthService) ValidateCallback(raw string) error {
	if raw == "" || (strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "//")) {
		return nil
	}
	u, err := url.Parse(raw)
	if err == nil && u.Scheme != "" && u.Host != "" {
		origin := u.Scheme + "://" + u.Host
		if strings.EqualFold(origin, originOf(s.baseURL)) {
			return nil
		}
		for _, trusted := range s.trustedOrigins {
			if strings.EqualFold(origin, strings.TrimRight(trusted, "/")) {
				return nil
			}
		}
	}
	return apperrors.NewForbidden("invalid callbackURL")
}

func (s *AuthService) remember(v *bool) bool {
	if v == nil {
		return s.rememberMe
	}
	return *v
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}

func recipient(u *domain.User) events.Recipient {
	return events.Recipient{Name: u.Name, Email: u.Email}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// looksLikeEmail is a shape check only; address quality is screened by the
// gate before sign-up reaches the service.
func looksLikeEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\r\n")
}

func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func withQuery(raw, key, value string) string {
	u, err := url.Parse(raw)
	if err != nil || raw == "" {
		u = &url.URL{Path: "/"}
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}
