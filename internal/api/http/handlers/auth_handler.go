package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-gateway/internal/api/dto"
	"github.com/spec-kit/auth-gateway/internal/auth"
	"github.com/spec-kit/auth-gateway/internal/service"
	apperrors "github.com/spec-kit/auth-gateway/pkg/errorutil"
)

// AuthHandler exposes the /api/auth endpoints.
type AuthHandler struct {
	auth    *service.AuthService
	cookies auth.CookieOptions
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, cookies auth.CookieOptions) *AuthHandler {
	return &AuthHandler{auth: authService, cookies: cookies}
}

// SignUp handles POST /sign-up/email.
func (h *AuthHandler) SignUp(c *fiber.Ctx) error {
	var req dto.SignUpRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	res, err := h.auth.SignUp(c.UserContext(), service.SignUpInput{
		Name:           req.Name,
		Email:          req.Email,
		Password:       req.Password,
		FavoriteNumber: req.FavoriteNumber,
		RememberMe:     req.RememberMe,
		Client:         clientInfo(c),
	})
	if err != nil {
		return err
	}
	h.writeCookies(c, res)
	return c.JSON(dto.AuthResponse{Token: res.Session.Token, User: dto.NewUserResponse(res.User)})
}

// SignIn handles POST /sign-in/email.
func (h *AuthHandler) SignIn(c *fiber.Ctx) error {
	var req dto.SignInRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	res, err := h.auth.SignIn(c.UserContext(), service.SignInInput{
		Email:      req.Email,
		Password:   req.Password,
		RememberMe: req.RememberMe,
		Client:     clientInfo(c),
	})
	if err != nil {
		return err
	}
	h.writeCookies(c, res)
	return c.JSON(dto.AuthResponse{Token: res.Session.Token, User: dto.NewUserResponse(res.User)})
}

// SignOut handles POST /sign-out.
func (h *AuthHandler) SignOut(c *fiber.Ctx) error {
	if err := h.auth.SignOut(c.UserContext(), c.Cookies(auth.SessionTokenCookie)); err != nil {
		return err
	}
	auth.ClearSessionCookies(c, h.cookies)
	return c.JSON(fiber.Map{"success": true})
}

// GetSession handles GET /get-session.
func (h *AuthHandler) GetSession(c *fiber.Ctx) error {
	res, err := h.auth.GetSession(c.UserContext(),
		c.Cookies(auth.SessionTokenCookie),
		c.Cookies(auth.SessionDataCookie),
		c.QueryBool("disableCookieCache"))
	if err != nil {
		return err
	}
	if res == nil {
		if c.Cookies(auth.SessionTokenCookie) != "" {
			auth.ClearSessionCookies(c, h.cookies)
		}
		return c.JSON(nil)
	}
	h.writeCookies(c, res)
	return c.JSON(dto.SessionEnvelope{
		Session: dto.NewSessionResponse(res.Session),
		User:    dto.NewUserResponse(res.User),
	})
}

// ForgetPassword handles POST /forget-password.
func (h *AuthHandler) ForgetPassword(c *fiber.Ctx) error {
	var req dto.ForgetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" {
		return apperrors.NewValidationError("email required", map[string]any{"email": "required"})
	}
	if err := h.auth.ForgetPassword(c.UserContext(), req.Email, req.RedirectTo, c.Get(fiber.HeaderAcceptLanguage)); err != nil {
		return err
	}
	return c.JSON(dto.StatusResponse{Status: true})
}

// ResetPasswordCallback handles GET /reset-password/:token.
func (h *AuthHandler) ResetPasswordCallback(c *fiber.Ctx) error {
	target, err := h.auth.ResetPasswordRedirect(c.UserContext(), c.Params("token"), c.Query("callbackURL"))
	if err != nil {
		return err
	}
	return c.Redirect(target, http.StatusFound)
}

// ResetPassword handles POST /reset-password.
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	token := req.Token
	if token == "" {
		token = c.Query("token")
	}
	if err := h.auth.ResetPassword(c.UserContext(), token, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(dto.StatusResponse{Status: true})
}

// ChangePassword handles POST /change-password.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	user, err := h.auth.ChangePassword(c.UserContext(), p, req.CurrentPassword, req.NewPassword, req.RevokeOtherSessions)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"token": nil, "user": dto.NewUserResponse(user)})
}

// UpdateUser handles POST /update-user.
func (h *AuthHandler) UpdateUser(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if _, err := h.auth.UpdateUser(c.UserContext(), p, service.UpdateUserInput{
		Name:           req.Name,
		FavoriteNumber: req.FavoriteNumber,
	}); err != nil {
		return err
	}
	return c.JSON(dto.StatusResponse{Status: true})
}

// ChangeEmail handles POST /change-email.
func (h *AuthHandler) ChangeEmail(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.ChangeEmailRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if _, err := h.auth.ChangeEmail(c.UserContext(), p, req.NewEmail); err != nil {
		return err
	}
	return c.JSON(dto.StatusResponse{Status: true})
}

// DeleteUser handles POST /delete-user.
func (h *AuthHandler) DeleteUser(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.DeleteUserRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	if err := h.auth.RequestDeletion(c.UserContext(), p, req.CallbackURL, c.Get(fiber.HeaderAcceptLanguage)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": "Verification email sent"})
}

// DeleteUserCallback handles GET /delete-user/callback.
func (h *AuthHandler) DeleteUserCallback(c *fiber.Ctx) error {
	callbackURL := c.Query("callbackURL")
	if err := h.auth.ValidateCallback(callbackURL); err != nil {
		return err
	}
	if err := h.auth.ConfirmDeletion(c.UserContext(), c.Query("token"), c.Get(fiber.HeaderAcceptLanguage)); err != nil {
		return err
	}
	auth.ClearSessionCookies(c, h.cookies)
	if callbackURL == "" {
		return c.JSON(fiber.Map{"success": true, "message": "User deleted"})
	}
	return c.Redirect(callbackURL, http.StatusFound)
}

// ListSessions handles GET /list-sessions.
func (h *AuthHandler) ListSessions(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	sessions, err := h.auth.ListSessions(c.UserContext(), p)
	if err != nil {
		return err
	}
	out := make([]dto.SessionResponse, 0, len(sessions))
	for i := range sessions {
		out = append(out, dto.NewSessionResponse(&sessions[i]))
	}
	return c.JSON(out)
}

// RevokeSession handles POST /revoke-session.
func (h *AuthHandler) RevokeSession(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.RevokeSessionRequest
	if err := c.BodyParser(&req); err != nil || req.Token == "" {
		return apperrors.NewValidationError("token required", map[string]any{"token": "required"})
	}
	if err := h.auth.RevokeSession(c.UserContext(), p, req.Token); err != nil {
		return err
	}
	if req.Token == p.Session.Token {
		auth.ClearSessionCookies(c, h.cookies)
	}
	return c.JSON(dto.StatusResponse{Status: true})
}

// RevokeOtherSessions handles POST /revoke-other-sessions.
func (h *AuthHandler) RevokeOtherSessions(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	if err := h.auth.RevokeOtherSessions(c.UserContext(), p); err != nil {
		return err
	}
	return c.JSON(dto.StatusResponse{Status: true})
}

// RevokeSessions handles POST /revoke-sessions.
func (h *AuthHandler) RevokeSessions(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	if err := h.auth.RevokeSessions(c.UserContext(), p); err != nil {
		return err
	}
	auth.ClearSessionCookies(c, h.cookies)
	return c.JSON(dto.StatusResponse{Status: true})
}

func (h *AuthHandler) writeCookies(c *fiber.Ctx, res *service.AuthResult) {
	if res.Cookies != nil {
		auth.SetSessionCookies(c, h.cookies, *res.Cookies)
	}
}

func principal(c *fiber.Ctx) (*auth.Principal, error) {
	p, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("missing session")
	}
	return p, nil
}

func clientInfo(c *fiber.Ctx) service.ClientInfo {
	return service.ClientInfo{
		IPAddress: c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
		Locale:    c.Get(fiber.HeaderAcceptLanguage),
	}
}
