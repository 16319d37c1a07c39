package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-gateway/internal/api/http/handlers"
	"github.com/spec-kit/auth-gateway/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Metrics *handlers.MetricsHandler
	Auth    *handlers.AuthHandler
	// Gate screens every POST under /api/auth before it reaches a handler.
	Gate     fiber.Handler
	Sessions *auth.SessionMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/internal/metrics", cfg.Metrics.Snapshot)
	}

	authGroup := app.Group("/api/auth")
	if cfg.Gate != nil {
		authGroup.Use(cfg.Gate)
	}
	authGroup.Post("/sign-up/email", cfg.Auth.SignUp)
	authGroup.Post("/sign-in/email", cfg.Auth.SignIn)
	authGroup.Post("/sign-out", cfg.Auth.SignOut)
	authGroup.Get("/get-session", cfg.Auth.GetSession)
	authGroup.Post("/forget-password", cfg.Auth.ForgetPassword)
	authGroup.Get("/reset-password/:token", cfg.Auth.ResetPasswordCallback)
	authGroup.Post("/reset-password", cfg.Auth.ResetPassword)
	authGroup.Get("/delete-user/callback", cfg.Auth.DeleteUserCallback)

	// The session check is attached per route so unmatched paths still 404.
	session := cfg.Sessions.Handle
	authGroup.Post("/change-password", session, cfg.Auth.ChangePassword)
	authGroup.Post("/update-user", session, cfg.Auth.UpdateUser)
	authGroup.Post("/change-email", session, cfg.Auth.ChangeEmail)
	authGroup.Post("/delete-user", session, cfg.Auth.DeleteUser)
	authGroup.Get("/list-sessions", session, cfg.Auth.ListSessions)
	authGroup.Post("/revoke-session", session, cfg.Auth.RevokeSession)
	authGroup.Post("/revoke-other-sessions", session, cfg.Auth.RevokeOtherSessions)
	authGroup.Post("/revoke-sessions", session, cfg.Auth.RevokeSessions)
}
