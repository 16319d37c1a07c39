package http

import (
	"context"
	"encoding/json"
	"io"
	"net"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/auth-gateway/internal/api/http/handlers"
	"github.com/spec-kit/auth-gateway/internal/auth"
	"github.com/spec-kit/auth-gateway/internal/config"
	"github.com/spec-kit/auth-gateway/internal/events"
	"github.com/spec-kit/auth-gateway/internal/gate"
	"github.com/spec-kit/auth-gateway/internal/observability"
	"github.com/spec-kit/auth-gateway/internal/persistence"
	"github.com/spec-kit/auth-gateway/internal/repository"
	"github.com/spec-kit/auth-gateway/internal/service"
	"github.com/spec-kit/auth-gateway/internal/shield"
)

const browserUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15"

type mxResolver struct{}

func (mxResolver) LookupMX(_ context.Context, name string) ([]*net.MX, error) {
	if name == "example.com" || name == "mailinator.com" {
		return []*net.MX{{Host: "mx." + name + ".", Pref: 10}}, nil
	}
	return nil, &net.DNSError{Err: "no such host", Name: name, IsNotFound: true}
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	cfg := config.Config{
		App:  config.AppConfig{Name: "auth-gateway", Version: "test", BaseURL: "http://auth.test"},
		Auth: config.AuthConfig{Secret: "s3cret", BcryptCost: bcrypt.MinCost, MinPasswordLength: 6, MaxPasswordLength: 128, ResetTokenTTLMinutes: 60, DeleteTokenTTLMinutes: 60},
		Session: config.SessionConfig{
			ExpiresIn: 7 * 24 * time.Hour, UpdateAge: 24 * time.Hour,
			CookieCache: true, CookieCacheTTL: 5 * time.Minute, RememberMeDefault: true,
		},
		Gate: config.GateConfig{
			Mode: config.ModeLive, StrictMax: 10, StrictWindow: 10 * time.Minute,
			LaxMax: 60, LaxWindow: time.Minute,
			EmailBlock: []string{"DISPOSABLE", "INVALID", "NO_MX_RECORDS"},
			TrustProxy: true,
		},
	}

	store := repository.NewMemoryStore()
	authService := service.NewAuthService(cfg, service.AuthDependencies{
		Users:         store.Users(),
		Sessions:      store.Sessions(),
		Verifications: store.Verifications(),
		Dispatcher:    events.NewInMemoryDispatcher(),
	})

	validator := shield.NewEmailValidator(shield.WithResolver(mxResolver{}), shield.WithLookupRate(0, 0))
	policies, err := gate.NewPolicies(cfg.Gate, shield.NewMemoryWindowStore(), validator)
	if err != nil {
		t.Fatalf("policies: %v", err)
	}
	metrics := observability.NewMetrics()
	g, err := gate.New(cfg.Gate, gate.Deps{
		Protector: shield.NewProtector(zap.NewNop()),
		Policies:  policies,
		Sessions:  service.NewSessionResolver(store.Sessions(), authService.CookieCache()),
		Metrics:   metrics,
	})
	if err != nil {
		t.Fatalf("gate: %v", err)
	}

	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:   handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, &persistence.Postgres{}, nil),
		Metrics:  handlers.NewMetricsHandler(metrics, nil),
		Auth:     handlers.NewAuthHandler(authService, auth.CookieOptions{}),
		Gate:     g.Handler(),
		Sessions: auth.NewSessionMiddleware(authService),
	})
	return app
}

type request struct {
	method  string
	path    string
	body    string
	lang    string
	cookies []*nethttp.Cookie
}

func send(t *testing.T, app *fiber.App, r request) (*nethttp.Response, map[string]any) {
	t.Helper()
	if r.method == "" {
		r.method = nethttp.MethodPost
	}
	req := httptest.NewRequest(r.method, r.path, strings.NewReader(r.body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", browserUA)
	req.Header.Set("X-Forwarded-For", "198.51.100.7")
	if r.lang != "" {
		req.Header.Set("Accept-Language", r.lang)
	}
	for _, c := range r.cookies {
		req.AddCookie(c)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", r.method, r.path, err)
	}
	raw, _ := io.ReadAll(resp.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)
	return resp, body
}

func sessionCookies(resp *nethttp.Response) []*nethttp.Cookie {
	var out []*nethttp.Cookie
	for _, c := range resp.Cookies() {
		if c.Value != "" {
			out = append(out, &nethttp.Cookie{Name: c.Name, Value: c.Value})
		}
	}
	return out
}

func errorOf(t *testing.T, body map[string]any) (string, string) {
	t.Helper()
	e, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error envelope, got %v", body)
	}
	code, _ := e["code"].(string)
	msg, _ := e["message"].(string)
	return code, msg
}

const signUpBody = `{"name":"Ana","email":"ana@example.com","password":"secret123","favoriteNumber":7}`

func TestSignUpSessionAndSignOut(t *testing.T) {
	app := newTestApp(t)

	resp, body := send(t, app, request{path: "/api/auth/sign-up/email", body: signUpBody})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d %v", resp.StatusCode, body)
	}
	user := body["user"].(map[string]any)
	if user["email"] != "ana@example.com" || user["favoriteNumber"].(float64) != 7 {
		t.Fatalf("unexpected user %v", user)
	}
	cookies := sessionCookies(resp)
	if len(cookies) != 2 {
		t.Fatalf("expected token and data cookies, got %v", resp.Header.Values("Set-Cookie"))
	}

	resp, body = send(t, app, request{method: nethttp.MethodGet, path: "/api/auth/get-session", cookies: cookies})
	if resp.StatusCode != fiber.StatusOK || body["user"] == nil {
		t.Fatalf("expected session, got %d %v", resp.StatusCode, body)
	}

	resp, body = send(t, app, request{path: "/api/auth/sign-out", cookies: cookies})
	if resp.StatusCode != fiber.StatusOK || body["success"] != true {
		t.Fatalf("unexpected sign-out %d %v", resp.StatusCode, body)
	}

	resp, body = send(t, app, request{method: nethttp.MethodGet, path: "/api/auth/list-sessions", cookies: cookies[:1]})
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 after sign-out, got %d %v", resp.StatusCode, body)
	}
}

func TestSignUp_DuplicateIsLocalized(t *testing.T) {
	app := newTestApp(t)
	send(t, app, request{path: "/api/auth/sign-up/email", body: signUpBody})

	resp, body := send(t, app, request{path: "/api/auth/sign-up/email", body: signUpBody, lang: "en-US"})
	if resp.StatusCode != fiber.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	code, msg := errorOf(t, body)
	if code != "USER_ALREADY_EXISTS" || msg != "User already exists." {
		t.Fatalf("unexpected error %s %q", code, msg)
	}
}

func TestSignIn_InvalidCredentialsDefaultLocale(t *testing.T) {
	app := newTestApp(t)
	send(t, app, request{path: "/api/auth/sign-up/email", body: signUpBody})

	resp, body := send(t, app, request{path: "/api/auth/sign-in/email", body: `{"email":"ana@example.com","password":"nope-nope"}`})
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	code, msg := errorOf(t, body)
	if code != "INVALID_EMAIL_OR_PASSWORD" || msg != "Email ou senha inválidos." {
		t.Fatalf("unexpected error %s %q", code, msg)
	}
}

func TestGate_BlocksDisposableSignUp(t *testing.T) {
	app := newTestApp(t)

	resp, body := send(t, app, request{
		path: "/api/auth/sign-up/email",
		body: `{"name":"Ana","email":"ana@mailinator.com","password":"secret123","favoriteNumber":7}`,
		lang: "en-US",
	})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d %v", resp.StatusCode, body)
	}
	if body["message"] != "Temporary email addresses are not allowed" {
		t.Fatalf("unexpected gate message %v", body)
	}
}

func TestProtectedRoutes(t *testing.T) {
	app := newTestApp(t)
	resp, _ := send(t, app, request{path: "/api/auth/sign-up/email", body: signUpBody})
	cookies := sessionCookies(resp)

	resp, body := send(t, app, request{path: "/api/auth/update-user", body: `{"name":"Ana Maria"}`, cookies: cookies})
	if resp.StatusCode != fiber.StatusOK || body["status"] != true {
		t.Fatalf("update-user: %d %v", resp.StatusCode, body)
	}

	resp, body = send(t, app, request{path: "/api/auth/change-password",
		body: `{"currentPassword":"wrong-one","newPassword":"another1"}`, cookies: cookies})
	if code, _ := errorOf(t, body); resp.StatusCode != fiber.StatusBadRequest || code != "INVALID_PASSWORD" {
		t.Fatalf("change-password: %d %v", resp.StatusCode, body)
	}

	resp, _ = send(t, app, request{method: nethttp.MethodGet, path: "/api/auth/list-sessions", cookies: cookies})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("list-sessions: %d", resp.StatusCode)
	}

	resp, body = send(t, app, request{path: "/api/auth/change-email", body: `{"newEmail":"x"}`})
	if code, _ := errorOf(t, body); resp.StatusCode != fiber.StatusUnauthorized || code != "UNAUTHORIZED" {
		t.Fatalf("expected 401 without cookie, got %d %v", resp.StatusCode, body)
	}
}

func TestGetSession_AnonymousIsNull(t *testing.T) {
	app := newTestApp(t)
	req := httptest.NewRequest(nethttp.MethodGet, "/api/auth/get-session", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != fiber.StatusOK || string(raw) != "null" {
		t.Fatalf("expected null, got %d %s", resp.StatusCode, raw)
	}
}

func TestUnknownRouteAndHealth(t *testing.T) {
	app := newTestApp(t)

	resp, body := send(t, app, request{method: nethttp.MethodGet, path: "/nope"})
	if code, _ := errorOf(t, body); resp.StatusCode != fiber.StatusNotFound || code != "NOT_FOUND" {
		t.Fatalf("expected 404 envelope, got %d %v", resp.StatusCode, body)
	}

	resp, body = send(t, app, request{method: nethttp.MethodGet, path: "/api/auth/nope"})
	if code, _ := errorOf(t, body); resp.StatusCode != fiber.StatusNotFound || code != "NOT_FOUND" {
		t.Fatalf("expected 404 under /api/auth without a session, got %d %v", resp.StatusCode, body)
	}

	resp, body = send(t, app, request{method: nethttp.MethodGet, path: "/health/ready"})
	if resp.StatusCode != fiber.StatusOK || body["status"] != "ready" {
		t.Fatalf("expected ready with memory stores, got %d %v", resp.StatusCode, body)
	}

	resp, body = send(t, app, request{method: nethttp.MethodGet, path: "/internal/metrics"})
	if resp.StatusCode != fiber.StatusOK || body["metrics"] == nil {
		t.Fatalf("metrics: %d %v", resp.StatusCode, body)
	}
}
