package gate

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-gateway/internal/config"
	"github.com/spec-kit/auth-gateway/internal/i18n"
	"github.com/spec-kit/auth-gateway/internal/observability"
	"github.com/spec-kit/auth-gateway/internal/shield"
)

const browserUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

type stubResolver struct{}

func (stubResolver) LookupMX(_ context.Context, name string) ([]*net.MX, error) {
	switch name {
	case "example.com", "gmail.com", "mailinator.com":
		return []*net.MX{{Host: "mx." + name + ".", Pref: 10}}, nil
	}
	return nil, &net.DNSError{Err: "no such host", Name: name, IsNotFound: true}
}

// cookieSessions maps the session cookie value straight to a user id.
type cookieSessions struct{}

func (cookieSessions) UserIDFromHeaders(_ context.Context, header http.Header) (string, error) {
	req := http.Request{Header: header}
	c, err := req.Cookie("auth.session_token")
	if err != nil {
		return "", nil
	}
	if c.Value == "broken" {
		return "", errors.New("session store down")
	}
	return "user-" + c.Value, nil
}

type failingStore struct{}

func (failingStore) Hit(context.Context, string, int64, time.Duration) (shield.WindowResult, error) {
	return shield.WindowResult{}, errors.New("redis unavailable")
}

func testGateConfig() config.GateConfig {
	return config.GateConfig{
		Mode:         config.ModeLive,
		StrictMax:    3,
		StrictWindow: 10 * time.Minute,
		LaxMax:       5,
		LaxWindow:    time.Minute,
		EmailBlock:   []string{"DISPOSABLE", "INVALID", "NO_MX_RECORDS"},
		TrustProxy:   true,
	}
}

type harness struct {
	app     *fiber.App
	gate    *Gate
	stats   *shield.MemoryStatsStore
	metrics *observability.Metrics
	calls   int
}

func newHarness(t *testing.T, cfg config.GateConfig, store shield.WindowStore) *harness {
	t.Helper()

	if store == nil {
		store = shield.NewMemoryWindowStore()
	}
	validator := shield.NewEmailValidator(shield.WithResolver(stubResolver{}), shield.WithLookupRate(0, 0))
	policies, err := NewPolicies(cfg, store, validator)
	if err != nil {
		t.Fatalf("NewPolicies: %v", err)
	}

	h := &harness{stats: shield.NewMemoryStatsStore(), metrics: observability.NewMetrics()}
	h.gate, err = New(cfg, Deps{
		Protector: shield.NewProtector(zap.NewNop()),
		Policies:  policies,
		Sessions:  cookieSessions{},
		Metrics:   h.metrics,
		Stats:     h.stats,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	h.app = fiber.New()
	api := h.app.Group("/api/auth", h.gate.Handler())
	downstream := func(c *fiber.Ctx) error {
		h.calls++
		c.Set("X-Downstream", "auth")
		return c.Status(fiber.StatusCreated).Send(c.Body())
	}
	api.Post("/*", downstream)
	api.Get("/*", downstream)
	return h
}

type call struct {
	method string
	path   string
	body   string
	ua     string
	ip     string
	cookie string
	lang   string
	gzip   bool
}

func gzipped(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(body)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func (h *harness) do(t *testing.T, c call) (*http.Response, string) {
	t.Helper()

	if c.method == "" {
		c.method = http.MethodPost
	}
	var req *http.Request
	if c.gzip {
		req = httptest.NewRequest(c.method, c.path, bytes.NewReader(gzipped(t, c.body)))
		req.Header.Set("Content-Encoding", "gzip")
	} else {
		req = httptest.NewRequest(c.method, c.path, strings.NewReader(c.body))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.ua)
	if c.ip != "" {
		req.Header.Set("X-Forwarded-For", c.ip)
	}
	if c.cookie != "" {
		req.AddCookie(&http.Cookie{Name: "auth.session_token", Value: c.cookie})
	}
	if c.lang != "" {
		req.Header.Set("Accept-Language", c.lang)
	}

	resp, err := h.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(raw)
}

func message(t *testing.T, body string) string {
	t.Helper()
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		t.Fatalf("decode %q: %v", body, err)
	}
	return payload.Message
}

func TestGate_AllowIsTransparent(t *testing.T) {
	h := newHarness(t, testGateConfig(), nil)
	body := `{"email":"ana@example.com","password":"s3cret-pass"}`

	resp, got := h.do(t, call{path: "/api/auth/sign-in/email", body: body, ua: browserUA, ip: "203.0.113.1"})
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("expected downstream status, got %d", resp.StatusCode)
	}
	if got != body {
		t.Fatalf("expected untouched body %q, got %q", body, got)
	}
	if resp.Header.Get("X-Downstream") != "auth" {
		t.Fatalf("expected downstream headers")
	}
}

func TestGate_SignUpBodyReachesDownstream(t *testing.T) {
	h := newHarness(t, testGateConfig(), nil)
	body := `{"name":"Ana","email":"ana@example.com","password":"s3cret-pass","favoriteNumber":7}`

	resp, got := h.do(t, call{path: "/api/auth/sign-up/email", body: body, ua: browserUA, ip: "203.0.113.1"})
	if resp.StatusCode != fiber.StatusCreated || got != body {
		t.Fatalf("expected forwarded sign-up, got %d %q", resp.StatusCode, got)
	}
}

func TestGate_CompressedBodyForwardedAsSent(t *testing.T) {
	h := newHarness(t, testGateConfig(), nil)
	body := `{"email":"ana@example.com","password":"x"}`

	resp, got := h.do(t, call{path: "/api/auth/sign-in/email", body: body, ua: browserUA, ip: "203.0.113.1", gzip: true})
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("expected downstream status, got %d", resp.StatusCode)
	}
	if got != body {
		t.Fatalf("expected decoded body %q downstream, got %q", body, got)
	}
}

func TestGate_CompressedSignUpIsInspected(t *testing.T) {
	h := newHarness(t, testGateConfig(), nil)
	body := `{"email":"ana@mailinator.com","password":"s3cret-pass"}`

	resp, got := h.do(t, call{path: "/api/auth/sign-up/email", body: body, ua: browserUA, ip: "203.0.113.9", gzip: true})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if msg, want := message(t, got), i18n.T(i18n.PortugueseBR, i18n.KeyGateEmailDisposable); msg != want {
		t.Fatalf("expected %q, got %q", want, msg)
	}
	if h.calls != 0 {
		t.Fatalf("denied request must not reach downstream")
	}
}

func TestGate_GetIsNeverGated(t *testing.T) {
	cfg := testGateConfig()
	cfg.StrictMax = 1
	h := newHarness(t, cfg, nil)

	for i := 0; i < 3; i++ {
		resp, _ := h.do(t, call{method: http.MethodGet, path: "/api/auth/get-session", ua: "curl/8.4.0"})
		if resp.StatusCode != fiber.StatusCreated {
			t.Fatalf("GET %d: expected passthrough, got %d", i+1, resp.StatusCode)
		}
	}
	if total := h.stats.Total(); total.Allowed+total.Denied != 0 {
		t.Fatalf("GET must not be evaluated, stats=%+v", total)
	}
}

func TestGate_StrictRateLimit(t *testing.T) {
	h := newHarness(t, testGateConfig(), nil)
	c := call{path: "/api/auth/sign-in/email", body: `{}`, ua: browserUA, ip: "203.0.113.9"}

	for i := 0; i < 3; i++ {
		if resp, _ := h.do(t, c); resp.StatusCode != fiber.StatusCreated {
			t.Fatalf("request %d: expected allow, got %d", i+1, resp.StatusCode)
		}
	}
	resp, body := h.do(t, c)
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}
	if got, want := message(t, body), i18n.T(i18n.PortugueseBR, i18n.KeyGateRateLimited); got != want {
		t.Fatalf("expected pt-BR message %q, got %q", want, got)
	}

	c.lang = "en-US,en;q=0.9"
	_, body = h.do(t, c)
	if got := message(t, body); got != "Too many attempts. Please try again later." {
		t.Fatalf("expected en-US message, got %q", got)
	}
	if h.calls != 3 {
		t.Fatalf("expected 3 downstream calls, got %d", h.calls)
	}
}

func TestGate_EmailMessages(t *testing.T) {
	cases := []struct {
		email string
		key   string
	}{
		{"not-an-email", i18n.KeyGateEmailInvalid},
		{"", i18n.KeyGateEmailInvalid},
		{"ana@nowhere-at-all.com", i18n.KeyGateEmailInvalidDomain},
		{"ana@mailinator.com", i18n.KeyGateEmailDisposable},
		// disposable and no MX at once: the domain message wins
		{"ana@yopmail.com", i18n.KeyGateEmailInvalidDomain},
	}
	h := newHarness(t, testGateConfig(), nil)
	for i, tc := range cases {
		payload, _ := json.Marshal(map[string]any{"email": tc.email, "password": "s3cret-pass"})
		resp, body := h.do(t, call{
			path: "/api/auth/sign-up/email",
			body: string(payload),
			ua:   browserUA,
			ip:   "198.51.100." + string(rune('1'+i)),
		})
		if resp.StatusCode != fiber.StatusBadRequest {
			t.Fatalf("%q: expected 400, got %d", tc.email, resp.StatusCode)
		}
		if got, want := message(t, body), i18n.T(i18n.PortugueseBR, tc.key); got != want {
			t.Fatalf("%q: expected %q, got %q", tc.email, want, got)
		}
	}
	if h.calls != 0 {
		t.Fatalf("denied requests must not reach downstream")
	}
}

func TestGate_FreeEmailAllowedByDefault(t *testing.T) {
	h := newHarness(t, testGateConfig(), nil)
	resp, _ := h.do(t, call{path: "/api/auth/sign-up/email", body: `{"email":"ana@gmail.com"}`, ua: browserUA})
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("expected allow, got %d", resp.StatusCode)
	}
}

func TestGate_SignUpWithoutEmailFallsBackToLax(t *testing.T) {
	h := newHarness(t, testGateConfig(), nil)

	// Lax allows 5; strict would have stopped at 3. None of these are email-screened.
	bodies := []string{`not json`, `{"name":"Ana"}`, `{"email":42}`, `[]`, `{"email":null}`}
	for i, b := range bodies {
		resp, got := h.do(t, call{path: "/api/auth/sign-up/email", body: b, ua: browserUA, ip: "192.0.2.10"})
		if resp.StatusCode != fiber.StatusCreated {
			t.Fatalf("body %d %q: expected allow, got %d", i+1, b, resp.StatusCode)
		}
		if got != b {
			t.Fatalf("body %d: expected untouched body, got %q", i+1, got)
		}
	}
	resp, _ := h.do(t, call{path: "/api/auth/sign-up/email", body: `oops`, ua: browserUA, ip: "192.0.2.10"})
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("expected lax limit to apply, got %d", resp.StatusCode)
	}

	// bot detection still applies on the lax tier
	resp, _ = h.do(t, call{path: "/api/auth/sign-up/email", body: `oops`, ua: "python-requests/2.31", ip: "192.0.2.11"})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected bot block on lax tier, got %d", resp.StatusCode)
	}
}

func TestGate_BotBlocked(t *testing.T) {
	h := newHarness(t, testGateConfig(), nil)

	resp, body := h.do(t, call{path: "/api/auth/sign-in/email", body: `{}`, ua: "curl/8.4.0", lang: "en"})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if got := message(t, body); got != "Access blocked by anti-bot protection" {
		t.Fatalf("unexpected message %q", got)
	}
	if h.stats.ByReason()[shield.ReasonBot] != 1 {
		t.Fatalf("expected bot denial in stats")
	}
}

func TestGate_AttackProbeLooksLikeBotBlock(t *testing.T) {
	h := newHarness(t, testGateConfig(), nil)

	resp, body := h.do(t, call{path: "/api/auth/sign-in/email?next=%2E%2E%2F%2E%2E%2Fetc%2Fpasswd", body: `{}`, ua: browserUA})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if got, want := message(t, body), i18n.T(i18n.PortugueseBR, i18n.KeyGateBotBlocked); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestGate_AllowedRequestsAreNotCached(t *testing.T) {
	cfg := testGateConfig()
	cfg.StrictMax = 1
	h := newHarness(t, cfg, nil)
	c := call{path: "/api/auth/sign-out", body: `{}`, ua: browserUA, ip: "203.0.113.50"}

	if resp, _ := h.do(t, c); resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("expected first request allowed")
	}
	if resp, _ := h.do(t, c); resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("expected second request over the threshold to be denied")
	}

	h2 := newHarness(t, testGateConfig(), nil)
	c.ip = "203.0.113.51"
	h2.do(t, c)
	h2.do(t, c)
	if h2.calls != 2 {
		t.Fatalf("expected two downstream invocations, got %d", h2.calls)
	}
}

func TestGate_SessionIdentitySurvivesAddressChange(t *testing.T) {
	cfg := testGateConfig()
	cfg.StrictMax = 2
	h := newHarness(t, cfg, nil)

	first, _ := h.do(t, call{path: "/api/auth/update-user", body: `{}`, ua: browserUA, ip: "203.0.113.1", cookie: "abc"})
	second, _ := h.do(t, call{path: "/api/auth/update-user", body: `{}`, ua: browserUA, ip: "198.51.100.1", cookie: "abc"})
	third, _ := h.do(t, call{path: "/api/auth/update-user", body: `{}`, ua: browserUA, ip: "192.0.2.1", cookie: "abc"})
	if first.StatusCode != fiber.StatusCreated || second.StatusCode != fiber.StatusCreated {
		t.Fatalf("expected first two allowed, got %d %d", first.StatusCode, second.StatusCode)
	}
	if third.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("expected the session bucket to be exhausted across addresses, got %d", third.StatusCode)
	}

	// the same address without the session has its own bucket
	anon, _ := h.do(t, call{path: "/api/auth/update-user", body: `{}`, ua: browserUA, ip: "192.0.2.1"})
	if anon.StatusCode != fiber.StatusCreated {
		t.Fatalf("expected anonymous caller on its own bucket, got %d", anon.StatusCode)
	}
}

func TestGate_Evaluate_IdentityFallbacks(t *testing.T) {
	h := newHarness(t, testGateConfig(), nil)
	ctx := context.Background()

	withSession := http.Header{}
	withSession.Set("Cookie", "auth.session_token=xyz")
	withSession.Set("User-Agent", browserUA)
	ev, err := h.gate.Evaluate(ctx, Request{Method: http.MethodPost, Path: "/api/auth/sign-out", Header: withSession, RemoteIP: "203.0.113.1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Identity != "user-xyz" || ev.Tier != TierActionStrict {
		t.Fatalf("unexpected evaluation: %+v", ev)
	}

	broken := http.Header{}
	broken.Set("Cookie", "auth.session_token=broken")
	ev, _ = h.gate.Evaluate(ctx, Request{Method: http.MethodPost, Path: "/api/auth/sign-out", Header: broken, RemoteIP: "203.0.113.2"})
	if ev.Identity != "203.0.113.2" {
		t.Fatalf("expected a failed session lookup to fall back to the address, got %q", ev.Identity)
	}

	ev, _ = h.gate.Evaluate(ctx, Request{Method: http.MethodPost, Path: "/api/auth/sign-out", Header: http.Header{}})
	if ev.Identity != FallbackIdentity {
		t.Fatalf("expected fallback identity, got %q", ev.Identity)
	}
}

func TestGate_Evaluate_Tiers(t *testing.T) {
	h := newHarness(t, testGateConfig(), nil)
	ctx := context.Background()
	header := http.Header{"User-Agent": []string{browserUA}}

	ev, _ := h.gate.Evaluate(ctx, Request{Path: "/api/auth/sign-up/email", Header: header, Body: []byte(`{"email":"ana@example.com"}`)})
	if ev.Route != RouteSignUp || ev.Tier != TierSignUpComposite || ev.Email != "ana@example.com" || ev.ParseErr != nil {
		t.Fatalf("unexpected composite evaluation: %+v", ev)
	}
	ev, _ = h.gate.Evaluate(ctx, Request{Path: "/api/auth/sign-up/email", Header: header, Body: []byte(`{`)})
	if ev.Tier != TierSignUpLax || !errors.Is(ev.ParseErr, ErrMalformedBody) {
		t.Fatalf("unexpected lax evaluation: %+v", ev)
	}
	ev, _ = h.gate.Evaluate(ctx, Request{Path: "/api/auth/change-email", Header: header, Body: []byte(`{"newEmail":"x@mailinator.com"}`)})
	if ev.Route != RouteAction || ev.Tier != TierActionStrict || ev.Email != "" {
		t.Fatalf("unexpected action evaluation: %+v", ev)
	}
}

func TestGate_DryRunNeverDenies(t *testing.T) {
	cfg := testGateConfig()
	cfg.Mode = config.ModeDryRun
	cfg.StrictMax = 1
	h := newHarness(t, cfg, nil)

	for i := 0; i < 3; i++ {
		resp, _ := h.do(t, call{path: "/api/auth/sign-up/email", body: `{"email":"x@mailinator.com"}`, ua: "curl/8.4.0"})
		if resp.StatusCode != fiber.StatusCreated {
			t.Fatalf("request %d: dry run must forward, got %d", i+1, resp.StatusCode)
		}
	}
}

func TestGate_ProtectorFailurePropagates(t *testing.T) {
	h := newHarness(t, testGateConfig(), failingStore{})

	resp, _ := h.do(t, call{path: "/api/auth/sign-in/email", body: `{}`, ua: browserUA})
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	if h.calls != 0 {
		t.Fatalf("failed evaluation must not reach downstream")
	}
	if h.metrics.Snapshot().GateDecisions["action_strict|ERROR"] != 1 {
		t.Fatalf("expected the failure in gate metrics")
	}
}

func TestGate_FailOpenForwards(t *testing.T) {
	cfg := testGateConfig()
	cfg.FailOpen = true
	h := newHarness(t, cfg, failingStore{})

	resp, body := h.do(t, call{path: "/api/auth/sign-in/email", body: `{"email":"a@b.co"}`, ua: browserUA})
	if resp.StatusCode != fiber.StatusCreated || body != `{"email":"a@b.co"}` {
		t.Fatalf("expected forwarded request, got %d %q", resp.StatusCode, body)
	}
}

func TestGate_RecordsDecisions(t *testing.T) {
	h := newHarness(t, testGateConfig(), nil)
	h.do(t, call{path: "/api/auth/sign-in/email", body: `{}`, ua: browserUA})
	h.do(t, call{path: "/api/auth/sign-in/email", body: `{}`, ua: "wget/1.21"})

	total := h.stats.Total()
	if total.Allowed != 1 || total.Denied != 1 {
		t.Fatalf("unexpected stats: %+v", total)
	}
	snap := h.metrics.Snapshot()
	if snap.GateDecisions["action_strict|ALLOW"] != 1 || snap.GateDecisions["action_strict|DENY|BOT"] != 1 {
		t.Fatalf("unexpected gate metrics: %v", snap.GateDecisions)
	}
}

func TestNew_RequiresPolicies(t *testing.T) {
	if _, err := New(testGateConfig(), Deps{Protector: shield.NewProtector(nil)}); err == nil {
		t.Fatalf("expected error without policies")
	}
	if _, err := New(testGateConfig(), Deps{}); err == nil {
		t.Fatalf("expected error without protector")
	}
}

func TestStoreNamespace(t *testing.T) {
	cfg := config.GateConfig{KeyPrefix: "gate"}
	if got := StoreNamespace(cfg); got != "gate" {
		t.Fatalf("expected bare prefix, got %q", got)
	}
	cfg.APIKey = "site_key_a"
	a := StoreNamespace(cfg)
	cfg.APIKey = "site_key_b"
	b := StoreNamespace(cfg)
	if a == b || !strings.HasPrefix(a, "gate:") || len(a) != len("gate:")+8 {
		t.Fatalf("unexpected namespaces %q %q", a, b)
	}
}
