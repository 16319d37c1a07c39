package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("GATE_MODE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Gate.Mode != ModeDryRun {
		t.Fatalf("expected DRY_RUN outside production, got %q", cfg.Gate.Mode)
	}
	if cfg.Gate.StrictMax != 10 || cfg.Gate.StrictWindow != 10*time.Minute {
		t.Fatalf("unexpected strict tier: %d/%s", cfg.Gate.StrictMax, cfg.Gate.StrictWindow)
	}
	if cfg.Gate.LaxMax != 60 || cfg.Gate.LaxWindow != time.Minute {
		t.Fatalf("unexpected lax tier: %d/%s", cfg.Gate.LaxMax, cfg.Gate.LaxWindow)
	}
	if got := strings.Join(cfg.Gate.EmailBlock, ","); got != "DISPOSABLE,INVALID,NO_MX_RECORDS" {
		t.Fatalf("unexpected email block list %q", got)
	}
	if cfg.Session.CookieCacheTTL != 5*time.Minute {
		t.Fatalf("expected 5m cookie cache, got %s", cfg.Session.CookieCacheTTL)
	}
}

func TestLoad_ProductionDefaultsToLive(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("GATE_MODE", "")
	t.Setenv("GATE_API_KEY", "site_key")
	t.Setenv("AUTH_SECRET", "a-real-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Gate.Live() {
		t.Fatalf("expected LIVE in production, got %q", cfg.Gate.Mode)
	}
}

func TestLoad_LiveRequiresAPIKey(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("GATE_MODE", "live")
	t.Setenv("GATE_API_KEY", "")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "GATE_API_KEY") {
		t.Fatalf("expected GATE_API_KEY error, got %v", err)
	}
}

func TestLoad_RejectsUnknownEmailType(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("GATE_MODE", "DRY_RUN")
	t.Setenv("GATE_EMAIL_BLOCK", "disposable, spammy")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "SPAMMY") {
		t.Fatalf("expected unknown email type error, got %v", err)
	}
}

func TestValidate_RejectsNonPositiveThresholds(t *testing.T) {
	cfg := Config{
		Gate: GateConfig{Mode: ModeDryRun, Store: "memory", StrictMax: 0, LaxMax: 1, StrictWindow: time.Second, LaxWindow: time.Second},
		Auth: AuthConfig{MinPasswordLength: 6, MaxPasswordLength: 128},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}
