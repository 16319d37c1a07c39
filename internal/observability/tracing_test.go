package observability

import (
	"context"
	"testing"

	"github.com/spec-kit/auth-gateway/internal/config"
)

func TestSetupTracing_NoopWithoutEndpoint(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), config.TracingConfig{Enabled: true}, "auth-gateway", "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetupTracing_NoopWhenDisabled(t *testing.T) {
	cfg := config.TracingConfig{Enabled: false, Endpoint: "http://192.0.2.1:4318"}
	shutdown, err := SetupTracing(context.Background(), cfg, "auth-gateway", "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}
