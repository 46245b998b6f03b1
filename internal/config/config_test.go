package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GIN_MODE", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("APPROVAL_CHAIN", "")
	t.Setenv("ACCESS_TOKEN_TTL", "")
	t.Setenv("PORT", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Auth.JWTSecret != devJWTSecret {
		t.Errorf("expected dev secret fallback, got %q", cfg.Auth.JWTSecret)
	}
	if cfg.Auth.AccessTokenTTL != 24*time.Hour {
		t.Errorf("expected 24h access ttl, got %s", cfg.Auth.AccessTokenTTL)
	}
	want := []string{"hod", "principal", "admin"}
	if len(cfg.Workflow.ApprovalChain) != len(want) {
		t.Fatalf("expected chain %v, got %v", want, cfg.Workflow.ApprovalChain)
	}
	for i := range want {
		if cfg.Workflow.ApprovalChain[i] != want[i] {
			t.Errorf("chain[%d]: expected %s, got %s", i, want[i], cfg.Workflow.ApprovalChain[i])
		}
	}
}

func TestLoadRejectsMissingSecretInRelease(t *testing.T) {
	t.Setenv("GIN_MODE", "release")
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(""); err == nil {
		t.Fatal("expected error when JWT_SECRET is missing in release mode")
	}
}

func TestLoadRejectsBadChain(t *testing.T) {
	testCases := []struct {
		name  string
		chain string
	}{
		{"unknown role", "hod,dean"},
		{"duplicate role", "hod,hod,admin"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("GIN_MODE", "")
			t.Setenv("APPROVAL_CHAIN", tc.chain)
			if _, err := Load(""); err == nil {
				t.Fatalf("expected error for chain %q", tc.chain)
			}
		})
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("GIN_MODE", "")
	t.Setenv("APPROVAL_CHAIN", "")
	t.Setenv("REMINDER_AFTER", "two days")

	if _, err := Load(""); err == nil {
		t.Fatal("expected error for malformed REMINDER_AFTER")
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: "5432", User: "ims", Password: "secret", Name: "ims", SSLMode: "disable"}
	want := "postgres://ims:secret@db:5432/ims?sslmode=disable"
	if got := d.DSN(); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}
