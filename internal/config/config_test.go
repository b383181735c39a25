package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("MAX_DEVICES_PER_USER", "")
	t.Setenv("SESSION_EXPIRY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxDevicesPerUser != 3 {
		t.Fatalf("expected default max devices 3, got %d", cfg.MaxDevicesPerUser)
	}
	if cfg.SessionExpiry != 30*time.Minute {
		t.Fatalf("expected default expiry 30m, got %s", cfg.SessionExpiry)
	}
	if cfg.RedisURL != "" {
		t.Fatalf("expected no redis by default, got %q", cfg.RedisURL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("MAX_DEVICES_PER_USER", "5")
	t.Setenv("SESSION_EXPIRY", "24h")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("TRUST_PROXY", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxDevicesPerUser != 5 || cfg.SessionExpiry != 24*time.Hour || !cfg.TrustProxy {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins: %v", cfg.CORSOrigins)
	}
}

func TestValidateRejectsNonPositiveLimit(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("MAX_DEVICES_PER_USER", "0")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "MAX_DEVICES_PER_USER") {
		t.Fatalf("expected max devices error, got %v", err)
	}
}

func TestValidateRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Fatalf("expected secret error, got %v", err)
	}
}

func TestValidateLockTTLMustOutliveRequests(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("REQUEST_TIMEOUT", "")
	t.Setenv("LOCK_TTL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.LockTTL <= cfg.RequestTimeout {
		t.Fatalf("default lock ttl %s does not exceed request timeout %s", cfg.LockTTL, cfg.RequestTimeout)
	}

	for _, ttl := range []string{"10s", "30s"} {
		t.Setenv("LOCK_TTL", ttl)
		_, err := Load()
		if err == nil || !strings.Contains(err.Error(), "LOCK_TTL") {
			t.Fatalf("LOCK_TTL=%s: expected lock ttl error, got %v", ttl, err)
		}
	}
}
