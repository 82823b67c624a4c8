package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "test")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("DB_USER", "app")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "3306")
	t.Setenv("DB_NAME", "screenings")
	t.Setenv("SESSION_SECRET", "session-secret")
	t.Setenv("STORAGE_SECRET", "0123456789abcdef0123")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.IdleTimeout != 30*time.Minute {
		t.Fatalf("idle timeout = %s, want 30m", cfg.IdleTimeout)
	}
	if cfg.FreshLoadWindow != time.Minute {
		t.Fatalf("fresh load window = %s, want 1m", cfg.FreshLoadWindow)
	}
	if cfg.SettleDelay != 500*time.Millisecond {
		t.Fatalf("settle delay = %s, want 500ms", cfg.SettleDelay)
	}
	if cfg.SubmissionKind != "regional" {
		t.Fatalf("submission kind = %q", cfg.SubmissionKind)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	setRequired(t)
	t.Setenv("SESSION_SECRET", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing SESSION_SECRET")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestLoadShortStorageSecret(t *testing.T) {
	setRequired(t)
	t.Setenv("STORAGE_SECRET", "short")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for short storage secret")
	}
}

func TestLoadRateLimitConfigClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "1m")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg := LoadRateLimitConfig()
	if cfg.Capacity != 1 {
		t.Fatalf("capacity = %d, want 1", cfg.Capacity)
	}
	if cfg.TTL != 5*time.Minute {
		t.Fatalf("ttl = %s, want 5m", cfg.TTL)
	}
}

func TestLoadCacheConfigMethods(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")

	cfg := LoadCacheConfig()
	if !cfg.Methods["GET"] || !cfg.Methods["HEAD"] {
		t.Fatalf("methods = %v", cfg.Methods)
	}
	if cfg.Methods["POST"] {
		t.Fatal("POST should not be cached")
	}
}
