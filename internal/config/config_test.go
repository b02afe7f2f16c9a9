package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("AUTH_JWT_SECRET", "abcdefghijklmnopqrstuvwxyz123456")
	t.Setenv("AUTH_TOKEN_PEPPER", "pepper-1234567890")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "file::memory:?cache=shared")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8081" {
		t.Fatalf("unexpected default addr %q", cfg.HTTPAddr)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Fatalf("expected 24h session ttl, got %v", cfg.SessionTTL)
	}
	if cfg.GoogleRedirectURL != "http://localhost:8081/auth/google/callback" {
		t.Fatalf("unexpected redirect url %q", cfg.GoogleRedirectURL)
	}
	if len(cfg.TrustedOrigins) != 2 {
		t.Fatalf("expected frontend and public origins trusted, got %v", cfg.TrustedOrigins)
	}
}

func TestLoadRejectsShortSecret(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("AUTH_JWT_SECRET", "short")

	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "AUTH_JWT_SECRET") {
		t.Fatalf("expected secret validation error, got %v", err)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DATABASE_DRIVER", "oracle")

	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "DATABASE_DRIVER") {
		t.Fatalf("expected driver validation error, got %v", err)
	}
}

func TestLoadEnvFilePreservesExistingEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("HTTP_ADDR", ":9999")

	file := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(file, []byte("HTTP_ADDR=:1234\nFRONTEND_BASE_URL=http://front.example\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Fatalf("expected process env to win, got %q", cfg.HTTPAddr)
	}
	if cfg.FrontendBaseURL != "http://front.example" {
		t.Fatalf("expected file value for unset var, got %q", cfg.FrontendBaseURL)
	}
}

func TestLoadMissingEnvFileIsNoop(t *testing.T) {
	setRequiredEnv(t)

	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing env file should be ignored: %v", err)
	}
}

func TestTrustedOriginsOverride(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("AUTH_TRUSTED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.TrustedOrigins) != 2 || cfg.TrustedOrigins[0] != "https://a.example" || cfg.TrustedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected trusted origins %v", cfg.TrustedOrigins)
	}
}
