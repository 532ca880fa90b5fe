// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cliparse

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "file:test.db")
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("IDENTITY_SHARED_SECRET", "identity")
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("CONFIG_PATH", "")
}

func TestParseFlags_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := ParseFlags([]string{})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != 3318 {
		t.Errorf("expected default port 3318, got %d", cfg.Port)
	}
	if cfg.DatabaseType != "sqlite" {
		t.Errorf("expected default database type sqlite, got %s", cfg.DatabaseType)
	}
	if cfg.TokenTTL != 7*24*time.Hour {
		t.Errorf("expected 7 day token TTL, got %s", cfg.TokenTTL)
	}
	if cfg.MaxDocumentBytes != 10<<20 {
		t.Errorf("expected 10MiB document limit, got %d", cfg.MaxDocumentBytes)
	}
	if cfg.TrustProxy {
		t.Error("forwarded headers must not be trusted by default")
	}
	if cfg.IPHashSalt != testSecret {
		t.Errorf("expected IP hash salt to fall back to JWT secret")
	}
}

func TestParseFlags_EnvVars(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_TYPE", "postgres")
	t.Setenv("TOKEN_TTL", "2h")
	t.Setenv("MATRIC_ALLOW_LIST", "LEGACY01, LEGACY02,")
	t.Setenv("MAX_DOCUMENT_SIZE", "2MB")
	t.Setenv("TRUST_PROXY", "true")

	cfg, err := ParseFlags([]string{})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Port)
	}
	if cfg.DatabaseType != "postgres" {
		t.Errorf("expected postgres, got %s", cfg.DatabaseType)
	}
	if cfg.TokenTTL != 2*time.Hour {
		t.Errorf("expected 2h, got %s", cfg.TokenTTL)
	}
	if len(cfg.MatricAllowList) != 2 || cfg.MatricAllowList[1] != "LEGACY02" {
		t.Errorf("unexpected allow list %v", cfg.MatricAllowList)
	}
	if cfg.MaxDocumentBytes != 2_000_000 {
		t.Errorf("expected 2MB limit, got %d", cfg.MaxDocumentBytes)
	}
	if !cfg.TrustProxy {
		t.Error("expected TRUST_PROXY to enable forwarded headers")
	}
}

func TestParseFlags_CLIOverridesEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "9000")

	cfg, err := ParseFlags([]string{"-p", "8080", "-d", "postgres://cli", "-t", "postgres"})
	if err != nil {
		t.Fatal(err)
	}

	// CLI should override env
	if cfg.Port != 8080 {
		t.Errorf("CLI should override env: expected 8080, got %d", cfg.Port)
	}
	if cfg.DatabaseURL != "postgres://cli" {
		t.Errorf("CLI should override env: got %s", cfg.DatabaseURL)
	}
}

func TestParseFlags_YAMLFileBelowEnv(t *testing.T) {
	setRequiredEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "port: 7000\nlog_level: debug\ncors_origins:\n  - https://vote.example.edu\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := ParseFlags([]string{})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != 7000 {
		t.Errorf("expected port from file, got %d", cfg.Port)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("env should override file: got %s", cfg.LogLevel)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "https://vote.example.edu" {
		t.Errorf("unexpected CORS origins %v", cfg.CORSOrigins)
	}
}

func TestParseFlags_DotEnvFile(t *testing.T) {
	setRequiredEnv(t)
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("ADMIN_EMAIL=admin@example.edu\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ENV_FILE", path)
	// godotenv sets the variable process-wide; make sure it is restored.
	t.Setenv("ADMIN_EMAIL", "")
	os.Unsetenv("ADMIN_EMAIL")

	cfg, err := ParseFlags([]string{})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.AdminEmail != "admin@example.edu" {
		t.Errorf("expected admin email from .env, got %q", cfg.AdminEmail)
	}
}

func TestParseFlags_Errors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		args    []string
		wantErr string
	}{
		{
			name:    "missing database url",
			env:     map[string]string{"DATABASE_URL": ""},
			wantErr: "database URL required",
		},
		{
			name:    "short jwt secret",
			env:     map[string]string{"JWT_SECRET": "short"},
			wantErr: "JWT_SECRET",
		},
		{
			name:    "missing identity secret",
			env:     map[string]string{"IDENTITY_SHARED_SECRET": ""},
			wantErr: "IDENTITY_SHARED_SECRET",
		},
		{
			name:    "bad database type",
			args:    []string{"-t", "mysql"},
			wantErr: "unsupported database type",
		},
		{
			name:    "bad document size",
			env:     map[string]string{"MAX_DOCUMENT_SIZE": "lots"},
			wantErr: "MAX_DOCUMENT_SIZE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := ParseFlags(tt.args)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
