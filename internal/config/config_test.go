package config

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/candidash")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("TOTP_ENCRYPTION_KEY", "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.HTTPPort != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.HTTPPort)
	}
	if cfg.BcryptCost != 12 {
		t.Fatalf("expected default bcrypt cost 12, got %d", cfg.BcryptCost)
	}
	if cfg.ReminderInterval != time.Hour {
		t.Fatalf("expected reminder interval 1h, got %v", cfg.ReminderInterval)
	}
	if cfg.IsProduction() {
		t.Fatalf("expected development by default")
	}
}

func TestLoadConfig_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/candidash")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("TOTP_ENCRYPTION_KEY", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error when JWT_SECRET and TOTP_ENCRYPTION_KEY are missing")
	}
}

func TestConfig_IsProduction(t *testing.T) {
	cfg := Config{AppEnv: "production"}
	if !cfg.IsProduction() {
		t.Fatalf("expected production")
	}
}
