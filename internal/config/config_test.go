package config

import (
	"strings"
	"testing"
	"time"
)

func validProductionConfig() *Config {
	return &Config{
		Port:              "8080",
		DataDir:           "/var/lib/netmap",
		AdminUser:         "tiesse",
		AdminPasswordHash: "$2a$12$C6UzMDM.H6dfI/f/IKcEeO6p3NSzRXy1Mzv0vF6s9e0T5Qh8E9u0W",
		SessionTimeout:    8 * time.Hour,
		LockTTL:           5 * time.Minute,
		MaxDocumentBytes:  5 << 20,
		Environment:       "production",
	}
}

func TestValidate_ProductionOK(t *testing.T) {
	cfg := validProductionConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}

func TestValidate_ProductionRequiresHash(t *testing.T) {
	cfg := validProductionConfig()
	cfg.AdminPasswordHash = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing ADMIN_PASSWORD_HASH in production")
	}
	if !strings.Contains(err.Error(), "ADMIN_PASSWORD_HASH") {
		t.Errorf("error %q does not mention ADMIN_PASSWORD_HASH", err)
	}
}

func TestValidate_ProductionRejectsPlaintextHash(t *testing.T) {
	cfg := validProductionConfig()
	cfg.AdminPasswordHash = "not-a-bcrypt-hash"

	if err := cfg.Validate(); err == nil {
		t.Error("expected error for non-bcrypt ADMIN_PASSWORD_HASH")
	}
}

func TestValidate_DevelopmentDefaultsPassword(t *testing.T) {
	cfg := validProductionConfig()
	cfg.Environment = "development"
	cfg.AdminPasswordHash = ""

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !strings.HasPrefix(cfg.AdminPasswordHash, "$2") {
		t.Errorf("development default hash %q is not bcrypt", cfg.AdminPasswordHash)
	}
}

func TestValidate_RejectsBadDurations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero session timeout", func(c *Config) { c.SessionTimeout = 0 }},
		{"zero lock ttl", func(c *Config) { c.LockTTL = 0 }},
		{"zero document cap", func(c *Config) { c.MaxDocumentBytes = 0 }},
		{"empty admin user", func(c *Config) { c.AdminUser = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validProductionConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestPaths(t *testing.T) {
	cfg := validProductionConfig()

	if got := cfg.DocumentPath(); got != "/var/lib/netmap/netmap.json" {
		t.Errorf("DocumentPath() = %q", got)
	}
	if got := cfg.LockPath(); got != "/var/lib/netmap/lock.json" {
		t.Errorf("LockPath() = %q", got)
	}
}

func TestEnvironmentHelpers(t *testing.T) {
	cfg := &Config{Environment: "prod"}
	if !cfg.IsProduction() || cfg.IsDevelopment() {
		t.Error("prod should be production")
	}

	cfg.Environment = ""
	if cfg.IsProduction() || !cfg.IsDevelopment() {
		t.Error("empty environment should be development")
	}
}
