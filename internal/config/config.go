package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// Config holds application configuration
type Config struct {
	Port              string
	DataDir           string
	AdminUser         string
	AdminPasswordHash string
	SessionTimeout    time.Duration
	LockTTL           time.Duration
	MaxDocumentBytes  int64
	AllowedOrigins    string
	Environment       string // development, staging, production
}

// Load loads configuration from environment variables and validates for production
func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		DataDir:           getEnv("DATA_DIR", "./data"),
		AdminUser:         getEnv("ADMIN_USER", "tiesse"),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		SessionTimeout:    getDuration("SESSION_IDLE_TIMEOUT", 8*time.Hour),
		LockTTL:           getDuration("LOCK_TTL", 5*time.Minute),
		MaxDocumentBytes:  getInt64("MAX_DOCUMENT_BYTES", 5<<20),
		AllowedOrigins:    getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:8080"),
		Environment:       getEnv("ENVIRONMENT", "development"),
	}

	// Validate production configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	return cfg
}

// Validate checks configuration for security and correctness
func (c *Config) Validate() error {
	if c.AdminUser == "" {
		return fmt.Errorf("ADMIN_USER must not be empty")
	}
	if c.SessionTimeout <= 0 {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT must be positive")
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("LOCK_TTL must be positive")
	}
	if c.MaxDocumentBytes <= 0 {
		return fmt.Errorf("MAX_DOCUMENT_BYTES must be positive")
	}

	if c.IsProduction() {
		if c.AdminPasswordHash == "" {
			return fmt.Errorf("ADMIN_PASSWORD_HASH must be set to a bcrypt hash in production")
		}
		if !strings.HasPrefix(c.AdminPasswordHash, "$2") {
			return fmt.Errorf("ADMIN_PASSWORD_HASH does not look like a bcrypt hash")
		}

		if c.AllowedOrigins != "" {
			log.Println("WARNING: Ensure ALLOWED_ORIGINS uses HTTPS in production")
		}
	} else if c.AdminPasswordHash == "" {
		// Development/staging: hash a throwaway default so the service comes
		// up without any env wiring.
		hash, err := bcrypt.GenerateFromPassword([]byte("changeme"), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hashing development password: %w", err)
		}
		c.AdminPasswordHash = string(hash)
		log.Println("Using default admin password 'changeme' for development")
	}

	return nil
}

// DocumentPath is the committed document file inside the data directory.
func (c *Config) DocumentPath() string {
	return filepath.Join(c.DataDir, "netmap.json")
}

// LockPath is the edit-lock record file inside the data directory.
func (c *Config) LockPath() string {
	return filepath.Join(c.DataDir, "lock.json")
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev" || c.Environment == ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Invalid duration for %s: %q, using default %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}

func getInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		log.Printf("Invalid integer for %s: %q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}
