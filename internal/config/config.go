package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server Configuration
	Server ServerConfig

	// Database Configuration
	Database DatabaseConfig

	// Auth Configuration
	Auth AuthConfig

	// Logging Configuration
	Logging LoggingConfig
}

// ServerConfig holds HTTP listener configuration
type ServerConfig struct {
	Port        string
	CORSOrigins []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver string // sqlite, mysql
	URL    string
}

// AuthConfig holds token configuration
type AuthConfig struct {
	TokenTTL     time.Duration
	ResetTTL     time.Duration
	SeedAdmin    string // email of an admin created on first start, optional
	SeedPassword string
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	tokenTTL, err := getDuration("TOKEN_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	resetTTL, err := getDuration("RESET_TOKEN_TTL", time.Hour)
	if err != nil {
		return nil, err
	}

	driver := strings.ToLower(getEnv("DB_DRIVER", "sqlite"))
	if driver != "sqlite" && driver != "mysql" {
		return nil, fmt.Errorf("invalid DB_DRIVER %q, must be sqlite or mysql", driver)
	}

	return &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8000"),
			CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		},
		Database: DatabaseConfig{
			Driver: driver,
			// Default to a local SQLite file; mysql expects a DSN like
			// user:pass@tcp(host:3306)/appdeck?parseTime=True
			URL: getEnv("DATABASE_URL", "appdeck.sqlite"),
		},
		Auth: AuthConfig{
			TokenTTL:     tokenTTL,
			ResetTTL:     resetTTL,
			SeedAdmin:    os.Getenv("ADMIN_EMAIL"),
			SeedPassword: os.Getenv("ADMIN_PASSWORD"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
