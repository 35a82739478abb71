package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port string
	Env  string

	// Relational storage. DatabaseURL selects Postgres; when empty the
	// server falls back to SQLite at SQLitePath.
	DatabaseURL string
	SQLitePath  string

	// Chat message storage
	MongoConnectionString string
	MongoChatDatabase     string

	// Speech-to-text job tracking and rate limiting. Optional in
	// development.
	RedisURL  string
	UploadDir string

	// Rate limiting
	RateLimitWhitelist []string // IPs or CIDRs exempt from rate limiting
	AutoBlockEnabled   bool     // Enable auto-blocking after repeated violations
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                  getEnv("PORT", "8080"),
		Env:                   getEnv("ENV", "development"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		SQLitePath:            getEnv("SQLITE_PATH", "data/medops.db"),
		MongoConnectionString: getEnv("MONGO_CONNECTION_STRING", "mongodb://localhost:27017"),
		MongoChatDatabase:     getEnv("MONGO_CHAT_DATABASE_NAME", "chats"),
		RedisURL:              os.Getenv("REDIS_URL"),
		UploadDir:             getEnv("UPLOAD_DIR", "uploads"),
		AutoBlockEnabled:      getEnv("AUTO_BLOCK_ENABLED", "false") == "true",
	}

	// Parse whitelist (comma-separated IPs or CIDRs)
	if whitelist := os.Getenv("RATE_LIMIT_WHITELIST"); whitelist != "" {
		for _, entry := range strings.Split(whitelist, ",") {
			entry = strings.TrimSpace(entry)
			if entry != "" {
				cfg.RateLimitWhitelist = append(cfg.RateLimitWhitelist, entry)
			}
		}
	}

	// In production, require the backing services
	if cfg.Env == "production" {
		if cfg.DatabaseURL == "" {
			panic("DATABASE_URL is required in production")
		}
		if os.Getenv("MONGO_CONNECTION_STRING") == "" {
			panic("MONGO_CONNECTION_STRING is required in production")
		}
		if cfg.RedisURL == "" {
			panic("REDIS_URL is required in production")
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
