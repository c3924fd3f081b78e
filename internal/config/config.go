// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Host string
	Port string
	Env  string

	// Storage. DatabaseURL selects Postgres; otherwise SQLitePath is used.
	DatabaseURL string
	SQLitePath  string
	RedisURL    string

	// Auth
	JWTSecret string
	JWTIssuer string
	JWTTTL    time.Duration

	// Sessions
	SendQueueSize  int
	MsgRateLimit   int
	MsgRateWindow  time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string

	// Requests per minute per IP on /register and /login.
	AuthRateLimit int
}

// Load reads configuration from environment variables, loading a .env file
// first when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Host:        getEnv("HOST", "127.0.0.1"),
		Port:        getEnv("PORT", "8000"),
		Env:         getEnv("ENV", "development"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  getEnv("SQLITE_PATH", "./database.db"),
		RedisURL:    os.Getenv("REDIS_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		JWTIssuer:   getEnv("JWT_ISS", "chatroom"),
	}

	var err error
	if cfg.JWTTTL, err = getDuration("JWT_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.SendQueueSize, err = getInt("SEND_QUEUE_SIZE", 64); err != nil {
		return nil, err
	}
	if cfg.MsgRateLimit, err = getInt("MSG_RATE_LIMIT", 30); err != nil {
		return nil, err
	}
	if cfg.MsgRateWindow, err = getDuration("MSG_RATE_WINDOW", time.Minute); err != nil {
		return nil, err
	}
	if cfg.IdleTimeout, err = getDuration("WS_IDLE_TIMEOUT", 0); err != nil {
		return nil, err
	}
	if cfg.AuthRateLimit, err = getInt("AUTH_RATE_LIMIT", 10); err != nil {
		return nil, err
	}

	if origins := os.Getenv("WS_ALLOWED_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	if cfg.Env == "production" && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("internal/config: DATABASE_URL is required in production")
	}

	return cfg, nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
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

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("internal/config: %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("internal/config: %s: %w", key, err)
	}
	return d, nil
}
