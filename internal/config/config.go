package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"ap-settlement/internal/logger"
)

type Config struct {
	// Database
	DatabaseURL        string
	DBMaxConns         int32
	DBStatementTimeout time.Duration

	// HTTP server
	ServerPort     string
	AllowedOrigins string
	JWTSecret      string

	// CLI default company
	CompanyCode string

	// Retry budget for lock conflicts on match batches and allocations
	TxRetries int

	// Logging
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		DBMaxConns:         int32(getEnvInt("DB_MAX_CONNS", 10)),
		DBStatementTimeout: getEnvDuration("DB_STATEMENT_TIMEOUT", 30*time.Second),
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		AllowedOrigins:     getEnv("ALLOWED_ORIGINS", ""),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		CompanyCode:        getEnv("COMPANY_CODE", ""),
		TxRetries:          getEnvInt("MATCH_TX_RETRIES", 3),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:      getEnv("LOG_TIME_FORMAT", time.RFC3339),
		LogOutput:          getEnv("LOG_OUTPUT", "stdout"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if c.TxRetries < 1 {
		return fmt.Errorf("MATCH_TX_RETRIES must be at least 1")
	}
	return nil
}

// RequireJWTSecret is checked by the HTTP server only; the CLI does not sign tokens.
func (c *Config) RequireJWTSecret() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
