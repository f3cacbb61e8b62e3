package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const PROD_STRING = "prod"

// Config holds all application configuration loaded from environment.
type Config struct {
	IsProduction      bool
	ProdOrigins       string
	HTTPAddr          string
	DBDSN             string
	DBMigrate         bool
	JWTSecret         string
	JWTAccessTokenTTL time.Duration
	LogLevel          slog.Level

	Calendar  CalendarConfig
	Sync      SyncConfig
	RabbitMQ  RabbitMQConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
}

// CalendarConfig configures the external calendar provider. An empty URL disables sync.
type CalendarConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
}

// SyncConfig controls the reservation outbox and the calendar sync retry loop.
type SyncConfig struct {
	RetryInterval time.Duration
	OutboxBuffer  int
}

// RabbitMQConfig configures notification publication. An empty URL disables publishing.
type RabbitMQConfig struct {
	URL   string
	Queue string
}

// RedisConfig configures the Redis client used for rate limiting. An empty Addr disables it.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RateLimitConfig configures the token bucket applied per client IP.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillInterval time.Duration
	TTL            time.Duration
	Prefix         string
}

// Load loads configuration from .env (optional) and environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	cfg := &Config{}
	var err error

	// Production origin (default: empty)
	cfg.ProdOrigins = getEnv("PROD_ORIGINS", "")

	// Application environment (default: dev)
	cfg.IsProduction = getEnv("APP_ENV", "dev") == PROD_STRING

	// HTTP listen address (default: :8080)
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")

	// Database DSN is required
	cfg.DBDSN = os.Getenv("DB_DSN")
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required")
	}

	if cfg.DBMigrate, err = getEnvAsBool("DB_MIGRATE", true); err != nil {
		return nil, err
	}

	// JWT secret is required for validating tokens
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.JWTAccessTokenTTL, err = getEnvAsDuration("JWT_ACCESS_TOKEN_TTL", 15*time.Minute); err != nil {
		return nil, err
	}

	if cfg.LogLevel, err = parseLogLevel(getEnv("LOG_LEVEL", "info")); err != nil {
		return nil, err
	}

	// Calendar sync
	cfg.Calendar.URL = strings.TrimRight(getEnv("CALENDAR_URL", ""), "/")
	cfg.Calendar.Token = getEnv("CALENDAR_TOKEN", "")
	if cfg.Calendar.Timeout, err = getEnvAsDuration("CALENDAR_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.Sync.RetryInterval, err = getEnvAsDuration("SYNC_RETRY_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.Sync.OutboxBuffer, err = getEnvAsInt("OUTBOX_BUFFER", 256); err != nil {
		return nil, err
	}
	if cfg.Sync.OutboxBuffer < 1 {
		return nil, fmt.Errorf("OUTBOX_BUFFER must be positive")
	}

	// Messaging
	cfg.RabbitMQ.URL = getEnv("RABBITMQ_URL", "")
	cfg.RabbitMQ.Queue = getEnv("RABBITMQ_QUEUE", "reservation.notifications")

	// Redis and rate limiting
	cfg.Redis.Addr = getEnv("REDIS_ADDR", "")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	if cfg.Redis.DB, err = getEnvAsInt("REDIS_DB", 0); err != nil {
		return nil, err
	}

	if cfg.RateLimit.Enabled, err = getEnvAsBool("RATE_LIMIT_ENABLED", cfg.Redis.Addr != ""); err != nil {
		return nil, err
	}
	if cfg.RateLimit.Capacity, err = getEnvAsInt("RATE_LIMIT_CAPACITY", 60); err != nil {
		return nil, err
	}
	if cfg.RateLimit.RefillInterval, err = getEnvAsDuration("RATE_LIMIT_REFILL_INTERVAL", time.Second); err != nil {
		return nil, err
	}
	cfg.RateLimit.TTL = 10 * time.Minute
	cfg.RateLimit.Prefix = getEnv("RATE_LIMIT_PREFIX", "rl")

	return cfg, nil
}

// getEnv returns the value of the environment variable if set,
// otherwise returns the provided default value.
func getEnv(key, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer.
// It returns the default value if the variable is not set.
// It returns an error if the variable is set but is not a valid integer.
func getEnvAsInt(key string, defaultValue int) (int, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}

	val, err := strconv.Atoi(valStr)
	if err != nil {
		return 0, fmt.Errorf("env %s value %q is not a valid integer: %w", key, valStr, err)
	}

	return val, nil
}

// getEnvAsDuration parses values like "15m" or "5s".
func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(valStr)
	if err != nil {
		return 0, fmt.Errorf("env %s value %q is not a valid duration: %w", key, valStr, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("env %s must be a positive duration", key)
	}
	return val, nil
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(valStr)
	if err != nil {
		return false, fmt.Errorf("env %s value %q is not a valid boolean: %w", key, valStr, err)
	}
	return val, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
}
