package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DB_DSN", "postgres://localhost/reservations")
	t.Setenv("JWT_SECRET", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.IsProduction)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.True(t, cfg.DBMigrate)
	assert.Equal(t, 15*time.Minute, cfg.JWTAccessTokenTTL)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Empty(t, cfg.Calendar.URL)
	assert.Equal(t, 5*time.Second, cfg.Calendar.Timeout)
	assert.Equal(t, time.Minute, cfg.Sync.RetryInterval)
	assert.Equal(t, 256, cfg.Sync.OutboxBuffer)
	assert.Equal(t, "reservation.notifications", cfg.RabbitMQ.Queue)
	assert.False(t, cfg.RateLimit.Enabled, "rate limiting follows REDIS_ADDR by default")
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "prod")
	t.Setenv("CALENDAR_URL", "https://calendar.example.com/api/")
	t.Setenv("CALENDAR_TIMEOUT", "2s")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction)
	assert.Equal(t, "https://calendar.example.com/api", cfg.Calendar.URL)
	assert.Equal(t, 2*time.Second, cfg.Calendar.Timeout)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("DB_DSN", "")
	t.Setenv("JWT_SECRET", "secret")

	_, err := Load()
	assert.ErrorContains(t, err, "DB_DSN")

	t.Setenv("DB_DSN", "postgres://localhost/reservations")
	t.Setenv("JWT_SECRET", "")
	_, err = Load()
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestLoadInvalidValues(t *testing.T) {
	cases := map[string]string{
		"CALENDAR_TIMEOUT": "soon",
		"OUTBOX_BUFFER":    "many",
		"DB_MIGRATE":       "perhaps",
		"LOG_LEVEL":        "loud",
		"REDIS_DB":         "x",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			setRequired(t)
			t.Setenv(key, value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
