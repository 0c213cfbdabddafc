package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigMethods(t *testing.T) {
	t.Run("Addr returns formatted port", func(t *testing.T) {
		cfg := &Config{Port: 3000}
		assert.Equal(t, ":3000", cfg.Addr())
	})

	t.Run("AirbnbRedirect falls back to callback route", func(t *testing.T) {
		cfg := &Config{AppBaseURL: "https://app.wellhost.io/"}
		assert.Equal(t, "https://app.wellhost.io/api/airbnb/callback", cfg.AirbnbRedirect())

		cfg.AirbnbRedirectURI = "https://example.com/cb"
		assert.Equal(t, "https://example.com/cb", cfg.AirbnbRedirect())
	})

	t.Run("DashboardURL joins base and path", func(t *testing.T) {
		cfg := &Config{AppBaseURL: "https://app.wellhost.io/", DashboardPath: "/dashboard/channels"}
		assert.Equal(t, "https://app.wellhost.io/dashboard/channels", cfg.DashboardURL())
	})

	t.Run("AirbnbConfigured requires id and secret", func(t *testing.T) {
		assert.False(t, (&Config{AirbnbClientID: "id"}).AirbnbConfigured())
		assert.True(t, (&Config{AirbnbClientID: "id", AirbnbClientSecret: "secret"}).AirbnbConfigured())
	})

	t.Run("durations convert from their units", func(t *testing.T) {
		cfg := &Config{
			SessionTTLHours:            168,
			RefreshLockTTLSeconds:      30,
			WebhookDedupTTLSeconds:     86400,
			ReservationCacheTTLSeconds: 60,
		}
		assert.Equal(t, 168*time.Hour, cfg.SessionTTL())
		assert.Equal(t, 30*time.Second, cfg.RefreshLockTTL())
		assert.Equal(t, 24*time.Hour, cfg.WebhookDedupTTL())
		assert.Equal(t, time.Minute, cfg.ReservationCacheTTL())
	})

	t.Run("IsProduction checks APP_ENV", func(t *testing.T) {
		assert.True(t, (&Config{AppEnv: "production"}).IsProduction())
		assert.False(t, (&Config{AppEnv: "development"}).IsProduction())
	})
}

func TestValidate(t *testing.T) {
	strongSecret := strings.Repeat("s", 40)

	t.Run("development accepts empty secrets", func(t *testing.T) {
		cfg := &Config{RedisURL: "redis://localhost:6379"}
		assert.NoError(t, cfg.Validate(false))
	})

	t.Run("rejects malformed encryption key", func(t *testing.T) {
		cfg := &Config{EncryptionKey: "not-hex"}
		assert.Error(t, cfg.Validate(false))

		cfg.EncryptionKey = strings.Repeat("ab", 16)
		assert.Error(t, cfg.Validate(false))

		cfg.EncryptionKey = strings.Repeat("ab", 32)
		assert.NoError(t, cfg.Validate(false))
	})

	t.Run("production requires strong session secret", func(t *testing.T) {
		cfg := &Config{SessionSecret: "secret", ChannexWebhookSecret: "whsec"}
		err := cfg.Validate(true)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SESSION_SECRET")
	})

	t.Run("production requires channex webhook secret", func(t *testing.T) {
		cfg := &Config{SessionSecret: strongSecret}
		err := cfg.Validate(true)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "CHANNEX_WEBHOOK_SECRET")
	})

	t.Run("production passes with required secrets", func(t *testing.T) {
		cfg := &Config{
			SessionSecret:        strongSecret,
			ChannexWebhookSecret: "whsec",
			RedisURL:             "rediss://redis:6379",
		}
		assert.NoError(t, cfg.Validate(true))
	})
}

func TestLoad(t *testing.T) {
	originalEnv := map[string]string{
		"PORT":                        os.Getenv("PORT"),
		"DATABASE_URL":                os.Getenv("DATABASE_URL"),
		"REDIS_URL":                   os.Getenv("REDIS_URL"),
		"LOG_LEVEL":                   os.Getenv("LOG_LEVEL"),
		"AIRBNB_SCOPES":               os.Getenv("AIRBNB_SCOPES"),
		"CORS_ALLOWED_ORIGINS":        os.Getenv("CORS_ALLOWED_ORIGINS"),
		"ALLOW_LEGACY_SESSION_TOKENS": os.Getenv("ALLOW_LEGACY_SESSION_TOKENS"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	t.Run("loads config with defaults", func(t *testing.T) {
		os.Setenv("DATABASE_URL", "postgres://localhost/test")
		os.Setenv("REDIS_URL", "redis://localhost:6379")
		os.Unsetenv("PORT")
		os.Unsetenv("LOG_LEVEL")
		os.Unsetenv("AIRBNB_SCOPES")
		os.Unsetenv("ALLOW_LEGACY_SESSION_TOKENS")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
		assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, []string{"property_management", "reservations_read"}, cfg.AirbnbScopes)
		assert.False(t, cfg.AllowLegacySessionTokens)
		assert.True(t, cfg.AutoMigrate)
		assert.Equal(t, 30, cfg.RefreshLockTTLSeconds)
	})

	t.Run("loads custom values", func(t *testing.T) {
		os.Setenv("DATABASE_URL", "postgres://localhost/test")
		os.Setenv("REDIS_URL", "redis://localhost:6379")
		os.Setenv("PORT", "3000")
		os.Setenv("LOG_LEVEL", "debug")
		os.Setenv("AIRBNB_SCOPES", "a b")
		os.Setenv("CORS_ALLOWED_ORIGINS", "https://app.wellhost.io,http://localhost:3000")
		os.Setenv("ALLOW_LEGACY_SESSION_TOKENS", "true")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Port)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, []string{"a", "b"}, cfg.AirbnbScopes)
		assert.Equal(t, []string{"https://app.wellhost.io", "http://localhost:3000"}, cfg.CORSOrigins)
		assert.True(t, cfg.AllowLegacySessionTokens)
	})

	t.Run("fails without required DATABASE_URL", func(t *testing.T) {
		os.Unsetenv("DATABASE_URL")
		os.Setenv("REDIS_URL", "redis://localhost:6379")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("fails without required REDIS_URL", func(t *testing.T) {
		os.Setenv("DATABASE_URL", "postgres://localhost/test")
		os.Unsetenv("REDIS_URL")

		_, err := Load()
		assert.Error(t, err)
	})
}
