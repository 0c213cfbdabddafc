package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port        int      `env:"PORT" envDefault:"8080"`
	DatabaseURL string   `env:"DATABASE_URL,required"`
	RedisURL    string   `env:"REDIS_URL,required"`
	LogLevel    string   `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string   `env:"APP_ENV" envDefault:"development"`
	AppBaseURL  string   `env:"APP_BASE_URL" envDefault:"http://localhost:3000"`
	AutoMigrate bool     `env:"AUTO_MIGRATE" envDefault:"true"`
	CORSOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	// DashboardPath is where browser OAuth flows land after the callback.
	DashboardPath string `env:"DASHBOARD_PATH" envDefault:"/dashboard/channels"`

	AirbnbClientID     string   `env:"AIRBNB_CLIENT_ID"`
	AirbnbClientSecret string   `env:"AIRBNB_CLIENT_SECRET"`
	AirbnbAuthorizeURL string   `env:"AIRBNB_AUTHORIZE_URL" envDefault:"https://www.airbnb.com/oauth2/auth"`
	AirbnbTokenURL     string   `env:"AIRBNB_TOKEN_URL" envDefault:"https://api.airbnb.com/v2/oauth2/authorizations"`
	AirbnbRevokeURL    string   `env:"AIRBNB_REVOKE_URL"`
	AirbnbRedirectURI  string   `env:"AIRBNB_REDIRECT_URI"`
	AirbnbScopes       []string `env:"AIRBNB_SCOPES" envSeparator:" " envDefault:"property_management reservations_read"`

	ChannexWebhookSecret string `env:"CHANNEX_WEBHOOK_SECRET"`

	SessionSecret            string `env:"SESSION_SECRET"`
	SessionTTLHours          int    `env:"SESSION_TTL_HOURS" envDefault:"168"`
	SupabaseJWTSecret        string `env:"SUPABASE_JWT_SECRET"`
	AllowLegacySessionTokens bool   `env:"ALLOW_LEGACY_SESSION_TOKENS" envDefault:"false"`

	EncryptionKey string `env:"ENCRYPTION_KEY"`

	RefreshLockTTLSeconds      int `env:"REFRESH_LOCK_TTL_SECONDS" envDefault:"30"`
	WebhookDedupTTLSeconds     int `env:"WEBHOOK_DEDUP_TTL_SECONDS" envDefault:"86400"`
	ReservationCacheTTLSeconds int `env:"RESERVATION_CACHE_TTL_SECONDS" envDefault:"60"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// AirbnbConfigured reports whether the Airbnb OAuth client credentials are present.
func (c *Config) AirbnbConfigured() bool {
	return c.AirbnbClientID != "" && c.AirbnbClientSecret != ""
}

// AirbnbRedirect returns the configured redirect URI, falling back to the callback route on AppBaseURL.
func (c *Config) AirbnbRedirect() string {
	if c.AirbnbRedirectURI != "" {
		return c.AirbnbRedirectURI
	}
	return strings.TrimRight(c.AppBaseURL, "/") + "/api/airbnb/callback"
}

func (c *Config) DashboardURL() string {
	return strings.TrimRight(c.AppBaseURL, "/") + c.DashboardPath
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

func (c *Config) RefreshLockTTL() time.Duration {
	return time.Duration(c.RefreshLockTTLSeconds) * time.Second
}

func (c *Config) WebhookDedupTTL() time.Duration {
	return time.Duration(c.WebhookDedupTTLSeconds) * time.Second
}

func (c *Config) ReservationCacheTTL() time.Duration {
	return time.Duration(c.ReservationCacheTTLSeconds) * time.Second
}

func (c *Config) Validate(isProduction bool) error {
	if c.EncryptionKey != "" {
		key, err := hex.DecodeString(c.EncryptionKey)
		if err != nil || len(key) != 32 {
			return fmt.Errorf("ENCRYPTION_KEY must be 64 hex characters (generate with: openssl rand -hex 32)")
		}
	}

	if c.SessionSecret == "" {
		log.Warn().Msg("SESSION_SECRET is empty: self-issued sessions are disabled")
	}
	if c.AllowLegacySessionTokens {
		log.Warn().Msg("ALLOW_LEGACY_SESSION_TOKENS is enabled: unsigned auth_token cookies are accepted")
	}

	if isProduction {
		if err := validateSecret("SESSION_SECRET", c.SessionSecret); err != nil {
			return err
		}
		if c.ChannexWebhookSecret == "" {
			return fmt.Errorf("CHANNEX_WEBHOOK_SECRET is required in production")
		}

		if !c.AirbnbConfigured() {
			log.Warn().Msg("AIRBNB_CLIENT_ID/AIRBNB_CLIENT_SECRET are empty in production: Airbnb connect disabled")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if c.EncryptionKey == "" {
			log.Warn().Msg("ENCRYPTION_KEY is empty in production: channel tokens will not be encrypted at rest")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

// Load reads an optional .env file and then parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
