package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Outbound calls to channel providers
const ProviderHTTPTimeout = 10 * time.Second

// PKCE verifier cookie
const (
	VerifierCookieName   = "airbnb_code_verifier"
	VerifierCookieMaxAge = 10 * time.Minute
)

// Self-issued session cookie
const SessionCookieName = "auth_token"

// CSRF double-submit cookie lifetime
const CSRFCookieMaxAge = 24 * time.Hour

// Credential persistence after a successful code exchange
const (
	PersistAttempts = 3
	PersistBackoff  = 200 * time.Millisecond
)

// Background job intervals
const AccountStatsJobInterval = 5 * time.Minute

// Default rate limiting
const (
	DefaultRateLimitPerMin = 60
	SessionIssueLimitPerIP = 20
	RateLimitWindow        = time.Minute
)

// Reservation listing pagination
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)
