// Package config provides centralized configuration management for the console.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Backend  BackendConfig
	Session  SessionConfig
	Save     SaveConfig
	Audit    AuditConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 127.0.0.1)
	Host string `env:"SERVER_HOST" default:"127.0.0.1"`

	// Port is the port to listen on (default: 5000)
	Port int `env:"SERVER_PORT" default:"5000"`

	// PublicURL is used to build one-time admin links (default: derived from Host/Port)
	PublicURL string `env:"SERVER_PUBLIC_URL"`

	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// BackendConfig points at the knowledge-base API.
type BackendConfig struct {
	// URL is the base URL of the knowledge-base API (required)
	URL string `env:"BACKEND_URL" envAlt:"KB_API_URL" required:"true"`

	// Timeout bounds each backend call (default: 30s)
	Timeout time.Duration `env:"BACKEND_TIMEOUT" default:"30s"`

	// DeletePath is the delete route; {id} is replaced (default: /api/delete/{id})
	DeletePath string `env:"BACKEND_DELETE_PATH" default:"/api/delete/{id}"`
}

// SessionConfig controls operator sessions and admin links.
type SessionConfig struct {
	// IdleTimeout ends a session after inactivity (default: 5m)
	IdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" default:"5m"`

	// SweepInterval is how often expired sessions are dropped (default: 30s)
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" default:"30s"`

	// TokenTTL is how long an unused admin link stays valid (default: 10m)
	TokenTTL time.Duration `env:"ADMIN_TOKEN_TTL" default:"10m"`

	// RequireToken gates the console behind one-time admin links (default: true)
	RequireToken bool `env:"ADMIN_REQUIRE_TOKEN" default:"true"`

	// CookieSecure sets the Secure flag on the session cookie (default: false)
	CookieSecure bool `env:"SESSION_COOKIE_SECURE" default:"false"`
}

// SaveConfig holds save/upload settings.
type SaveConfig struct {
	// MaxFileSize is the maximum attachment size in bytes (default: 20MB)
	MaxFileSize int64 `env:"SAVE_MAX_FILE_SIZE" default:"20971520"`

	// MaxConcurrent is the maximum number of saves forwarded at once (default: 4)
	MaxConcurrent int `env:"SAVE_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long a save waits for a slot (default: 15s)
	MaxWaitTime time.Duration `env:"SAVE_MAX_WAIT_TIME" default:"15s"`
}

// AuditConfig configures the optional PostgreSQL audit trail.
type AuditConfig struct {
	// DatabaseURL enables the audit store when set
	DatabaseURL string `env:"AUDIT_DATABASE_URL" envAlt:"DATABASE_URL"`

	MaxConns        int           `env:"AUDIT_DB_MAX_CONNS" default:"4"`
	RetentionDays   int           `env:"AUDIT_RETENTION_DAYS" default:"90"`
	CheckInterval   time.Duration `env:"AUDIT_CHECK_INTERVAL" default:"24h"`
	MaxConnLifetime time.Duration `env:"AUDIT_DB_MAX_CONN_LIFETIME" default:"1h"`
}

// Enabled reports whether audit events go to the database.
func (c *AuditConfig) Enabled() bool {
	return c.DatabaseURL != ""
}

// Retention returns RetentionDays as a duration.
func (c *AuditConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the rate limit per IP (default: 300)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"300"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey protects token issuing and the audit API (default: true)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"true"`

	// APIKeys is a comma-separated list of accepted X-API-Key values
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// BaseURL returns PublicURL, or an http URL built from the listen address.
func (c *ServerConfig) BaseURL() string {
	if c.PublicURL != "" {
		return c.PublicURL
	}
	host := c.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	return "http://" + host + ":" + strconv.Itoa(c.Port)
}
