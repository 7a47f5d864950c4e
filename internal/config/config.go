// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// MinJWTSecretLength is the shortest HS256 secret accepted at startup.
const MinJWTSecretLength = 32

// ErrWeakJWTSecret is returned when JWT_SECRET is shorter than MinJWTSecretLength.
var ErrWeakJWTSecret = errors.New("JWT_SECRET must be at least 32 bytes")

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Storage
	DatabaseURL      string `env:"DATABASE_URL,required,notEmpty"`
	DatabaseMaxConns int32  `env:"DATABASE_MAX_CONNS" envDefault:"10"`
	RedisURL         string `env:"REDIS_URL,required,notEmpty"`
	RedisPool        int    `env:"REDIS_POOL_SIZE" envDefault:"10"`
	AutoMigrate      bool   `env:"AUTO_MIGRATE" envDefault:"false"`

	// Bearer tokens
	JWTSecret    string        `env:"JWT_SECRET,required,notEmpty"`
	JWTExpiresIn time.Duration `env:"JWT_EXPIRES_IN" envDefault:"168h"`
	JWTIssuer    string        `env:"JWT_ISSUER" envDefault:"taskflow"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rate limiting (fixed window per client IP on /api)
	RateLimitEnabled bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitMax     int           `env:"RATE_LIMIT_MAX" envDefault:"100"`
	RateLimitWindow  time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"15m"`

	// Comma-separated list of allowed origins. Entries may be exact origins
	// or "*.example.com" suffix patterns.
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 10 KiB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"10240"`

	MetricsEnabled  bool `env:"METRICS_ENABLED" envDefault:"true"`
	ActivityEnabled bool `env:"ACTIVITY_ENABLED" envDefault:"true"`
	ActivityBatch   int  `env:"ACTIVITY_BATCH_SIZE" envDefault:"200"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// Validate checks constraints env tags cannot express.
func (c *Config) Validate() error {
	if len(c.JWTSecret) < MinJWTSecretLength {
		return ErrWeakJWTSecret
	}
	if c.JWTExpiresIn <= 0 {
		return fmt.Errorf("JWT_EXPIRES_IN must be positive, got %s", c.JWTExpiresIn)
	}
	if c.RateLimitEnabled && (c.RateLimitMax <= 0 || c.RateLimitWindow <= 0) {
		return fmt.Errorf("rate limit needs positive RATE_LIMIT_MAX and RATE_LIMIT_WINDOW")
	}
	if c.DatabaseMaxConns < 1 || c.RedisPool < 1 {
		return fmt.Errorf("pool sizes must be positive: DATABASE_MAX_CONNS=%d REDIS_POOL_SIZE=%d", c.DatabaseMaxConns, c.RedisPool)
	}
	if c.ActivityEnabled && c.ActivityBatch < 1 {
		return fmt.Errorf("ACTIVITY_BATCH_SIZE must be positive, got %d", c.ActivityBatch)
	}
	return nil
}

// Load parses environment variables and returns a validated Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
