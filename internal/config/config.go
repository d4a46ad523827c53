// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-moneta.
//
// go-moneta is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package config loads the server configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jeremyhahn/go-moneta/pkg/passkey"
	"github.com/jeremyhahn/go-moneta/pkg/ratelimit"
)

// EnvPrefix is the prefix for environment variable overrides. A key such
// as server.port maps to MONETA_SERVER_PORT.
const EnvPrefix = "MONETA"

// Config represents the complete server configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	CORS     CORSConfig     `mapstructure:"cors" yaml:"cors"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Passkey  passkey.Config `mapstructure:"passkey" yaml:"passkey"`
	Session  SessionConfig  `mapstructure:"session" yaml:"session"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`

	// RateLimit throttles the passkey ceremony endpoints per client IP.
	RateLimit ratelimit.Config `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// ServerConfig contains server-level settings
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	// TLSCertFile and TLSKeyFile enable HTTPS when both are set. Browsers
	// require a secure context for WebAuthn outside of localhost.
	TLSCertFile string `mapstructure:"tls_cert_file" yaml:"tls_cert_file"`
	TLSKeyFile  string `mapstructure:"tls_key_file" yaml:"tls_key_file"`
}

// CORSConfig contains cross-origin settings.
type CORSConfig struct {
	// AllowedOrigins lists the origins allowed to call the API. When
	// empty, the passkey relying party origins are used.
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// AllowedOrigins resolves the effective CORS origin list.
func (c *Config) AllowedOrigins() []string {
	if len(c.CORS.AllowedOrigins) > 0 {
		return c.CORS.AllowedOrigins
	}
	return c.Passkey.RPOrigins
}

// DatabaseConfig contains PostgreSQL settings. When the DSN is empty the
// server falls back to in-memory stores.
type DatabaseConfig struct {
	DSN     string `mapstructure:"dsn" yaml:"dsn"`
	Migrate bool   `mapstructure:"migrate" yaml:"migrate"`
}

// SessionConfig contains session token settings
type SessionConfig struct {
	Secret   string        `mapstructure:"secret" yaml:"secret"`
	Issuer   string        `mapstructure:"issuer" yaml:"issuer"`
	Audience string        `mapstructure:"audience" yaml:"audience"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls the metrics endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// Load reads configuration from a YAML file and applies environment
// variable overrides. An empty path loads defaults and environment
// overrides only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8443)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.tls_cert_file", "")
	v.SetDefault("server.tls_key_file", "")

	v.SetDefault("cors.allowed_origins", []string{})

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.migrate", true)

	v.SetDefault("passkey.rp_id", "localhost")
	v.SetDefault("passkey.rp_display_name", "Moneta")
	v.SetDefault("passkey.rp_origins", []string{"http://localhost:8443"})
	v.SetDefault("passkey.challenge_ttl", 5*time.Minute)
	v.SetDefault("passkey.challenge_capacity", 1000)

	v.SetDefault("passkey.attestation", "none")
	v.SetDefault("passkey.user_verification", "preferred")

	v.SetDefault("session.secret", "")
	v.SetDefault("session.issuer", "go-moneta")
	v.SetDefault("session.audience", "")
	v.SetDefault("session.ttl", time.Hour)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.requests_per_minute", 60)
	v.SetDefault("rate_limit.burst", 10)
	v.SetDefault("rate_limit.cleanup_interval", 10*time.Minute)
	v.SetDefault("rate_limit.max_idle", 30*time.Minute)
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		return fmt.Errorf("tls_cert_file and tls_key_file must be set together")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	c.Passkey.SetDefaults()
	if err := c.Passkey.Validate(); err != nil {
		return fmt.Errorf("invalid passkey config: %w", err)
	}

	if len(c.Session.Secret) < 32 {
		return fmt.Errorf("session secret must be at least 32 bytes")
	}

	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute < 1 {
		return fmt.Errorf("rate_limit.requests_per_minute must be at least 1")
	}

	return nil
}
