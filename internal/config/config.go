package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Config represents the main pairgate configuration
type Config struct {
	// Server
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Auth
	Auth AuthConfig `json:"auth" mapstructure:"auth"`

	// Sessions
	Sessions SessionsConfig `json:"sessions" mapstructure:"sessions"`

	// Rate limiting for the /api surface
	RateLimit RateLimitConfig `json:"rate_limit" mapstructure:"rate_limit"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port      int    `json:"port" mapstructure:"port"`
	Host      string `json:"host" mapstructure:"host"`
	PublicDir string `json:"public_dir" mapstructure:"public_dir"`
}

// AuthConfig holds the shared secret and optional source-address allow-list
type AuthConfig struct {
	SharedSecret string   `json:"shared_secret" mapstructure:"shared_secret"`
	AllowedIPs   []string `json:"allowed_ips" mapstructure:"allowed_ips"`
}

// SessionsConfig holds session registry configuration
type SessionsConfig struct {
	Root            string `json:"root" mapstructure:"root"`
	TTLMinutes      int    `json:"ttl_minutes" mapstructure:"ttl_minutes"`
	SweepIntervalMS int    `json:"sweep_interval_ms" mapstructure:"sweep_interval_ms"`
}

// RateLimitConfig holds per-client rate limit settings
type RateLimitConfig struct {
	WindowSeconds int `json:"window_seconds" mapstructure:"window_seconds"`
	MaxRequests   int `json:"max_requests" mapstructure:"max_requests"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `json:"level" mapstructure:"level"`
	File    string `json:"file" mapstructure:"file"`
	Console bool   `json:"console" mapstructure:"console"`
	Pretty  bool   `json:"pretty" mapstructure:"pretty"`
}

// TTL returns the session time-to-live as a duration.
func (c *SessionsConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// SweepInterval returns the expiry sweep interval as a duration.
func (c *SessionsConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMS) * time.Millisecond
}

// Window returns the rate limit window as a duration.
func (c *RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 3000,
			Host: "0.0.0.0",
		},
		Auth: AuthConfig{
			AllowedIPs: []string{},
		},
		Sessions: SessionsConfig{
			TTLMinutes:      10,
			SweepIntervalMS: 60000,
		},
		RateLimit: RateLimitConfig{
			WindowSeconds: 60,
			MaxRequests:   15,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			Pretty:  true,
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if strings.TrimSpace(c.Auth.SharedSecret) == "" {
		return fmt.Errorf("auth shared_secret is required")
	}
	if c.Sessions.TTLMinutes <= 0 {
		return fmt.Errorf("sessions ttl_minutes must be positive, got %d", c.Sessions.TTLMinutes)
	}
	if c.Sessions.SweepIntervalMS <= 0 {
		return fmt.Errorf("sessions sweep_interval_ms must be positive, got %d", c.Sessions.SweepIntervalMS)
	}
	if c.RateLimit.WindowSeconds <= 0 {
		return fmt.Errorf("rate_limit window_seconds must be positive, got %d", c.RateLimit.WindowSeconds)
	}
	if c.RateLimit.MaxRequests <= 0 {
		return fmt.Errorf("rate_limit max_requests must be positive, got %d", c.RateLimit.MaxRequests)
	}
	for _, ip := range c.Auth.AllowedIPs {
		if strings.TrimSpace(ip) == "" {
			return fmt.Errorf("auth allowed_ips contains an empty entry")
		}
	}
	return nil
}
