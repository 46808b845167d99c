package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load loads the configuration from file and environment.
// Environment variables use the PAIRGATE_ prefix with underscores for
// nesting, e.g. PAIRGATE_AUTH_SHARED_SECRET, PAIRGATE_SERVER_PORT.
// PAIRGATE_AUTH_ALLOWED_IPS accepts a comma-separated list.
func (l *Loader) Load() (*Config, error) {
	configPath := l.configPath
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".pairgate", "pairgate.json")
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.SetEnvPrefix("PAIRGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	// Config file is optional; env vars and defaults still apply without it.
	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Allowed IPs arrive as a comma-separated string from the environment.
	// GetString yields "" for the config-file array form, so this only
	// rewrites the env case.
	if raw := v.GetString("auth.allowed_ips"); raw != "" {
		cfg.Auth.AllowedIPs = splitList(raw)
	}

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".pairgate")
	}

	if cfg.Sessions.Root == "" {
		cfg.Sessions.Root = filepath.Join(cfg.DataDir, "sessions")
	}

	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.DataDir, "pairgate.log")
	}

	return cfg, nil
}

// bindEnvKeys makes env-only keys visible to viper even when the config
// file omits them entirely.
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"server.port",
		"server.host",
		"server.public_dir",
		"auth.shared_secret",
		"auth.allowed_ips",
		"sessions.root",
		"sessions.ttl_minutes",
		"sessions.sweep_interval_ms",
		"rate_limit.window_seconds",
		"rate_limit.max_requests",
		"logging.level",
		"logging.file",
		"data_dir",
	}
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".pairgate", "pairgate.json")
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	loader := NewLoader(configPath)
	return loader.Load()
}
