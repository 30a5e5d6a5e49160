package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Remote   RemoteConfig   `yaml:"remote"`
	Auth     AuthConfig     `yaml:"auth"`
	Sync     SyncConfig     `yaml:"sync"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig contains local database settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RemoteConfig contains remote store settings. An empty DSN puts the
// application in offline mode: local writes and the change queue work
// normally, sync runs are simply never scheduled.
type RemoteConfig struct {
	DSN string `yaml:"-"` // env-only, never in YAML
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	APIKey string `yaml:"-"` // env-only, never in YAML
}

// SyncConfig contains sync engine settings.
type SyncConfig struct {
	Interval            Duration `yaml:"interval"`
	RetryMaxAttempts    int      `yaml:"retry_max_attempts"`
	VersionHistoryLimit int      `yaml:"version_history_limit"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("INKWELL_CONFIG_PATH", "config/inkwell.yaml")

	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific path.
// Used for testing and explicit path specification.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Database: DatabaseConfig{
			Path: "data/inkwell.db",
		},
		Sync: SyncConfig{
			Interval:            Duration(30 * time.Second),
			RetryMaxAttempts:    5,
			VersionHistoryLimit: 20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
// Missing file is not an error; we just use defaults.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("INKWELL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("INKWELL_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = Duration(d)
		}
	}
	if v := os.Getenv("INKWELL_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = Duration(d)
		}
	}
	if v := os.Getenv("INKWELL_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ShutdownTimeout = Duration(d)
		}
	}

	// Database
	if v := os.Getenv("INKWELL_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Remote store
	if v := os.Getenv("INKWELL_REMOTE_DSN"); v != "" {
		cfg.Remote.DSN = v
	}

	// Auth
	if v := os.Getenv("INKWELL_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}

	// Sync
	if v := os.Getenv("INKWELL_SYNC_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Sync.Interval = Duration(d)
		}
	}
	if v := os.Getenv("INKWELL_SYNC_RETRY_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sync.RetryMaxAttempts = n
		}
	}
	if v := os.Getenv("INKWELL_VERSION_HISTORY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sync.VersionHistoryLimit = n
		}
	}

	// Log
	if v := os.Getenv("INKWELL_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("INKWELL_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// validate checks that required configuration values are set.
// In dev mode (INKWELL_DEV_MODE=true), API key validation is skipped.
func (c *Config) validate() error {
	if c.Sync.RetryMaxAttempts < 1 {
		return errors.New("sync.retry_max_attempts must be at least 1")
	}
	if c.Sync.VersionHistoryLimit < 1 {
		return errors.New("sync.version_history_limit must be at least 1")
	}

	if os.Getenv("INKWELL_DEV_MODE") == "true" {
		return nil
	}

	if c.Auth.APIKey == "" {
		return errors.New("INKWELL_API_KEY is required")
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
