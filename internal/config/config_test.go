package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// Helper to clear all config-related env vars
func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"INKWELL_PORT",
		"INKWELL_READ_TIMEOUT",
		"INKWELL_WRITE_TIMEOUT",
		"INKWELL_SHUTDOWN_TIMEOUT",
		"INKWELL_DB_PATH",
		"INKWELL_REMOTE_DSN",
		"INKWELL_API_KEY",
		"INKWELL_SYNC_INTERVAL",
		"INKWELL_SYNC_RETRY_MAX_ATTEMPTS",
		"INKWELL_VERSION_HISTORY_LIMIT",
		"INKWELL_LOG_LEVEL",
		"INKWELL_LOG_FORMAT",
		"INKWELL_CONFIG_PATH",
		"INKWELL_DEV_MODE",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}
}

func setDevModeEnv(t *testing.T) {
	t.Helper()
	os.Setenv("INKWELL_DEV_MODE", "true")
}

func dur(d Duration) time.Duration {
	return time.Duration(d)
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	setDevModeEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if dur(cfg.Server.ReadTimeout) != 30*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 30s", cfg.Server.ReadTimeout)
	}
	if dur(cfg.Server.ShutdownTimeout) != 15*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v, want 15s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Database.Path != "data/inkwell.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "data/inkwell.db")
	}
	if cfg.Remote.DSN != "" {
		t.Errorf("Remote.DSN = %q, want empty (offline by default)", cfg.Remote.DSN)
	}
	if dur(cfg.Sync.Interval) != 30*time.Second {
		t.Errorf("Sync.Interval = %v, want 30s", cfg.Sync.Interval)
	}
	if cfg.Sync.RetryMaxAttempts != 5 {
		t.Errorf("Sync.RetryMaxAttempts = %d, want 5", cfg.Sync.RetryMaxAttempts)
	}
	if cfg.Sync.VersionHistoryLimit != 20 {
		t.Errorf("Sync.VersionHistoryLimit = %d, want 20", cfg.Sync.VersionHistoryLimit)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v, want info/json", cfg.Log)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	clearEnv(t)
	setDevModeEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "inkwell.yaml")
	yaml := `
server:
  port: 9090
  read_timeout: 45s
database:
  path: /var/lib/inkwell/inkwell.db
sync:
  interval: 2m
  retry_max_attempts: 3
  version_history_limit: 10
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if dur(cfg.Server.ReadTimeout) != 45*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 45s", cfg.Server.ReadTimeout)
	}
	// Unset YAML fields keep defaults.
	if dur(cfg.Server.WriteTimeout) != 30*time.Second {
		t.Errorf("Server.WriteTimeout = %v, want default 30s", cfg.Server.WriteTimeout)
	}
	if cfg.Database.Path != "/var/lib/inkwell/inkwell.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if dur(cfg.Sync.Interval) != 2*time.Minute {
		t.Errorf("Sync.Interval = %v, want 2m", cfg.Sync.Interval)
	}
	if cfg.Sync.RetryMaxAttempts != 3 {
		t.Errorf("Sync.RetryMaxAttempts = %d, want 3", cfg.Sync.RetryMaxAttempts)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	clearEnv(t)
	setDevModeEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "inkwell.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	os.Setenv("INKWELL_PORT", "7070")
	os.Setenv("INKWELL_DB_PATH", "/tmp/override.db")
	os.Setenv("INKWELL_SYNC_INTERVAL", "10s")
	defer clearEnv(t)

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want env override 7070", cfg.Server.Port)
	}
	if cfg.Database.Path != "/tmp/override.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
	if dur(cfg.Sync.Interval) != 10*time.Second {
		t.Errorf("Sync.Interval = %v, want 10s", cfg.Sync.Interval)
	}
}

func TestLoad_SecretsNeverFromYAML(t *testing.T) {
	clearEnv(t)
	setDevModeEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "inkwell.yaml")
	yaml := `
remote:
  dsn: postgres://yaml-should-be-ignored
auth:
  apikey: yaml-should-be-ignored
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if cfg.Remote.DSN != "" {
		t.Errorf("Remote.DSN loaded from YAML: %q", cfg.Remote.DSN)
	}
	if cfg.Auth.APIKey != "" {
		t.Errorf("Auth.APIKey loaded from YAML: %q", cfg.Auth.APIKey)
	}

	os.Setenv("INKWELL_REMOTE_DSN", "postgres://env-wins")
	os.Setenv("INKWELL_API_KEY", "env-key")
	defer clearEnv(t)

	cfg, err = LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if cfg.Remote.DSN != "postgres://env-wins" {
		t.Errorf("Remote.DSN = %q, want env value", cfg.Remote.DSN)
	}
	if cfg.Auth.APIKey != "env-key" {
		t.Errorf("Auth.APIKey = %q, want env value", cfg.Auth.APIKey)
	}
}

func TestLoad_RequiresAPIKeyOutsideDevMode(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "INKWELL_API_KEY") {
		t.Errorf("expected missing API key error, got %v", err)
	}

	os.Setenv("INKWELL_API_KEY", "prod-key")
	defer clearEnv(t)

	if _, err := Load(); err != nil {
		t.Errorf("Load() with API key error = %v", err)
	}
}

func TestLoad_RejectsBadSyncSettings(t *testing.T) {
	clearEnv(t)
	setDevModeEnv(t)

	os.Setenv("INKWELL_SYNC_RETRY_MAX_ATTEMPTS", "0")
	defer clearEnv(t)

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "retry_max_attempts") {
		t.Errorf("expected retry_max_attempts error, got %v", err)
	}
}

func TestDuration_UnmarshalRejectsGarbage(t *testing.T) {
	clearEnv(t)
	setDevModeEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "inkwell.yaml")
	if err := os.WriteFile(path, []byte("server:\n  read_timeout: not-a-duration\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFromFile(path)
	if err == nil || !strings.Contains(err.Error(), "invalid duration") {
		t.Errorf("expected duration parse error, got %v", err)
	}
}
