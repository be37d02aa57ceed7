package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// withSecret supplies a release-grade session secret through the environment.
func withSecret(t *testing.T) string {
	t.Helper()
	secret := strings.Repeat("k", MinSecretLen)
	t.Setenv("HUDDLE_SECRET", secret)
	return secret
}

func TestLoad_Defaults(t *testing.T) {
	secret := withSecret(t)
	cfg, err := load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "release", cfg.Mode)
	assert.Equal(t, secret, cfg.Secret)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 54*time.Second, cfg.PingPeriod)
	assert.True(t, cfg.Registry.Cache)
	assert.Equal(t, 5, cfg.Registry.MaxRetries)
	assert.Equal(t, 50, cfg.Chat.HistoryLimit)
	assert.False(t, cfg.Chat.RelayOnStoreError)
	assert.True(t, cfg.Signal.ReportRejections)
	require.Len(t, cfg.RTC.ICEServers, 1)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, cfg.RTC.ICEServers[0].URLs)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
mode: debug
port: 9000
storage:
  driver: postgres
  postgres:
    host: db
    name: rooms
    max_conns: 4
chat:
  history_limit: 20
  relay_on_store_error: true
rtc:
  ice_servers:
    - urls: ["turn:turn.example.com:3478"]
      username: u
      credential: p
`)
	cfg, err := load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Mode)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, "db", cfg.Storage.Postgres.Host)
	assert.Equal(t, 5432, cfg.Storage.Postgres.Port)
	assert.Equal(t, 4, cfg.Storage.Postgres.MaxConns)
	assert.Equal(t, 20, cfg.Chat.HistoryLimit)
	assert.True(t, cfg.Chat.RelayOnStoreError)
	require.Len(t, cfg.RTC.ICEServers, 1)
	assert.Equal(t, "u", cfg.RTC.ICEServers[0].Username)
}

func TestLoad_EnvOverride(t *testing.T) {
	withSecret(t)
	t.Setenv("HUDDLE_PORT", "9191")
	t.Setenv("HUDDLE_CHAT_HISTORY_LIMIT", "10")

	cfg, err := load(writeConfig(t, "port: 9000\n"))
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Port)
	assert.Equal(t, 10, cfg.Chat.HistoryLimit)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := load(writeConfig(t, "mode: fast\nport: 0\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `mode "fast"`)
	assert.Contains(t, err.Error(), "port 0 out of range")
}

func TestValidate(t *testing.T) {
	withSecret(t)
	cfg, err := load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown driver", func(c *Config) { c.Storage.Driver = "sqlite" }, `storage.driver "sqlite"`},
		{"trusted header without name", func(c *Config) { c.Auth.TrustHeader = true; c.Auth.UserHeader = "" }, "auth.user_header"},
		{"no retries", func(c *Config) { c.Registry.MaxRetries = 0 }, "registry.max_retries"},
		{"history too long", func(c *Config) { c.Chat.HistoryLimit = 501 }, "chat.history_limit"},
		{"ice server without urls", func(c *Config) { c.RTC.ICEServers = []ICEServer{{}} }, "rtc.ice_servers[0]"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"release with default secret", func(c *Config) { c.Secret = DefaultSecret }, "secret"},
		{"release with short secret", func(c *Config) { c.Secret = "hunter2" }, "secret"},
		{"release with empty secret", func(c *Config) { c.Secret = "" }, "secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *cfg
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
	assert.NoError(t, cfg.Validate())
}

func TestLoad_ReleaseNeedsSecret(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err, "release mode must not start with the built-in secret")
	assert.Contains(t, err.Error(), "HUDDLE_SECRET")

	cfg, err := load(writeConfig(t, "mode: debug\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultSecret, cfg.Secret, "development keeps the default")
}
