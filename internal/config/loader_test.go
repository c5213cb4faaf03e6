package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig writes content to a temp config file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mcpgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_MissingFileReturnsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultAuthPort, cfg.Auth.Port)
	assert.Equal(t, DefaultChannelPort, cfg.Channel.Port)
	assert.Equal(t, PolicyOpen, cfg.Auth.Policy)
	assert.Equal(t, Duration(DefaultTokenTTL), cfg.Auth.TokenTTL)
	assert.Equal(t, int64(DefaultMaxMessageSize), cfg.Channel.MaxMessageSize)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
auth:
  port: 9090
log_level: debug
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Auth.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	// Untouched fields keep defaults.
	assert.Equal(t, DefaultChannelPort, cfg.Channel.Port)
	assert.Equal(t, Duration(DefaultReadTimeout), cfg.Channel.ReadTimeout)
}

func TestLoadConfig_FullFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
auth:
  port: 9090
  policy: users
  users_file: /etc/mcpgate/users.yaml
  token_ttl: 1h
  rate_limit:
    max_attempts: 3
    window: 30s
channel:
  port: 9091
  endpoint: ws://gate.example.com:9091/mcp
  read_timeout: 45s
  write_timeout: 5s
  max_message_size: 32768
log_level: warn
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, PolicyUsers, cfg.Auth.Policy)
	assert.Equal(t, "/etc/mcpgate/users.yaml", cfg.Auth.UsersFile)
	assert.Equal(t, Duration(time.Hour), cfg.Auth.TokenTTL)
	assert.Equal(t, 3, cfg.Auth.RateLimit.MaxAttempts)
	assert.Equal(t, Duration(30*time.Second), cfg.Auth.RateLimit.Window)
	assert.Equal(t, "ws://gate.example.com:9091/mcp", cfg.Channel.Endpoint)
	assert.Equal(t, int64(32768), cfg.Channel.MaxMessageSize)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "auth: [not a mapping")

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:      "negative auth port",
			mutate:    func(c *Config) { c.Auth.Port = -1 },
			wantField: "auth.port",
		},
		{
			name:      "channel port too large",
			mutate:    func(c *Config) { c.Channel.Port = 70000 },
			wantField: "channel.port",
		},
		{
			name:      "unknown policy",
			mutate:    func(c *Config) { c.Auth.Policy = "ldap" },
			wantField: "auth.policy",
		},
		{
			name:      "users policy without file",
			mutate:    func(c *Config) { c.Auth.Policy = PolicyUsers },
			wantField: "auth.users_file",
		},
		{
			name:      "negative token ttl",
			mutate:    func(c *Config) { c.Auth.TokenTTL = Duration(-time.Hour) },
			wantField: "auth.token_ttl",
		},
		{
			name:      "zero read timeout",
			mutate:    func(c *Config) { c.Channel.ReadTimeout = 0 },
			wantField: "channel.read_timeout",
		},
		{
			name:      "zero write timeout",
			mutate:    func(c *Config) { c.Channel.WriteTimeout = 0 },
			wantField: "channel.write_timeout",
		},
		{
			name:      "zero max message size",
			mutate:    func(c *Config) { c.Channel.MaxMessageSize = 0 },
			wantField: "channel.max_message_size",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := ValidateConfig(&cfg)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
			assert.Contains(t, err.Error(), tt.wantField)
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	err := ValidationError{Field: "auth.port", Message: "must be between 0 and 65535"}
	assert.Equal(t, "validation error: auth.port: must be between 0 and 65535", err.Error())
}
