package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thruflo/mcpgate/internal/auth"
	"github.com/thruflo/mcpgate/internal/config"
)

func TestBuildVerifier_OpenPolicy(t *testing.T) {
	t.Parallel()

	v, err := buildVerifier(config.AuthConfig{Policy: config.PolicyOpen})
	require.NoError(t, err)

	assert.NoError(t, v.Verify("anyone", "anything"))
	assert.ErrorIs(t, v.Verify("", "x"), auth.ErrInvalidCredentials)
}

func TestBuildVerifier_UsersPolicy(t *testing.T) {
	t.Parallel()

	hash, err := auth.HashPassword("s3cret")
	require.NoError(t, err)

	dir := t.TempDir()
	usersFile := filepath.Join(dir, "users.yaml")
	require.NoError(t, os.WriteFile(usersFile, []byte("alice: "+hash+"\n"), 0o600))

	v, err := buildVerifier(config.AuthConfig{
		Policy:    config.PolicyUsers,
		UsersFile: usersFile,
	})
	require.NoError(t, err)

	assert.NoError(t, v.Verify("alice", "s3cret"))
	assert.ErrorIs(t, v.Verify("alice", "wrong"), auth.ErrInvalidCredentials)
}

func TestBuildVerifier_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	emptyFile := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(emptyFile, []byte("{}\n"), 0o600))

	tests := []struct {
		name    string
		cfg     config.AuthConfig
		wantErr string
	}{
		{
			name:    "missing users file",
			cfg:     config.AuthConfig{Policy: config.PolicyUsers, UsersFile: filepath.Join(dir, "nope.yaml")},
			wantErr: "failed to load users file",
		},
		{
			name:    "empty users file",
			cfg:     config.AuthConfig{Policy: config.PolicyUsers, UsersFile: emptyFile},
			wantErr: "contains no users",
		},
		{
			name:    "unknown policy",
			cfg:     config.AuthConfig{Policy: "ldap"},
			wantErr: "unknown auth policy",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := buildVerifier(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestApplyServeFlags(t *testing.T) {
	cfg := config.DefaultConfig()

	require.NoError(t, serveCmd.Flags().Set("auth-port", "9080"))
	require.NoError(t, serveCmd.Flags().Set("log-level", "debug"))
	defer func() {
		serveCmd.Flags().Set("auth-port", "0")
		serveCmd.Flags().Set("log-level", "")
	}()

	applyServeFlags(serveCmd, &cfg)

	assert.Equal(t, 9080, cfg.Auth.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	// Untouched flag keeps the config value.
	assert.Equal(t, config.DefaultChannelPort, cfg.Channel.Port)
}

func TestBannerAddr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		addr string
		want string
	}{
		{"[::]:8081", "localhost:8081"},
		{"0.0.0.0:8080", "localhost:8080"},
		{"127.0.0.1:49321", "localhost:49321"},
		{"not-an-addr", "not-an-addr"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.addr, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, bannerAddr(tt.addr))
		})
	}
}

func TestRootCommandWiring(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	assert.True(t, names["serve"], "serve command should be registered")
	assert.True(t, names["hash-password"], "hash-password command should be registered")
}
