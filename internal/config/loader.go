// Package config loads and validates the mcpgate configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for Config.
const (
	DefaultAuthPort       = 8080
	DefaultChannelPort    = 8081
	DefaultTokenTTL       = 24 * time.Hour
	DefaultReadTimeout    = 120 * time.Second
	DefaultWriteTimeout   = 10 * time.Second
	DefaultMaxMessageSize = 64 * 1024
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Auth: AuthConfig{
			Port:     DefaultAuthPort,
			Policy:   PolicyOpen,
			TokenTTL: Duration(DefaultTokenTTL),
		},
		Channel: ChannelConfig{
			Port:           DefaultChannelPort,
			ReadTimeout:    Duration(DefaultReadTimeout),
			WriteTimeout:   Duration(DefaultWriteTimeout),
			MaxMessageSize: DefaultMaxMessageSize,
		},
		LogLevel: "info",
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// IsValidationError checks if an error is a ValidationError.
func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// LoadConfig reads and parses the config file at path.
// If the file doesn't exist, returns default config.
// Applies defaults for any missing fields.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			return &cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ValidateConfig checks that all config values are valid.
func ValidateConfig(cfg *Config) error {
	if cfg.Auth.Port < 0 || cfg.Auth.Port > 65535 {
		return ValidationError{Field: "auth.port", Message: "must be between 0 and 65535"}
	}
	if cfg.Channel.Port < 0 || cfg.Channel.Port > 65535 {
		return ValidationError{Field: "channel.port", Message: "must be between 0 and 65535"}
	}

	switch cfg.Auth.Policy {
	case PolicyOpen:
	case PolicyUsers:
		if cfg.Auth.UsersFile == "" {
			return ValidationError{Field: "auth.users_file", Message: "required when policy is users"}
		}
	default:
		return ValidationError{Field: "auth.policy", Message: "must be open or users"}
	}

	if cfg.Auth.TokenTTL < 0 {
		return ValidationError{Field: "auth.token_ttl", Message: "must not be negative"}
	}
	if cfg.Channel.ReadTimeout <= 0 {
		return ValidationError{Field: "channel.read_timeout", Message: "must be positive"}
	}
	if cfg.Channel.WriteTimeout <= 0 {
		return ValidationError{Field: "channel.write_timeout", Message: "must be positive"}
	}
	if cfg.Channel.MaxMessageSize <= 0 {
		return ValidationError{Field: "channel.max_message_size", Message: "must be positive"}
	}

	if cfg.Auth.RateLimit.MaxAttempts < 0 {
		return ValidationError{Field: "auth.rate_limit.max_attempts", Message: "must not be negative"}
	}

	return nil
}
