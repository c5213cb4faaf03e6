package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so values like "30s" or "24h" can be used
// in the YAML config file.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config represents the mcpgate config file.
type Config struct {
	Auth     AuthConfig    `yaml:"auth"`
	Channel  ChannelConfig `yaml:"channel"`
	LogLevel string        `yaml:"log_level"`
}

// AuthConfig configures the HTTP login API.
type AuthConfig struct {
	// Port the login API listens on. 0 picks a random available port.
	Port int `yaml:"port"`

	// Policy selects the credential policy: PolicyOpen accepts any
	// non-empty username/password pair, PolicyUsers verifies against
	// the users file.
	Policy string `yaml:"policy"`

	// UsersFile is the path to the YAML users file (username to
	// argon2id hash). Required when Policy is PolicyUsers.
	UsersFile string `yaml:"users_file"`

	// TokenTTL is how long issued session tokens stay valid.
	// 0 disables expiry entirely.
	TokenTTL Duration `yaml:"token_ttl"`

	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ChannelConfig configures the WebSocket channel gateway.
type ChannelConfig struct {
	// Port the channel gateway listens on. 0 picks a random available port.
	Port int `yaml:"port"`

	// Endpoint is the WebSocket URL advertised in login responses
	// (e.g. "ws://example.com:8081/mcp"). When empty the endpoint is
	// derived from the login request's Host header and the channel port.
	Endpoint string `yaml:"endpoint"`

	// ReadTimeout is the per-message read deadline. A channel idle
	// longer than this is closed.
	ReadTimeout Duration `yaml:"read_timeout"`

	// WriteTimeout bounds each outgoing message write.
	WriteTimeout Duration `yaml:"write_timeout"`

	// MaxMessageSize caps incoming message size in bytes.
	MaxMessageSize int64 `yaml:"max_message_size"`
}

// RateLimitConfig tunes login attempt rate limiting.
type RateLimitConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Window      Duration      `yaml:"window"`
	BlockAfter  int           `yaml:"block_after"`
	BlockTime   Duration      `yaml:"block_time"`
}

// Credential policy values for AuthConfig.Policy.
const (
	PolicyOpen  = "open"
	PolicyUsers = "users"
)
