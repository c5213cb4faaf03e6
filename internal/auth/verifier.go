package auth

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidCredentials is returned when a username/password pair fails
// verification. Callers translate it into an HTTP 401 without leaking
// whether the username or the password was wrong.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Verifier validates a username/password pair at login.
type Verifier interface {
	Verify(username, password string) error
}

// OpenPolicy accepts any non-empty username/password pair. This is the
// demo-mode policy; production deployments should use a UserStore.
type OpenPolicy struct{}

// Verify implements Verifier.
func (OpenPolicy) Verify(username, password string) error {
	if username == "" || password == "" {
		return ErrInvalidCredentials
	}
	return nil
}

// UserStore verifies credentials against a fixed set of users loaded from
// a YAML file mapping username to argon2id password hash.
type UserStore struct {
	users map[string]string
}

// NewUserStore creates a UserStore from an in-memory username to hash map.
func NewUserStore(users map[string]string) *UserStore {
	copied := make(map[string]string, len(users))
	for name, hash := range users {
		copied[name] = hash
	}
	return &UserStore{users: copied}
}

// LoadUserStore reads a users file. The file is a flat YAML mapping:
//
//	alice: $argon2id$v=19$m=65536,t=3,p=4$...$...
//	bob: $argon2id$v=19$m=65536,t=3,p=4$...$...
func LoadUserStore(path string) (*UserStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read users file: %w", err)
	}

	var users map[string]string
	if err := yaml.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("failed to parse users file: %w", err)
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("users file %s contains no users", path)
	}

	return NewUserStore(users), nil
}

// Len returns the number of users in the store.
func (s *UserStore) Len() int {
	return len(s.users)
}

// Verify implements Verifier.
func (s *UserStore) Verify(username, password string) error {
	if username == "" || password == "" {
		return ErrInvalidCredentials
	}

	hash, ok := s.users[username]
	if !ok {
		return ErrInvalidCredentials
	}

	match, err := VerifyPassword(password, hash)
	if err != nil {
		return fmt.Errorf("failed to verify password for %s: %w", username, err)
	}
	if !match {
		return ErrInvalidCredentials
	}
	return nil
}
