// Package session implements the session registry: issuing opaque bearer
// tokens at login and resolving them when a channel authenticates.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrNotFound is returned by Lookup when the token was never issued, was
// revoked, or has expired.
var ErrNotFound = errors.New("session not found")

// Record describes an issued session. Records are immutable after creation;
// Lookup returns copies so callers cannot mutate registry state.
type Record struct {
	Username    string
	Permissions []string
	CreatedAt   time.Time
	// ExpiresAt is the zero time when the registry has no TTL.
	ExpiresAt time.Time
}

// Expired reports whether the record has expired at time now.
func (r Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// Registry issues and resolves session tokens.
type Registry interface {
	// Issue stores a new session for username and returns its token.
	Issue(username string, permissions []string) (string, Record, error)

	// Lookup resolves a token to its record. Returns ErrNotFound for
	// unknown, revoked, or expired tokens.
	Lookup(token string) (Record, error)

	// Revoke removes a session. Revoking an unknown token is a no-op.
	Revoke(token string)

	// Size returns the number of live (non-expired) sessions.
	Size() int
}

// tokenBytes is the entropy per token: 16 random bytes hex-encoded gives
// 32-character tokens with 128 bits of entropy.
const tokenBytes = 16

// MemoryRegistry is an in-memory Registry safe for concurrent use.
type MemoryRegistry struct {
	mu       sync.RWMutex
	ttl      time.Duration
	sessions map[string]Record
}

var _ Registry = (*MemoryRegistry)(nil)

// NewMemoryRegistry creates a registry whose sessions expire after ttl.
// A ttl of 0 disables expiry.
func NewMemoryRegistry(ttl time.Duration) *MemoryRegistry {
	return &MemoryRegistry{
		ttl:      ttl,
		sessions: make(map[string]Record),
	}
}

// Issue implements Registry.
func (r *MemoryRegistry) Issue(username string, permissions []string) (string, Record, error) {
	now := time.Now()
	rec := Record{
		Username:    username,
		Permissions: append([]string(nil), permissions...),
		CreatedAt:   now,
	}
	if r.ttl > 0 {
		rec.ExpiresAt = now.Add(r.ttl)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Collisions are vanishingly unlikely at 128 bits, but a fresh draw
	// costs nothing.
	for {
		token, err := newToken()
		if err != nil {
			return "", Record{}, err
		}
		if _, exists := r.sessions[token]; exists {
			continue
		}
		r.sessions[token] = rec
		return token, rec, nil
	}
}

// Lookup implements Registry.
func (r *MemoryRegistry) Lookup(token string) (Record, error) {
	if token == "" {
		return Record{}, ErrNotFound
	}

	r.mu.RLock()
	rec, ok := r.sessions[token]
	r.mu.RUnlock()

	if !ok || rec.Expired(time.Now()) {
		return Record{}, ErrNotFound
	}

	rec.Permissions = append([]string(nil), rec.Permissions...)
	return rec, nil
}

// Revoke implements Registry.
func (r *MemoryRegistry) Revoke(token string) {
	r.mu.Lock()
	delete(r.sessions, token)
	r.mu.Unlock()
}

// Size implements Registry.
func (r *MemoryRegistry) Size() int {
	now := time.Now()

	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, rec := range r.sessions {
		if !rec.Expired(now) {
			count++
		}
	}
	return count
}

// StartSweep starts a goroutine that periodically evicts expired sessions
// until ctx is cancelled. Without the sweep expired sessions are already
// invisible to Lookup and Size, but their records would accumulate forever.
func (r *MemoryRegistry) StartSweep(ctx context.Context, interval time.Duration) {
	if r.ttl <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.sweep(time.Now())
			}
		}
	}()
}

func (r *MemoryRegistry) sweep(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for token, rec := range r.sessions {
		if rec.Expired(now) {
			delete(r.sessions, token)
		}
	}
}

// newToken generates a fresh session token from the system CSPRNG.
func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
