package session

import (
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tokenPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

func TestIssue(t *testing.T) {
	t.Parallel()

	r := NewMemoryRegistry(0)

	token, rec, err := r.Issue("alice", []string{"read", "write"})
	require.NoError(t, err)

	assert.Regexp(t, tokenPattern, token)
	assert.Equal(t, "alice", rec.Username)
	assert.Equal(t, []string{"read", "write"}, rec.Permissions)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.True(t, rec.ExpiresAt.IsZero(), "no TTL means no expiry")
}

func TestIssue_UniqueTokens(t *testing.T) {
	t.Parallel()

	r := NewMemoryRegistry(0)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, _, err := r.Issue("alice", nil)
		require.NoError(t, err)
		assert.False(t, seen[token], "token %s issued twice", token)
		seen[token] = true
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()

	r := NewMemoryRegistry(0)
	token, _, err := r.Issue("alice", []string{"read"})
	require.NoError(t, err)

	t.Run("issued token resolves", func(t *testing.T) {
		rec, err := r.Lookup(token)
		require.NoError(t, err)
		assert.Equal(t, "alice", rec.Username)
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := r.Lookup("00000000000000000000000000000000")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("empty token", func(t *testing.T) {
		_, err := r.Lookup("")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("returned record is a copy", func(t *testing.T) {
		rec, err := r.Lookup(token)
		require.NoError(t, err)
		rec.Permissions[0] = "tampered"

		again, err := r.Lookup(token)
		require.NoError(t, err)
		assert.Equal(t, []string{"read"}, again.Permissions)
	})
}

func TestRevoke(t *testing.T) {
	t.Parallel()

	r := NewMemoryRegistry(0)
	token, _, err := r.Issue("alice", nil)
	require.NoError(t, err)

	r.Revoke(token)
	_, err = r.Lookup(token)
	assert.ErrorIs(t, err, ErrNotFound)

	// Revoking again is a no-op.
	r.Revoke(token)
	r.Revoke("never-issued")
}

func TestSize(t *testing.T) {
	t.Parallel()

	r := NewMemoryRegistry(0)
	assert.Equal(t, 0, r.Size())

	tokens := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		token, _, err := r.Issue("alice", nil)
		require.NoError(t, err)
		tokens = append(tokens, token)
	}
	assert.Equal(t, 3, r.Size())

	r.Revoke(tokens[0])
	assert.Equal(t, 2, r.Size())
}

func TestExpiry(t *testing.T) {
	t.Parallel()

	r := NewMemoryRegistry(20 * time.Millisecond)
	token, rec, err := r.Issue("alice", nil)
	require.NoError(t, err)
	assert.False(t, rec.ExpiresAt.IsZero())

	_, err = r.Lookup(token)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Size())

	time.Sleep(40 * time.Millisecond)

	_, err = r.Lookup(token)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, r.Size())
}

func TestSweep(t *testing.T) {
	t.Parallel()

	r := NewMemoryRegistry(10 * time.Millisecond)
	_, _, err := r.Issue("alice", nil)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	r.sweep(time.Now())

	r.mu.RLock()
	remaining := len(r.sessions)
	r.mu.RUnlock()
	assert.Equal(t, 0, remaining, "expired record should be evicted from the map")
}

func TestConcurrentIssueAndLookup(t *testing.T) {
	t.Parallel()

	r := NewMemoryRegistry(0)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				token, _, err := r.Issue("user", nil)
				if err != nil {
					t.Error(err)
					return
				}
				if _, err := r.Lookup(token); err != nil {
					t.Errorf("lookup of just-issued token failed: %v", err)
					return
				}
				r.Size()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 500, r.Size())
}
