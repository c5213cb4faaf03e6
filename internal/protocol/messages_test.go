package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClientMessage(t *testing.T) {
	t.Parallel()

	t.Run("auth message", func(t *testing.T) {
		t.Parallel()

		msg, err := ParseClientMessage([]byte(`{"type":"auth","sessionToken":"abc123"}`))
		require.NoError(t, err)
		assert.Equal(t, TypeAuth, msg.Type)
		assert.Equal(t, "abc123", msg.SessionToken)
	})

	t.Run("command message", func(t *testing.T) {
		t.Parallel()

		msg, err := ParseClientMessage([]byte(`{"type":"command","action":"update_resource","requestId":"42","resourceId":"srv-1","data":{"status":"offline"}}`))
		require.NoError(t, err)
		assert.Equal(t, TypeCommand, msg.Type)
		assert.Equal(t, "update_resource", msg.Action)
		assert.Equal(t, json.RawMessage(`"42"`), msg.RequestID)
		assert.Equal(t, "srv-1", msg.ResourceID)
		assert.JSONEq(t, `{"status":"offline"}`, string(msg.Data))
	})

	t.Run("missing type yields empty tag not error", func(t *testing.T) {
		t.Parallel()

		msg, err := ParseClientMessage([]byte(`{"action":"get_status"}`))
		require.NoError(t, err)
		assert.Empty(t, msg.Type)
	})

	t.Run("malformed payloads", func(t *testing.T) {
		t.Parallel()

		for _, payload := range []string{
			`not json`,
			`{"type":`,
			`[1,2,3]`,
			`"just a string"`,
			``,
		} {
			_, err := ParseClientMessage([]byte(payload))
			assert.Error(t, err, "payload %q", payload)
		}
	})

	t.Run("numeric requestId survives untouched", func(t *testing.T) {
		t.Parallel()

		msg, err := ParseClientMessage([]byte(`{"type":"command","action":"get_status","requestId":17}`))
		require.NoError(t, err)
		assert.Equal(t, json.RawMessage(`17`), msg.RequestID)
	})
}

func TestAuthResponses(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		resp := NewAuthSuccess("alice", []string{"read"})
		out, err := json.Marshal(resp)
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"auth_response","success":true,"username":"alice","permissions":["read"]}`, string(out))
	})

	t.Run("failure", func(t *testing.T) {
		resp := NewAuthFailure("Invalid session token")
		out, err := json.Marshal(resp)
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"auth_response","success":false,"message":"Invalid session token"}`, string(out))
	})
}

func TestCommandResponse_RequestIDEcho(t *testing.T) {
	t.Parallel()

	t.Run("string id", func(t *testing.T) {
		resp := CommandResponse{
			Type:      TypeCommandResponse,
			Action:    "get_status",
			RequestID: json.RawMessage(`"req-1"`),
			Success:   true,
		}
		out, err := json.Marshal(resp)
		require.NoError(t, err)
		assert.Contains(t, string(out), `"requestId":"req-1"`)
	})

	t.Run("absent id stays absent", func(t *testing.T) {
		resp := CommandResponse{
			Type:    TypeCommandResponse,
			Action:  "get_status",
			Success: true,
		}
		out, err := json.Marshal(resp)
		require.NoError(t, err)
		assert.NotContains(t, string(out), "requestId")
	})
}

func TestNewPong(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	pong := NewPong(now)

	assert.Equal(t, TypePong, pong.Type)
	assert.Equal(t, "2026-03-14T15:09:26Z", pong.Timestamp)

	parsed, err := time.Parse(time.RFC3339, pong.Timestamp)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(now))
}

func TestNewError(t *testing.T) {
	t.Parallel()

	msg := NewError("Invalid message format")
	out, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","message":"Invalid message format"}`, string(out))
}
