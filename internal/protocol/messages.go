// Package protocol defines the JSON messages exchanged on the channel.
// Each WebSocket text message carries exactly one JSON object, tagged by
// its "type" field.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Client-to-server message types.
const (
	TypeAuth    = "auth"
	TypeCommand = "command"
	TypePing    = "ping"
)

// Server-to-client message types.
const (
	TypeAuthResponse    = "auth_response"
	TypeCommandResponse = "command_response"
	TypePong            = "pong"
	TypeError           = "error"
)

// ClientMessage is the envelope for messages received on a channel. Fields
// beyond Type are populated depending on the message type.
type ClientMessage struct {
	Type string `json:"type"`

	// SessionToken is set on auth messages.
	SessionToken string `json:"sessionToken,omitempty"`

	// Command fields. RequestID is kept raw so any JSON value the
	// client sent is echoed back verbatim.
	Action     string          `json:"action,omitempty"`
	RequestID  json.RawMessage `json:"requestId,omitempty"`
	ResourceID string          `json:"resourceId,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// ParseClientMessage decodes one channel message. A parse error means the
// payload was not a well-formed message object; the caller replies with an
// error message and keeps the channel open.
func ParseClientMessage(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}
	return &msg, nil
}

// AuthResponse answers an auth message.
type AuthResponse struct {
	Type        string   `json:"type"`
	Success     bool     `json:"success"`
	Username    string   `json:"username,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	Message     string   `json:"message,omitempty"`
}

// NewAuthSuccess builds the reply for a successful channel authentication.
func NewAuthSuccess(username string, permissions []string) AuthResponse {
	return AuthResponse{
		Type:        TypeAuthResponse,
		Success:     true,
		Username:    username,
		Permissions: permissions,
	}
}

// NewAuthFailure builds the reply for a rejected channel authentication.
func NewAuthFailure(message string) AuthResponse {
	return AuthResponse{
		Type:    TypeAuthResponse,
		Success: false,
		Message: message,
	}
}

// CommandResponse answers a command message. RequestID mirrors the request
// exactly, including being absent when the client sent none.
type CommandResponse struct {
	Type      string          `json:"type"`
	Action    string          `json:"action"`
	RequestID json.RawMessage `json:"requestId,omitempty"`
	Success   bool            `json:"success"`
	Data      interface{}     `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Pong answers a ping in any channel state.
type Pong struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// NewPong builds a pong carrying the server time in RFC 3339 format.
func NewPong(now time.Time) Pong {
	return Pong{
		Type:      TypePong,
		Timestamp: now.UTC().Format(time.RFC3339),
	}
}

// ErrorMessage reports a non-fatal protocol error on the channel.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewError builds an error message.
func NewError(message string) ErrorMessage {
	return ErrorMessage{
		Type:    TypeError,
		Message: message,
	}
}
