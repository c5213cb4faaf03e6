// Package command maps channel command actions to their handlers. Dispatch
// has no side effects beyond reading the session registry size and the
// resource provider; every failure becomes a structured response.
package command

import (
	"fmt"
	"time"

	"github.com/thruflo/mcpgate/internal/protocol"
	"github.com/thruflo/mcpgate/internal/session"
)

// Command action names.
const (
	ActionGetStatus      = "get_status"
	ActionListResources  = "list_resources"
	ActionUpdateResource = "update_resource"
)

// SessionCounter reports the number of active sessions. Satisfied by
// session.Registry.
type SessionCounter interface {
	Size() int
}

// StatusData is the payload of a get_status response.
type StatusData struct {
	Status         string  `json:"status"`
	Uptime         float64 `json:"uptime"`
	ActiveSessions int     `json:"activeSessions"`
	ServerTime     string  `json:"serverTime"`
}

// UpdateData is the payload of a successful update_resource response.
type UpdateData struct {
	ResourceID string `json:"resourceId"`
	Message    string `json:"message"`
}

// handlerFunc handles one action. A non-empty errMsg marks the command as
// failed without touching the channel.
type handlerFunc func(msg *protocol.ClientMessage, rec session.Record) (data interface{}, errMsg string)

// Dispatcher routes command messages from authenticated channels.
type Dispatcher struct {
	sessions  SessionCounter
	provider  Provider
	startedAt time.Time
	handlers  map[string]handlerFunc
}

// NewDispatcher creates a dispatcher backed by the given session counter
// and resource provider.
func NewDispatcher(sessions SessionCounter, provider Provider) *Dispatcher {
	d := &Dispatcher{
		sessions:  sessions,
		provider:  provider,
		startedAt: time.Now(),
	}
	d.handlers = map[string]handlerFunc{
		ActionGetStatus:      d.getStatus,
		ActionListResources:  d.listResources,
		ActionUpdateResource: d.updateResource,
	}
	return d
}

// Dispatch handles one command from an authenticated channel. The response
// always carries the request's action and echoes its requestId verbatim so
// the client can correlate replies on the full-duplex channel.
func (d *Dispatcher) Dispatch(msg *protocol.ClientMessage, rec session.Record) protocol.CommandResponse {
	resp := protocol.CommandResponse{
		Type:      protocol.TypeCommandResponse,
		Action:    msg.Action,
		RequestID: msg.RequestID,
	}

	handler, ok := d.handlers[msg.Action]
	if !ok {
		resp.Error = "Unknown command"
		return resp
	}

	data, errMsg := handler(msg, rec)
	if errMsg != "" {
		resp.Error = errMsg
		return resp
	}

	resp.Success = true
	resp.Data = data
	return resp
}

func (d *Dispatcher) getStatus(msg *protocol.ClientMessage, rec session.Record) (interface{}, string) {
	now := time.Now()
	return StatusData{
		Status:         "ok",
		Uptime:         now.Sub(d.startedAt).Seconds(),
		ActiveSessions: d.sessions.Size(),
		ServerTime:     now.UTC().Format(time.RFC3339),
	}, ""
}

func (d *Dispatcher) listResources(msg *protocol.ClientMessage, rec session.Record) (interface{}, string) {
	return d.provider.List(), ""
}

func (d *Dispatcher) updateResource(msg *protocol.ClientMessage, rec session.Record) (interface{}, string) {
	if msg.ResourceID == "" || len(msg.Data) == 0 || string(msg.Data) == "null" {
		return nil, "Missing resourceId or data"
	}

	if err := d.provider.Update(msg.ResourceID, msg.Data); err != nil {
		return nil, fmt.Sprintf("Update failed: %v", err)
	}

	return UpdateData{
		ResourceID: msg.ResourceID,
		Message:    fmt.Sprintf("Resource %s updated by %s", msg.ResourceID, rec.Username),
	}, ""
}
