package gateway

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/thruflo/mcpgate/internal/logging"
	"github.com/thruflo/mcpgate/internal/protocol"
	"github.com/thruflo/mcpgate/internal/session"
)

// Reply texts for channel-level errors.
const (
	msgInvalidFormat   = "Invalid message format"
	msgUnknownOrNoAuth = "Unknown message type or not authenticated"
	msgInvalidToken    = "Invalid session token"
)

// connState tracks the per-channel authentication state machine.
type connState int

const (
	stateUnauthenticated connState = iota
	stateAuthenticated
)

// conn is one channel: a WebSocket connection bound to at most one session
// record. All message handling happens on the reader goroutine, so fields
// need no locking.
type conn struct {
	id     string
	ws     *websocket.Conn
	server *Server
	log    *logging.Logger

	state  connState
	record session.Record
}

func newConn(ws *websocket.Conn, s *Server) *conn {
	id := uuid.NewString()
	return &conn{
		id:     id,
		ws:     ws,
		server: s,
		log:    s.log.With("conn", id),
	}
}

// run processes messages in arrival order until the connection drops.
// Every message gets exactly one reply; protocol errors never close the
// channel, only transport errors and deadlines do.
func (c *conn) run() {
	defer c.ws.Close()

	if c.server.maxMessageSize > 0 {
		c.ws.SetReadLimit(c.server.maxMessageSize)
	}

	for {
		if c.server.readTimeout > 0 {
			c.ws.SetReadDeadline(time.Now().Add(c.server.readTimeout))
		}

		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn("read failed", "err", err)
			}
			return
		}

		if err := c.write(c.handle(data)); err != nil {
			c.log.Warn("write failed", "err", err)
			return
		}
	}
}

// handle maps one incoming payload to its reply.
func (c *conn) handle(data []byte) interface{} {
	msg, err := protocol.ParseClientMessage(data)
	if err != nil {
		c.log.Debug("malformed message", "err", err)
		return protocol.NewError(msgInvalidFormat)
	}

	switch msg.Type {
	case protocol.TypePing:
		// Pings are answered in any state.
		return protocol.NewPong(time.Now())

	case protocol.TypeAuth:
		return c.handleAuth(msg)

	case protocol.TypeCommand:
		if c.state != stateAuthenticated {
			return protocol.NewError(msgUnknownOrNoAuth)
		}
		return c.server.dispatcher.Dispatch(msg, c.record)

	default:
		return protocol.NewError(msgUnknownOrNoAuth)
	}
}

// handleAuth binds the channel to the session named by the token. A failed
// attempt leaves the channel state untouched so the client can retry.
func (c *conn) handleAuth(msg *protocol.ClientMessage) interface{} {
	rec, err := c.server.registry.Lookup(msg.SessionToken)
	if err != nil {
		c.log.Warn("channel auth rejected")
		return protocol.NewAuthFailure(msgInvalidToken)
	}

	c.state = stateAuthenticated
	c.record = rec
	c.log.Info("channel authenticated", "username", rec.Username)

	return protocol.NewAuthSuccess(rec.Username, rec.Permissions)
}

// write sends one reply, bounded by the write deadline.
func (c *conn) write(v interface{}) error {
	if c.server.writeTimeout > 0 {
		c.ws.SetWriteDeadline(time.Now().Add(c.server.writeTimeout))
	}
	return c.ws.WriteJSON(v)
}

// closeWithGoingAway tells the peer the server is shutting down.
func (c *conn) closeWithGoingAway() {
	deadline := time.Now().Add(time.Second)
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline)
	c.ws.Close()
}
