// Package gateway accepts persistent WebSocket channels, authenticates them
// against the session registry, and routes command messages to the
// dispatcher. Each channel is served by its own goroutine; messages on one
// channel are processed strictly in arrival order.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/thruflo/mcpgate/internal/command"
	"github.com/thruflo/mcpgate/internal/logging"
	"github.com/thruflo/mcpgate/internal/session"
)

// Server is the channel gateway.
type Server struct {
	port           int
	registry       session.Registry
	dispatcher     *command.Dispatcher
	readTimeout    time.Duration
	writeTimeout   time.Duration
	maxMessageSize int64
	log            *logging.Logger
	upgrader       websocket.Upgrader

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	started  bool
	conns    map[*conn]struct{}
}

// Config holds gateway configuration options.
type Config struct {
	// Port to listen on. 0 picks a random available port.
	Port int

	Registry   session.Registry
	Dispatcher *command.Dispatcher

	// ReadTimeout is the per-message read deadline; an idle channel is
	// closed when it elapses. Zero means no deadline.
	ReadTimeout time.Duration

	// WriteTimeout bounds each reply write. Zero means no deadline.
	WriteTimeout time.Duration

	// MaxMessageSize caps incoming messages in bytes. A channel sending
	// a larger message is closed by the transport. Zero means no cap.
	MaxMessageSize int64

	// Logger defaults to the package logger when nil.
	Logger *logging.Logger
}

// NewServer creates a new channel gateway.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if cfg.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}

	log := cfg.Logger
	if log == nil {
		log = logging.With("component", "gateway")
	}

	return &Server{
		port:           cfg.Port,
		registry:       cfg.Registry,
		dispatcher:     cfg.Dispatcher,
		readTimeout:    cfg.ReadTimeout,
		writeTimeout:   cfg.WriteTimeout,
		maxMessageSize: cfg.MaxMessageSize,
		log:            log,
		upgrader: websocket.Upgrader{
			// The channel is authenticated by session token, not origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[*conn]struct{}),
	}, nil
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// Start starts the gateway listener.
// The server runs until ctx is cancelled or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("server already started")
	}

	addr := fmt.Sprintf(":%d", s.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", s.handleChannel)

	s.server = &http.Server{Handler: mux}
	s.started = true
	s.mu.Unlock()

	s.log.Info("channel gateway listening", "addr", listener.Addr().String())

	err = s.server.Serve(listener)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop shuts down the gateway, sending a close frame on every live channel.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.started || s.server == nil {
		s.mu.Unlock()
		return nil
	}

	// Flip started first so an upgrade racing Stop is refused by addConn
	// instead of living on past Shutdown, which does not wait for
	// hijacked connections.
	server := s.server
	s.started = false

	for c := range s.conns {
		c.closeWithGoingAway()
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}

// ListenAddr returns the actual address the gateway is listening on.
// Useful when port 0 is used to get an available port.
// Returns empty string if not started.
func (s *Server) ListenAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// addConn registers a channel for shutdown close frames. Reports false when
// the gateway is stopping, in which case the caller must close the channel.
func (s *Server) addConn(c *conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) removeConn(c *conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

// handleChannel upgrades the request and runs the channel's message loop
// until the peer disconnects or a deadline fires. Session records are not
// revoked on disconnect; the same token can authenticate a new channel.
func (s *Server) handleChannel(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	c := newConn(ws, s)
	if !s.addConn(c) {
		c.closeWithGoingAway()
		return
	}
	defer s.removeConn(c)

	c.log.Info("channel open", "remote", r.RemoteAddr)
	c.run()
	c.log.Info("channel closed")
}
