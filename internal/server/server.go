// Package server provides the HTTP login API. It verifies credentials,
// issues session tokens through the session registry, and tells clients
// where to open the WebSocket channel.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/thruflo/mcpgate/internal/auth"
	"github.com/thruflo/mcpgate/internal/logging"
	"github.com/thruflo/mcpgate/internal/session"
)

// defaultPermissions is the permission set stamped on every issued session.
// The demo server has no real authorization model behind it.
var defaultPermissions = []string{"read", "write"}

// Server is the HTTP login API server.
type Server struct {
	port        int
	channelPort int
	wsEndpoint  string
	verifier    auth.Verifier
	registry    session.Registry
	limiter     *rateLimiter
	log         *logging.Logger
	startedAt   time.Time

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	started  bool
}

// Config holds login API configuration options.
type Config struct {
	// Port to listen on. 0 picks a random available port.
	Port int

	// ChannelPort is used to derive the advertised WebSocket endpoint
	// when WSEndpoint is empty.
	ChannelPort int

	// WSEndpoint, when set, is advertised verbatim in login responses.
	WSEndpoint string

	Verifier auth.Verifier
	Registry session.Registry

	// RateLimit tunes login throttling. Zero value means defaults.
	RateLimit RateLimit

	// Logger defaults to the package logger when nil.
	Logger *logging.Logger
}

// NewServer creates a new login API server.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Verifier == nil {
		return nil, errors.New("verifier is required")
	}
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}

	log := cfg.Logger
	if log == nil {
		log = logging.With("component", "authapi")
	}

	return &Server{
		port:        cfg.Port,
		channelPort: cfg.ChannelPort,
		wsEndpoint:  cfg.WSEndpoint,
		verifier:    cfg.Verifier,
		registry:    cfg.Registry,
		limiter:     newRateLimiter(cfg.RateLimit),
		log:         log,
		startedAt:   time.Now(),
	}, nil
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// Start starts the HTTP server.
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
	s.setupRoutes(mux)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	s.started = true
	s.mu.Unlock()

	go s.cleanupLoop(ctx)

	s.log.Info("login API listening", "addr", listener.Addr().String())

	err = s.server.Serve(listener)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	s.started = false
	return nil
}

// ListenAddr returns the actual address the server is listening on.
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

// cleanupLoop periodically prunes rate limiter state.
func (s *Server) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.limiter.cleanup()
		}
	}
}

// setupRoutes configures the HTTP routes.
func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/mcp/auth", s.handleLogin)
	mux.HandleFunc("/mcp/health", s.handleHealth)
	mux.HandleFunc("/", s.handleNotFound)
}

// apiResponse is the common envelope for login API responses.
type apiResponse struct {
	Success      bool   `json:"success"`
	SessionToken string `json:"sessionToken,omitempty"`
	WSEndpoint   string `json:"wsEndpoint,omitempty"`
	Message      string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// handleNotFound answers every unrecognized route, any method.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, apiResponse{Message: "Endpoint not found"})
}

// loginRequest is the body of POST /mcp/auth.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleLogin handles POST /mcp/auth: verify credentials, issue a session
// token, and point the client at the channel endpoint.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.handleNotFound(w, r)
		return
	}

	ip := clientIP(r)
	if allowed, retryAfter := s.limiter.check(ip); !allowed {
		s.log.Warn("login throttled", "ip", ip, "retry_after", retryAfter.String())
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds()+1)))
		writeJSON(w, http.StatusTooManyRequests, apiResponse{Message: "Too many attempts"})
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Message: "Invalid request format"})
		return
	}

	if err := s.verifier.Verify(req.Username, req.Password); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.limiter.recordFailure(ip)
			s.log.Warn("login rejected", "ip", ip, "username", req.Username)
			writeJSON(w, http.StatusUnauthorized, apiResponse{Message: "Invalid credentials"})
			return
		}
		s.log.Error("credential verification failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, apiResponse{Message: "Internal server error"})
		return
	}

	token, _, err := s.registry.Issue(req.Username, defaultPermissions)
	if err != nil {
		s.log.Error("failed to issue session", "err", err)
		writeJSON(w, http.StatusInternalServerError, apiResponse{Message: "Internal server error"})
		return
	}

	s.limiter.recordSuccess(ip)
	s.log.Info("session issued", "username", req.Username, "ip", ip)

	writeJSON(w, http.StatusOK, apiResponse{
		Success:      true,
		SessionToken: token,
		WSEndpoint:   s.endpointFor(r),
	})
}

// endpointFor resolves the WebSocket endpoint advertised to the client:
// the configured endpoint when set, otherwise derived from the request's
// host and the channel port.
func (s *Server) endpointFor(r *http.Request) string {
	if s.wsEndpoint != "" {
		return s.wsEndpoint
	}

	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("ws://%s/mcp", net.JoinHostPort(host, strconv.Itoa(s.channelPort)))
}

// healthData is the body of GET /mcp/health.
type healthData struct {
	Status         string  `json:"status"`
	Uptime         float64 `json:"uptime"`
	ActiveSessions int     `json:"activeSessions"`
}

// handleHealth is a public liveness endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.handleNotFound(w, r)
		return
	}

	writeJSON(w, http.StatusOK, healthData{
		Status:         "ok",
		Uptime:         time.Since(s.startedAt).Seconds(),
		ActiveSessions: s.registry.Size(),
	})
}
