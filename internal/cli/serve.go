package cli

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/thruflo/mcpgate/internal/auth"
	"github.com/thruflo/mcpgate/internal/command"
	"github.com/thruflo/mcpgate/internal/config"
	"github.com/thruflo/mcpgate/internal/gateway"
	"github.com/thruflo/mcpgate/internal/logging"
	"github.com/thruflo/mcpgate/internal/server"
	"github.com/thruflo/mcpgate/internal/session"
)

var (
	serveConfigPath  string
	serveAuthPort    int
	serveChannelPort int
	serveLogLevel    string
)

// sweepInterval is how often expired sessions are evicted from the registry.
const sweepInterval = time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the login API and channel gateway",
	Long: `Starts both servers: the HTTP login API (POST /mcp/auth) and the
WebSocket channel gateway (/mcp). Runs until interrupted.

Example:
  mcpgate serve
  mcpgate serve --config mcpgate.yaml
  mcpgate serve --auth-port 9080 --channel-port 9081`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "mcpgate.yaml", "path to config file")
	serveCmd.Flags().IntVar(&serveAuthPort, "auth-port", 0, "login API port (overrides config)")
	serveCmd.Flags().IntVar(&serveChannelPort, "channel-port", 0, "channel gateway port (overrides config)")
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(serveConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyServeFlags(cmd, cfg)

	logging.SetLevel(logging.ParseLevel(cfg.LogLevel))

	verifier, err := buildVerifier(cfg.Auth)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := session.NewMemoryRegistry(cfg.Auth.TokenTTL.Std())
	registry.StartSweep(ctx, sweepInterval)

	dispatcher := command.NewDispatcher(registry, command.NewStaticProvider())

	gw, err := gateway.NewServer(&gateway.Config{
		Port:           cfg.Channel.Port,
		Registry:       registry,
		Dispatcher:     dispatcher,
		ReadTimeout:    cfg.Channel.ReadTimeout.Std(),
		WriteTimeout:   cfg.Channel.WriteTimeout.Std(),
		MaxMessageSize: cfg.Channel.MaxMessageSize,
	})
	if err != nil {
		return fmt.Errorf("failed to create channel gateway: %w", err)
	}

	api, err := server.NewServer(&server.Config{
		Port:        cfg.Auth.Port,
		ChannelPort: cfg.Channel.Port,
		WSEndpoint:  cfg.Channel.Endpoint,
		Verifier:    verifier,
		Registry:    registry,
		RateLimit: server.RateLimit{
			MaxAttempts: cfg.Auth.RateLimit.MaxAttempts,
			Window:      cfg.Auth.RateLimit.Window.Std(),
			BlockAfter:  cfg.Auth.RateLimit.BlockAfter,
			BlockTime:   cfg.Auth.RateLimit.BlockTime.Std(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create login API: %w", err)
	}

	errCh := make(chan error, 2)
	go func() { errCh <- api.Start(ctx) }()
	go func() { errCh <- gw.Start(ctx) }()

	// Print the bound addresses rather than the configured ports, so
	// port 0 shows the port that was actually picked.
	waitForListeners(api.ListenAddr, gw.ListenAddr)
	if addr := api.ListenAddr(); addr != "" {
		fmt.Printf("Login API:       http://%s/mcp/auth\n", bannerAddr(addr))
	}
	if addr := gw.ListenAddr(); addr != "" {
		fmt.Printf("Channel gateway: ws://%s/mcp\n", bannerAddr(addr))
	}

	var runErr error
	select {
	case <-ctx.Done():
		fmt.Println("\nShutting down...")
	case runErr = <-errCh:
	}

	if err := api.Stop(); err != nil {
		logging.Error("failed to stop login API", "err", err)
	}
	if err := gw.Stop(); err != nil {
		logging.Error("failed to stop channel gateway", "err", err)
	}

	return runErr
}

// waitForListeners waits briefly for both servers to bind their listeners.
// A server that failed to start is reported through errCh, not here.
func waitForListeners(addrs ...func() string) {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ready := true
		for _, addr := range addrs {
			if addr() == "" {
				ready = false
			}
		}
		if ready {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// bannerAddr rewrites a bound listener address like "[::]:8081" into a
// host:port suitable for the startup banner.
func bannerAddr(addr string) string {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return "localhost:" + port
}

// applyServeFlags overlays explicitly-set flags onto the loaded config.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("auth-port") {
		cfg.Auth.Port = serveAuthPort
	}
	if cmd.Flags().Changed("channel-port") {
		cfg.Channel.Port = serveChannelPort
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = serveLogLevel
	}
}

// buildVerifier constructs the credential verifier named by the auth policy.
func buildVerifier(cfg config.AuthConfig) (auth.Verifier, error) {
	switch cfg.Policy {
	case config.PolicyOpen:
		return auth.OpenPolicy{}, nil
	case config.PolicyUsers:
		store, err := auth.LoadUserStore(cfg.UsersFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load users file: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown auth policy %q", cfg.Policy)
	}
}
