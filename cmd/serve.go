package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/draftbox/internal/instrumentation"
	"github.com/teemow/draftbox/internal/logging"
	"github.com/teemow/draftbox/internal/server"
	"github.com/teemow/draftbox/internal/tools/gmail_tools"
)

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server (default: false)
	Enabled bool

	// Addr is the address for the metrics server (e.g., "127.0.0.1:9090")
	Addr string
}

type serveOptions struct {
	debug        bool
	credentials  clientFlags
	callbackAddr string
	metrics      MetricsConfig
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		Long: `Start the Model Context Protocol (MCP) server on stdin/stdout.

The server exposes tools to sign in to Gmail and to create drafts. Sign-in
opens a local callback listener on 127.0.0.1:3001 that completes the OAuth
redirect in the background and sends a notifications/gmail/auth_complete
notification when the token is stored.

Logs are written to stderr because stdout carries the MCP protocol.

Client Credentials:
  --client-id and --client-secret flags
  OR GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars (a .env file is read)
  Tool calls may pass client_id and client_secret to override them.

Metrics:
  --metrics enables a Prometheus endpoint on --metrics-addr.
  Can also use METRICS_ENABLED=true and METRICS_ADDR.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !opts.metrics.Enabled && os.Getenv("METRICS_ENABLED") == "true" {
				opts.metrics.Enabled = true
			}
			if !cmd.Flags().Changed("metrics-addr") {
				if addr := os.Getenv("METRICS_ADDR"); addr != "" {
					opts.metrics.Addr = addr
				}
			}
			if !cmd.Flags().Changed("callback-addr") {
				if addr := os.Getenv("DRAFTBOX_CALLBACK_ADDR"); addr != "" {
					opts.callbackAddr = addr
				}
			}

			return runServe(opts)
		},
	}

	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	opts.credentials.register(cmd)
	cmd.Flags().StringVar(&opts.callbackAddr, "callback-addr", defaultCallbackAddr, "Address of the OAuth callback listener. Must match the redirect URI registered with Google. Can also use DRAFTBOX_CALLBACK_ADDR env var.")
	cmd.Flags().BoolVar(&opts.metrics.Enabled, "metrics", false, "Serve Prometheus metrics and health endpoints. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&opts.metrics.Addr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

func runServe(opts serveOptions) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := logging.NewLogger(os.Stderr, opts.debug)

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig,
		instrumentation.WithLogger(logging.WithComponent(logger, "instrumentation")))
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Warn("Error during instrumentation shutdown", logging.Err(err))
		}
	}()

	serverContext := server.NewServerContext(shutdownCtx,
		server.WithDefaultCredentials(opts.credentials.credentials()),
		server.WithCallbackAddr(opts.callbackAddr),
		server.WithMetrics(provider.Metrics()),
		server.WithLogger(logger),
	)
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			logger.Warn("Error during server context shutdown", logging.Err(err))
		}
	}()

	health := server.NewHealthChecker(serverContext)
	if opts.metrics.Enabled {
		metricsServer, err := startMetricsServer(opts.metrics, provider, health, logger)
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(ctx); err != nil {
				logger.Warn("Error during metrics server shutdown", logging.Err(err))
			}
		}()
	}

	mcpSrv, err := newMCPServer(serverContext)
	if err != nil {
		return err
	}
	health.SetReady(true)

	logger.Info("Starting draftbox MCP server", "version", version, "transport", "stdio")
	return runStdioServer(shutdownCtx, mcpSrv, os.Stdin, os.Stdout, logger)
}

// newMCPServer creates the MCP server, registers the Gmail tools and routes
// auth completion events to connected clients.
func newMCPServer(sc *server.ServerContext) (*mcpserver.MCPServer, error) {
	mcpSrv := mcpserver.NewMCPServer("draftbox", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
	)

	if err := gmail_tools.RegisterGmailTools(mcpSrv, sc); err != nil {
		return nil, fmt.Errorf("failed to register Gmail tools: %w", err)
	}
	sc.SetNotifier(gmail_tools.NewMCPNotifier(mcpSrv))

	return mcpSrv, nil
}

func runStdioServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, stdin io.Reader, stdout io.Writer, logger *slog.Logger) error {
	stdioSrv := mcpserver.NewStdioServer(mcpSrv)
	stdioSrv.SetErrorLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError))

	err := stdioSrv.Listen(ctx, stdin, stdout)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

func startMetricsServer(cfg MetricsConfig, provider *instrumentation.Provider, health *server.HealthChecker, logger *slog.Logger) (*server.MetricsServer, error) {
	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    cfg.Addr,
		InstrumentationProvider: provider,
		Health:                  health,
		Logger:                  logging.WithComponent(logger, "metrics"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics server: %w", err)
	}

	// Use ready channel to confirm metrics server started successfully
	metricsReady := make(chan struct{})
	metricsErr := make(chan error, 1)
	go func() {
		if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && !errors.Is(err, http.ErrServerClosed) {
			metricsErr <- err
		}
		close(metricsErr)
	}()

	select {
	case <-metricsReady:
		logger.Info("Metrics server started", logging.Addr(metricsServer.Addr()))
		return metricsServer, nil
	case err := <-metricsErr:
		return nil, fmt.Errorf("metrics server failed to start: %w", err)
	case <-time.After(5 * time.Second):
		return nil, fmt.Errorf("metrics server startup timed out")
	}
}
