package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/resender/internal/config"
	"github.com/teemow/resender/internal/google"
	"github.com/teemow/resender/internal/instrumentation"
	"github.com/teemow/resender/internal/logging"
	"github.com/teemow/resender/internal/server"
	"github.com/teemow/resender/internal/tools/resender_tools"
)

type serveFlags struct {
	transport   string
	configFile  string
	yolo        bool
	metricsAddr string
}

func newServeCmd() *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the MCP server so an assistant can preview resend runs and
manage the exclusion list.

The server uses the stdio transport and the token stored by "resender auth".
Logs are written to stderr and LOG_FILE so they never mix with the protocol.

By default the server is read-only: it can preview runs and list exclusions.
Use --yolo to also expose resender_exclude, which changes the exclusion file.
Messages are never sent through the MCP server.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.transport, "transport", "stdio", "Transport type (stdio)")
	cmd.Flags().StringVar(&flags.configFile, "config", "", "Path to a YAML config file")
	cmd.Flags().BoolVar(&flags.yolo, "yolo", false, "Enable write operations (adding exclusions). Default is read-only mode.")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics and health checks on this address (e.g. :9090)")

	return cmd
}

func runServe(cmd *cobra.Command, flags serveFlags) error {
	if flags.transport != "stdio" {
		return fmt.Errorf("unsupported transport type: %s (supported: stdio)", flags.transport)
	}

	// Create a context that can be cancelled by signals
	ctx, cancel := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.LoadFromFile(flags.configFile)
	if err != nil {
		return err
	}

	slogger, closeLog, err := logging.Setup(logging.Options{
		Level:  cfg.LogLevel,
		File:   cfg.LogFile,
		Format: cfg.LogFormat,
		Stdout: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	tokens := google.NewFileTokenProvider(cfg.CredentialsFile, cfg.TokenFile)
	serverContext, err := server.NewServerContext(ctx, cfg, tokens)
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			slogger.Warn("error during server context shutdown", "error", err)
		}
	}()
	serverContext.SetLogger(logging.NewSlogAdapter(slogger))

	health := server.NewHealthChecker(serverContext)
	health.SetReady(false)
	provider, stop, err := startInstrumentation(ctx, "serve", flags.metricsAddr, health)
	if err != nil {
		return err
	}
	defer stop()

	// Set metrics and audit logger on server context for tool instrumentation
	if provider.Enabled() {
		serverContext.SetMetrics(provider.Metrics())
		serverContext.SetAuditLogger(instrumentation.NewAuditLoggerWithConfig(slogger, provider.Config().AuditLogging))
	}

	if !serverContext.HasToken() {
		slogger.Warn("no Google token found; run 'resender auth' before previewing", "token_file", cfg.TokenFile)
	}

	mcpSrv := mcpserver.NewMCPServer("resender", version,
		mcpserver.WithToolCapabilities(true),
	)

	// readOnly is the inverse of yolo
	readOnly := !flags.yolo
	if readOnly {
		slogger.Info("starting server in read-only mode (use --yolo to enable write operations)")
	} else {
		slogger.Info("starting server with write operations enabled")
	}

	if err := registerAllTools(mcpSrv, serverContext, readOnly); err != nil {
		return err
	}

	health.SetReady(true)
	return runStdioServer(ctx, mcpSrv)
}

func runStdioServer(ctx context.Context, mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	select {
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	case <-ctx.Done():
		return nil
	}
}

// registerAllTools registers all MCP tools.
func registerAllTools(mcpSrv *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	type toolRegistration struct {
		name     string
		register func() error
	}

	registrations := []toolRegistration{
		{
			name: "Resender",
			register: func() error {
				return resender_tools.RegisterResenderTools(mcpSrv, sc, readOnly)
			},
		},
	}

	for _, reg := range registrations {
		if err := reg.register(); err != nil {
			return fmt.Errorf("failed to register %s: %w", reg.name, err)
		}
	}

	return nil
}
