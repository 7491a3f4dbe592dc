package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/teemow/resender/internal/instrumentation"
	"github.com/teemow/resender/internal/server"
)

// startInstrumentation creates the OpenTelemetry provider for command from
// the environment and, when metricsAddr is set, the metrics server. The
// returned stop function shuts both down.
func startInstrumentation(ctx context.Context, command, metricsAddr string, health *server.HealthChecker) (*instrumentation.Provider, func(), error) {
	instrConfig, err := instrumentation.LoadConfig(os.Getenv)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid instrumentation configuration: %w", err)
	}
	instrConfig.ServiceVersion = version
	instrConfig.Command = command

	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}

	var metricsServer *server.MetricsServer
	if metricsAddr != "" && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    metricsAddr,
			Enabled:                 true,
			InstrumentationProvider: provider,
			Health:                  health,
		})
		if err != nil {
			_ = provider.Shutdown(ctx)
			return nil, nil, fmt.Errorf("failed to create metrics server: %w", err)
		}

		// Use ready channel to confirm metrics server started successfully
		metricsReady := make(chan struct{})
		metricsErr := make(chan error, 1)
		go func() {
			if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && err != http.ErrServerClosed {
				metricsErr <- err
			}
			close(metricsErr)
		}()

		select {
		case <-metricsReady:
			slog.Info("metrics server started", "addr", metricsServer.Addr())
		case err := <-metricsErr:
			_ = provider.Shutdown(ctx)
			return nil, nil, fmt.Errorf("metrics server failed to start: %w", err)
		case <-time.After(5 * time.Second):
			_ = provider.Shutdown(ctx)
			return nil, nil, fmt.Errorf("metrics server startup timed out")
		}
	}

	stop := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				slog.Warn("error during metrics server shutdown", "error", err)
			}
		}
		if err := provider.Shutdown(shutdownCtx); err != nil {
			slog.Warn("error during instrumentation shutdown", "error", err)
		}
	}
	return provider, stop, nil
}
