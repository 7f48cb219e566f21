package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	syncapp "github.com/revenuleaks/billing-sync-server/internal/app"
	"github.com/revenuleaks/billing-sync-server/internal/config"
	"github.com/revenuleaks/billing-sync-server/internal/telemetry"
	"github.com/revenuleaks/billing-sync-server/internal/versions"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the billing sync API server",
	Long: `Start the billing sync API server.

The server requires a configuration file (--config) that specifies:
- Upstream billing API credentials and paging limits
- The accounts to synchronize and their sync schedules
- Storage backend (PostgreSQL or local files)
- Authentication and telemetry settings

See examples/ directory for sample configurations.`,
	RunE: runServe,
}

const (
	defaultGracefulTimeout   = 30 * time.Second // Kubernetes-friendly shutdown time
	telemetryShutdownTimeout = 5 * time.Second  // Flush pending spans and metrics on exit
)

func init() {
	serveCmd.Flags().String("address", ":8080", "Address to listen on")
	serveCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")
	serveCmd.Flags().String("data-dir", "", "Override the base directory for file storage")

	err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address"))
	if err != nil {
		slog.Error("Failed to bind address flag", "error", err)
		os.Exit(1)
	}
	err = viper.BindPFlag("config", serveCmd.Flags().Lookup("config"))
	if err != nil {
		slog.Error("Failed to bind config flag", "error", err)
		os.Exit(1)
	}

	// Mark config as required
	if err := serveCmd.MarkFlagRequired("config"); err != nil {
		slog.Error("Failed to mark config flag as required", "error", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()
	address := viper.GetString("address")

	slog.Info("Starting sync API server", "address", address)

	// Load and validate configuration (required)
	configPath := viper.GetString("config")
	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Info("Loaded configuration",
		"path", configPath,
		"storage", cfg.GetStorageType(),
		"auth", cfg.GetAuthMode(),
		"accounts", len(cfg.Accounts))

	// Initialize telemetry before building the app so its providers can be wired in.
	// The service version defaults to the build version unless the config pins one.
	if cfg.Telemetry != nil && cfg.Telemetry.ServiceVersion == "" {
		cfg.Telemetry.ServiceVersion = versions.GetVersionInfo().Version
	}
	tel, err := telemetry.New(ctx, telemetry.WithTelemetryConfig(cfg.Telemetry))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shut down telemetry", "error", err)
		}
	}()

	opts := []syncapp.SyncAppOptions{
		syncapp.WithConfig(cfg),
		syncapp.WithAddress(address),
	}
	if cfg.Telemetry != nil && cfg.Telemetry.Enabled {
		opts = append(opts,
			syncapp.WithMeterProvider(tel.MeterProvider()),
			syncapp.WithTracerProvider(tel.TracerProvider()),
		)
		// The scrape handler only exists for the Prometheus exporter
		if handler := tel.MetricsHandler(); handler != nil {
			opts = append(opts, syncapp.WithMetricsHandler(handler))
		}
	}
	if dataDir, err := cmd.Flags().GetString("data-dir"); err == nil && dataDir != "" {
		opts = append(opts, syncapp.WithDataDirectory(dataDir))
	}

	application, err := syncapp.NewSyncApp(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	// Start server in goroutine so shutdown signals can be handled
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- application.Start()
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case sig := <-quit:
		slog.Info("Received shutdown signal", "signal", sig.String())
	}

	return application.Stop(defaultGracefulTimeout)
}
