package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/revenuleaks/billing-sync-server/internal/api"
	v0 "github.com/revenuleaks/billing-sync-server/internal/api/v0"
	"github.com/revenuleaks/billing-sync-server/internal/app/storage"
	"github.com/revenuleaks/billing-sync-server/internal/auth"
	"github.com/revenuleaks/billing-sync-server/internal/billing"
	"github.com/revenuleaks/billing-sync-server/internal/config"
	"github.com/revenuleaks/billing-sync-server/internal/signals"
	pkgsync "github.com/revenuleaks/billing-sync-server/internal/sync"
	"github.com/revenuleaks/billing-sync-server/internal/sync/coordinator"
	"github.com/revenuleaks/billing-sync-server/internal/telemetry"
)

const (
	defaultHTTPAddress    = ":8080"
	defaultRequestTimeout = 10 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 15 * time.Second
	defaultIdleTimeout    = 60 * time.Second
)

// defaultPublicPaths are paths that never require authentication
var defaultPublicPaths = []string{"/health", "/readiness", "/version", "/metrics", "/openapi.json"}

// SyncAppOptions is a function that configures the sync app builder
type SyncAppOptions func(*syncAppConfig) error

// syncAppConfig builds a SyncApp using the builder pattern.
// It supports dependency injection for testing while providing sensible defaults for production
type syncAppConfig struct {
	config *config.Config

	// Optional component overrides (primarily for testing)
	billingClient  billing.Client
	syncManager    pkgsync.Manager
	storageFactory storage.Factory

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration

	// Data directory override for file storage. Empty means use the
	// configured base directory.
	dataDir string

	// Auth components
	authMiddleware func(http.Handler) http.Handler

	// Telemetry components
	meterProvider  metric.MeterProvider
	metricsHandler http.Handler
	tracerProvider trace.TracerProvider
}

func baseConfig(opts ...SyncAppOptions) (*syncAppConfig, error) {
	cfg := &syncAppConfig{
		address:        defaultHTTPAddress,
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// NewSyncApp creates a new sync server application from the given options
func NewSyncApp(
	ctx context.Context,
	opts ...SyncAppOptions,
) (*SyncApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	// Create storage factory (single decision point for DB vs File)
	// This factory creates all storage-dependent components
	if cfg.storageFactory == nil {
		cfg.storageFactory, err = storage.NewStorageFactory(ctx, cfg.config, cfg.dataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage factory: %w", err)
		}
	}

	// Ensure cleanup happens on error
	var cleanupNeeded = true
	defer func() {
		if cleanupNeeded && cfg.storageFactory != nil {
			cfg.storageFactory.Cleanup()
		}
	}()

	// Build sync components using factory
	components, err := buildSyncComponents(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build sync components: %w", err)
	}

	// Build auth middleware (if not injected)
	if cfg.authMiddleware == nil {
		cfg.authMiddleware, err = auth.NewAuthMiddleware(cfg.config)
		if err != nil {
			return nil, fmt.Errorf("failed to build auth middleware: %w", err)
		}
	}

	// Build HTTP server
	httpServer, err := buildHTTPServer(cfg, components)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	// Create application context
	appCtx, cancel := context.WithCancel(ctx)

	// Cleanup is now handled by the app, not in defer
	cleanupNeeded = false

	cancelFunc := func() {
		if cfg.storageFactory != nil {
			cfg.storageFactory.Cleanup()
		}
		cancel()
	}

	return &SyncApp{
		config:     cfg.config,
		components: components,
		httpServer: httpServer,
		ctx:        appCtx,
		cancelFunc: cancelFunc,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		parts := strings.SplitN(addr, ":", 2)
		host := parts[0]
		port := parts[1]

		if port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares sets custom HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithDataDirectory overrides the base directory for file storage
func WithDataDirectory(dir string) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.dataDir = dir
		return nil
	}
}

// WithStorageFactory allows injecting a custom storage factory (for testing)
func WithStorageFactory(f storage.Factory) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.storageFactory = f
		return nil
	}
}

// WithBillingClient allows injecting a custom billing client (for testing)
func WithBillingClient(c billing.Client) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.billingClient = c
		return nil
	}
}

// WithSyncManager allows injecting a custom sync manager (for testing)
func WithSyncManager(sm pkgsync.Manager) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.syncManager = sm
		return nil
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider for sync and HTTP metrics
func WithMeterProvider(mp metric.MeterProvider) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.meterProvider = mp
		return nil
	}
}

// WithMetricsHandler mounts a Prometheus scrape handler on /metrics
func WithMetricsHandler(h http.Handler) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.metricsHandler = h
		return nil
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider for HTTP request tracing
func WithTracerProvider(tp trace.TracerProvider) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.tracerProvider = tp
		return nil
	}
}

// buildSyncComponents builds the billing client, stores, dispatcher, and coordinator
func buildSyncComponents(
	ctx context.Context,
	b *syncAppConfig,
) (*AppComponents, error) {
	slog.Info("Initializing sync components")

	// Create storage-dependent components using the factory
	stateService, err := b.storageFactory.CreateStateService(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create state service: %w", err)
	}

	snapshots, err := b.storageFactory.CreateSnapshotStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot store: %w", err)
	}

	signalStore, err := b.storageFactory.CreateSignalStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create signal store: %w", err)
	}

	detection := signals.NewService(snapshots, signalStore)

	// Build sync manager unless one was injected
	if b.syncManager == nil {
		if b.billingClient == nil {
			b.billingClient, err = buildBillingClient(b.config)
			if err != nil {
				return nil, fmt.Errorf("failed to create billing client: %w", err)
			}
		}

		var managerOpts []pkgsync.ManagerOption
		if b.tracerProvider != nil {
			managerOpts = append(managerOpts, pkgsync.WithTracer(b.tracerProvider.Tracer(pkgsync.TracerName)))
		}

		b.syncManager = pkgsync.NewDefaultSyncManager(
			b.config,
			b.billingClient,
			stateService,
			snapshots,
			detection,
			managerOpts...,
		)
	}

	// Create dispatcher options for metrics
	var dispatchOpts []pkgsync.DispatcherOption

	if b.meterProvider != nil {
		syncMetrics, err := telemetry.NewSyncMetrics(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create sync metrics: %w", err)
		}
		if syncMetrics != nil {
			dispatchOpts = append(dispatchOpts, pkgsync.WithSyncMetrics(syncMetrics))
			slog.Info("Sync metrics enabled")
		}

		signalMetrics, err := telemetry.NewSignalMetrics(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create signal metrics: %w", err)
		}
		if signalMetrics != nil {
			dispatchOpts = append(dispatchOpts, pkgsync.WithSignalMetrics(signalMetrics))
			slog.Info("Signal metrics enabled")
		}
	}

	dispatcher := pkgsync.NewDispatcher(b.config, b.syncManager, stateService, dispatchOpts...)

	// Create coordinator for scheduled account syncs
	syncCoordinator := coordinator.New(dispatcher, stateService, b.config)
	slog.Info("Sync components initialized successfully")

	return &AppComponents{
		SyncCoordinator: syncCoordinator,
		Dispatcher:      dispatcher,
		StateService:    stateService,
		Snapshots:       snapshots,
		Signals:         signalStore,
		Detection:       detection,
	}, nil
}

// buildBillingClient builds the upstream billing API client from configuration
func buildBillingClient(cfg *config.Config) (billing.Client, error) {
	if cfg.Billing == nil {
		return nil, fmt.Errorf("billing configuration is required")
	}

	apiKey, err := cfg.Billing.GetAPIKey()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve billing API key: %w", err)
	}

	return billing.NewClient(billing.ClientConfig{
		BaseURL:      cfg.Billing.BaseURL,
		APIKey:       apiKey,
		PageSize:     cfg.Billing.GetPageSize(),
		MaxPages:     cfg.Billing.GetMaxPages(),
		RateLimitRPS: cfg.Billing.GetRateLimitRPS(),
		Retry: billing.RetryOptions{
			MaxRetries: cfg.Billing.GetMaxRetries(),
			BaseDelay:  cfg.Billing.GetBaseDelay(),
			MaxDelay:   cfg.Billing.GetMaxDelay(),
		},
	})
}

// buildHTTPServer builds the HTTP server with router and middleware
func buildHTTPServer(
	b *syncAppConfig,
	components *AppComponents,
) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	// Use default middlewares if not provided
	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	// Add metrics middleware if meter provider is configured
	// This should be added early in the chain to capture all requests
	if b.meterProvider != nil {
		metricsMiddleware, err := telemetry.MetricsMiddleware(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
		}
		if metricsMiddleware != nil {
			// Prepend metrics middleware to capture all requests including those rejected by auth
			b.middlewares = append([]func(http.Handler) http.Handler{metricsMiddleware}, b.middlewares...)
			slog.Info("HTTP metrics middleware enabled")
		}
	}

	// Add tracing middleware if a tracer provider is configured
	if b.tracerProvider != nil {
		tracingMiddleware := telemetry.TracingMiddleware(b.tracerProvider)
		b.middlewares = append([]func(http.Handler) http.Handler{tracingMiddleware}, b.middlewares...)
		slog.Info("HTTP tracing middleware enabled")
	}

	// Create auth middleware that bypasses public paths
	publicPaths := defaultPublicPaths
	if b.config != nil && b.config.Auth != nil && len(b.config.Auth.PublicPaths) > 0 {
		publicPaths = append(publicPaths, b.config.Auth.PublicPaths...)
	}
	authMw := auth.WrapWithPublicPaths(b.authMiddleware, publicPaths)
	b.middlewares = append(b.middlewares, authMw)

	serverOpts := []api.ServerOption{
		api.WithMiddlewares(b.middlewares...),
		api.WithReadinessChecker(b.storageFactory),
	}
	if b.metricsHandler != nil {
		serverOpts = append(serverOpts, api.WithMetricsHandler(b.metricsHandler))
	}

	// Create router with middlewares
	router := api.NewServer(v0.Dependencies{
		Config:     b.config,
		Dispatcher: components.Dispatcher,
		State:      components.StateService,
		Snapshots:  components.Snapshots,
		Signals:    components.Signals,
		Detection:  components.Detection,
	}, serverOpts...)

	// Create HTTP server
	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}
