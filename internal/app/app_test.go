package app

import (
	"context"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revenuleaks/billing-sync-server/internal/config"
	pkgsync "github.com/revenuleaks/billing-sync-server/internal/sync"
	"github.com/revenuleaks/billing-sync-server/internal/sync/coordinator"
)

// mockCoordinator implements the coordinator.Coordinator interface for testing
type mockCoordinator struct {
	mu          sync.Mutex
	startCalled bool
	stopCalled  bool
	startErr    error
	stopErr     error
	startDelay  time.Duration
}

func (m *mockCoordinator) Start(ctx context.Context) error {
	m.mu.Lock()
	m.startCalled = true
	delay := m.startDelay
	err := m.startErr
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

func (m *mockCoordinator) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCalled = true
	return m.stopErr
}

func (m *mockCoordinator) wasStartCalled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startCalled
}

func (m *mockCoordinator) wasStopCalled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopCalled
}

// mockDispatcher implements the pkgsync.Dispatcher interface for testing
type mockDispatcher struct {
	mu          sync.Mutex
	startCalled bool
	stopCalled  bool
}

func (*mockDispatcher) Trigger(context.Context, string, bool) pkgsync.TriggerResult {
	return pkgsync.TriggerResult{}
}

func (m *mockDispatcher) Start(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startCalled = true
}

func (m *mockDispatcher) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCalled = true
}

func (m *mockDispatcher) wasStartCalled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startCalled
}

func (m *mockDispatcher) wasStopCalled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopCalled
}

// createTestApp creates a SyncApp with mocked components for testing
// This directly constructs the SyncApp without using NewSyncApp to avoid
// complex mock setup for the storage factory
func createTestApp(t *testing.T, addr string) *SyncApp {
	t.Helper()

	mockCoord := &mockCoordinator{}
	mockDisp := &mockDispatcher{}

	cfg := createTestAppConfig()

	ctx := context.Background()
	appCtx, cancel := context.WithCancel(ctx)

	// Build the HTTP server with test configuration
	appCfg := &syncAppConfig{
		config:         cfg,
		address:        addr,
		requestTimeout: 10 * time.Second,
		readTimeout:    10 * time.Second,
		writeTimeout:   15 * time.Second,
		idleTimeout:    60 * time.Second,
		authMiddleware: func(next http.Handler) http.Handler { return next },
	}

	components := &AppComponents{
		SyncCoordinator: mockCoord,
		Dispatcher:      mockDisp,
	}

	server, err := buildHTTPServer(appCfg, components)
	require.NoError(t, err)

	return &SyncApp{
		config:     cfg,
		components: components,
		httpServer: server,
		ctx:        appCtx,
		cancelFunc: cancel,
	}
}

// createTestAppConfig creates a minimal valid config for testing
func createTestAppConfig() *config.Config {
	return &config.Config{
		Billing: &config.BillingConfig{
			BaseURL: "https://billing.test.invalid",
			APIKey:  "sk_test_123",
		},
		Accounts: []config.AccountConfig{
			{
				ID: "acct_test",
				AutoSync: &config.AutoSyncConfig{
					Enabled:  true,
					Interval: "30m",
				},
			},
		},
		Auth: &config.AuthConfig{
			Mode: config.AuthModeNone,
		},
	}
}

func TestSyncApp_Start(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		setupApp   func(*testing.T) *SyncApp
		wantErr    bool
		errContain string
	}{
		{
			name: "successful start with ephemeral port",
			setupApp: func(t *testing.T) *SyncApp {
				t.Helper()
				return createTestApp(t, ":0")
			},
			wantErr: false,
		},
		{
			name: "successful start on localhost",
			setupApp: func(t *testing.T) *SyncApp {
				t.Helper()
				return createTestApp(t, "127.0.0.1:0")
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app := tt.setupApp(t)

			// Start server in goroutine
			errChan := make(chan error, 1)
			go func() {
				errChan <- app.Start()
			}()

			// Wait for server to start
			time.Sleep(100 * time.Millisecond)

			// Verify background components are running
			if !tt.wantErr {
				mockCoord := app.components.SyncCoordinator.(*mockCoordinator)
				assert.True(t, mockCoord.wasStartCalled(), "sync coordinator should be started")

				mockDisp := app.components.Dispatcher.(*mockDispatcher)
				assert.True(t, mockDisp.wasStartCalled(), "dispatcher should be started")
			}

			// Stop the server
			err := app.Stop(5 * time.Second)
			require.NoError(t, err)

			// Check Start() result
			select {
			case startErr := <-errChan:
				if tt.wantErr {
					require.Error(t, startErr)
					if tt.errContain != "" {
						assert.Contains(t, startErr.Error(), tt.errContain)
					}
				} else {
					require.NoError(t, startErr)
				}
			case <-time.After(5 * time.Second):
				t.Fatal("Start() did not return after Stop()")
			}
		})
	}
}

func TestSyncApp_StartWithListener(t *testing.T) {
	t.Parallel()

	app := createTestApp(t, ":0")

	// Create a listener to get an actual port
	listener, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	actualAddr := listener.Addr().String()
	listener.Close()

	// Update the server address to use the now-free port
	app.httpServer.Addr = actualAddr

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- app.Start()
	}()

	// Wait for server to start
	time.Sleep(100 * time.Millisecond)

	// Make a health check request
	resp, err := http.Get("http://" + actualAddr + "/health")
	if err == nil {
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}

	// Verify background components were started
	mockCoord := app.components.SyncCoordinator.(*mockCoordinator)
	assert.True(t, mockCoord.wasStartCalled(), "sync coordinator should be started")

	// Stop the server
	err = app.Stop(5 * time.Second)
	require.NoError(t, err)

	// Wait for Start() to return
	select {
	case startErr := <-errChan:
		require.NoError(t, startErr)
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after Stop()")
	}
}

func TestSyncApp_Stop(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		timeout  time.Duration
		setupApp func(*testing.T) *SyncApp
		wantErr  bool
		verifyFn func(*testing.T, *SyncApp)
	}{
		{
			name:    "graceful shutdown with normal timeout",
			timeout: 5 * time.Second,
			setupApp: func(t *testing.T) *SyncApp {
				t.Helper()
				return createTestApp(t, ":0")
			},
			wantErr: false,
			verifyFn: func(t *testing.T, app *SyncApp) {
				t.Helper()
				mockCoord := app.components.SyncCoordinator.(*mockCoordinator)
				assert.True(t, mockCoord.wasStopCalled(), "sync coordinator Stop should be called")

				mockDisp := app.components.Dispatcher.(*mockDispatcher)
				assert.True(t, mockDisp.wasStopCalled(), "dispatcher Stop should be called")
			},
		},
		{
			name:    "graceful shutdown with short timeout",
			timeout: 1 * time.Second,
			setupApp: func(t *testing.T) *SyncApp {
				t.Helper()
				return createTestApp(t, ":0")
			},
			wantErr: false,
			verifyFn: func(t *testing.T, app *SyncApp) {
				t.Helper()
				mockCoord := app.components.SyncCoordinator.(*mockCoordinator)
				assert.True(t, mockCoord.wasStopCalled(), "sync coordinator Stop should be called")
			},
		},
		{
			name:    "stop without starting first",
			timeout: 5 * time.Second,
			setupApp: func(t *testing.T) *SyncApp {
				t.Helper()
				return createTestApp(t, ":0")
			},
			wantErr: false,
			verifyFn: func(t *testing.T, app *SyncApp) {
				t.Helper()
				mockCoord := app.components.SyncCoordinator.(*mockCoordinator)
				assert.True(t, mockCoord.wasStopCalled(), "sync coordinator Stop should be called even without Start")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app := tt.setupApp(t)

			// For tests that need the server running first
			if tt.name != "stop without starting first" {
				errChan := make(chan error, 1)
				go func() {
					errChan <- app.Start()
				}()

				// Wait for server to start
				time.Sleep(100 * time.Millisecond)
			}

			// Call Stop
			err := app.Stop(tt.timeout)

			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}

			if tt.verifyFn != nil {
				tt.verifyFn(t, app)
			}
		})
	}
}

func TestSyncApp_StopIdempotent(t *testing.T) {
	t.Parallel()

	app := createTestApp(t, ":0")

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- app.Start()
	}()

	// Wait for server to start
	time.Sleep(100 * time.Millisecond)

	// First stop should succeed
	err1 := app.Stop(5 * time.Second)
	require.NoError(t, err1)

	// Wait for Start() to return
	select {
	case <-errChan:
		// Expected
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after first Stop()")
	}

	// Second stop should also succeed (idempotent)
	err2 := app.Stop(5 * time.Second)
	// Note: This may return an error if the server is already closed,
	// but it should not panic
	_ = err2
}

func TestSyncApp_StopWithNilCancelFunc(t *testing.T) {
	t.Parallel()

	app := createTestApp(t, ":0")

	// Set cancelFunc to nil to test nil safety
	app.cancelFunc = nil

	// Stop should handle nil cancelFunc gracefully
	err := app.Stop(5 * time.Second)
	// The server wasn't started, so shutdown should be quick
	require.NoError(t, err)
}

func TestSyncApp_GetConfig(t *testing.T) {
	t.Parallel()

	app := createTestApp(t, ":0")

	cfg := app.GetConfig()

	require.NotNil(t, cfg)
	require.Len(t, cfg.Accounts, 1)
	assert.Equal(t, "acct_test", cfg.Accounts[0].ID)
}

func TestSyncApp_GetHTTPServer(t *testing.T) {
	t.Parallel()

	app := createTestApp(t, ":8080")

	server := app.GetHTTPServer()

	require.NotNil(t, server)
	assert.Equal(t, ":8080", server.Addr)
}

func TestSyncApp_StartError_InvalidAddress(t *testing.T) {
	t.Parallel()

	// Create app with an invalid address (port already in use simulation)
	// First, occupy a port
	listener, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer listener.Close()
	occupiedAddr := listener.Addr().String()

	// Create app trying to use the same port
	app := createTestApp(t, occupiedAddr)

	// Start should fail because port is in use
	errChan := make(chan error, 1)
	go func() {
		errChan <- app.Start()
	}()

	select {
	case startErr := <-errChan:
		require.Error(t, startErr)
		assert.Contains(t, startErr.Error(), "HTTP server failed")
	case <-time.After(5 * time.Second):
		// If it doesn't fail quickly, stop and check
		app.Stop(1 * time.Second)
		t.Fatal("Expected Start() to fail due to port in use")
	}
}

// Verify the test doubles satisfy the component interfaces
var (
	_ coordinator.Coordinator = (*mockCoordinator)(nil)
	_ pkgsync.Dispatcher      = (*mockDispatcher)(nil)
)
