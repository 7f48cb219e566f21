package helpers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/onsi/gomega"

	syncapp "github.com/revenuleaks/billing-sync-server/internal/app"
	"github.com/revenuleaks/billing-sync-server/internal/config"
	"github.com/revenuleaks/billing-sync-server/internal/status"
)

// ServerTestHelper manages the sync API server lifecycle for testing
type ServerTestHelper struct {
	ctx        context.Context
	configPath string
	baseURL    string
	httpClient *http.Client
	app        *syncapp.SyncApp
	dataDir    string
	port       int
	token      string
}

// NewServerTestHelper creates a new server test helper
func NewServerTestHelper(ctx context.Context, configPath string, port int, dataDir string) *ServerTestHelper {
	return &ServerTestHelper{
		ctx:        ctx,
		configPath: configPath,
		baseURL:    fmt.Sprintf("http://localhost:%d", port),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		dataDir: dataDir,
		port:    port,
	}
}

// WithToken makes every request carry the given bearer token
func (s *ServerTestHelper) WithToken(token string) *ServerTestHelper {
	s.token = token
	return s
}

// StartServer builds and starts the sync API server programmatically
func (s *ServerTestHelper) StartServer() error {
	cfg, err := config.LoadConfig(config.WithConfigPath(s.configPath))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	app, err := syncapp.NewSyncApp(s.ctx,
		syncapp.WithConfig(cfg),
		syncapp.WithAddress(fmt.Sprintf(":%d", s.port)),
		syncapp.WithDataDirectory(s.dataDir),
	)
	if err != nil {
		return fmt.Errorf("failed to build app: %w", err)
	}

	s.app = app

	// Start the server in a goroutine (non-blocking)
	go func() {
		if err := app.Start(); err != nil {
			// Log error but don't fail the test here
			// The test will fail when it tries to connect
			fmt.Fprintf(os.Stderr, "Server start failed: %v\n", err)
		}
	}()

	return nil
}

// StopServer gracefully stops the sync API server
func (s *ServerTestHelper) StopServer() error {
	if s.app != nil {
		return s.app.Stop(5 * time.Second)
	}
	return nil
}

// WaitForServerReady waits for the server to be ready to accept requests
func (s *ServerTestHelper) WaitForServerReady(timeout time.Duration) {
	gomega.Eventually(func() error {
		resp, err := s.httpClient.Get(s.baseURL + "/health")
		if err != nil {
			return err
		}
		defer func() {
			_ = resp.Body.Close()
		}()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("server returned status %d", resp.StatusCode)
		}
		return nil
	}, timeout, 100*time.Millisecond).Should(gomega.Succeed(), "Server should be ready")
}

// WaitForStage polls the status endpoint until the account reaches the given
// stage, then returns the last observed status record.
func (s *ServerTestHelper) WaitForStage(accountID string, stage status.SyncStage, timeout time.Duration) status.SyncStatus {
	var last status.SyncStatus
	gomega.Eventually(func() (status.SyncStage, error) {
		resp, err := s.GetSyncStatus(accountID)
		if err != nil {
			return "", err
		}
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return "", fmt.Errorf("status endpoint returned %d", resp.StatusCode)
		}
		last = DecodeJSON[status.SyncStatus](resp)
		return last.Stage, nil
	}, timeout, 50*time.Millisecond).Should(gomega.Equal(stage),
		fmt.Sprintf("account %s should reach stage %q", accountID, stage))
	return last
}

// TriggerSync makes a POST request to /api/v0/sync
func (s *ServerTestHelper) TriggerSync(accountID string, force bool) (*http.Response, error) {
	body, err := json.Marshal(map[string]any{
		"account_id": accountID,
		"force":      force,
	})
	if err != nil {
		return nil, err
	}
	return s.post("/api/v0/sync", body)
}

// GetSyncStatus makes a GET request to /api/v0/sync/status
func (s *ServerTestHelper) GetSyncStatus(accountID string) (*http.Response, error) {
	return s.get("/api/v0/sync/status?account_id=" + url.QueryEscape(accountID))
}

// GetSignals makes a GET request to /api/v0/signals. A zero limit leaves the
// server default in place; an empty accountID lists signals for all accounts.
func (s *ServerTestHelper) GetSignals(accountID string, limit int) (*http.Response, error) {
	query := url.Values{}
	if accountID != "" {
		query.Set("account_id", accountID)
	}
	if limit > 0 {
		query.Set("limit", fmt.Sprintf("%d", limit))
	}
	path := "/api/v0/signals"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	return s.get(path)
}

// DetectSignals makes a POST request to /api/v0/signals/detect
func (s *ServerTestHelper) DetectSignals(accountID string) (*http.Response, error) {
	body, err := json.Marshal(map[string]any{
		"account_id": accountID,
	})
	if err != nil {
		return nil, err
	}
	return s.post("/api/v0/signals/detect", body)
}

// GetLatestMetrics makes a GET request to /api/v0/metrics
func (s *ServerTestHelper) GetLatestMetrics(accountID string) (*http.Response, error) {
	return s.get("/api/v0/metrics?account_id=" + url.QueryEscape(accountID))
}

// GetHealth makes a GET request to /health
func (s *ServerTestHelper) GetHealth() (*http.Response, error) {
	return s.get("/health")
}

// GetVersion makes a GET request to /version
func (s *ServerTestHelper) GetVersion() (*http.Response, error) {
	return s.get("/version")
}

// GetBaseURL returns the base URL of the server
func (s *ServerTestHelper) GetBaseURL() string {
	return s.baseURL
}

func (s *ServerTestHelper) get(path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(s.ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	s.applyAuth(req)
	return s.httpClient.Do(req)
}

func (s *ServerTestHelper) post(path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(s.ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	s.applyAuth(req)
	return s.httpClient.Do(req)
}

func (s *ServerTestHelper) applyAuth(req *http.Request) {
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
}

// DecodeJSON decodes the response body into T and closes it
func DecodeJSON[T any](resp *http.Response) T {
	defer func() {
		_ = resp.Body.Close()
	}()
	var out T
	gomega.Expect(json.NewDecoder(resp.Body).Decode(&out)).To(gomega.Succeed())
	return out
}

// ConfigOptions holds the knobs WriteConfigYAML exposes. Zero values fall
// back to the server defaults. Retries are always configured fast so failure
// specs do not sit out production backoff delays.
type ConfigOptions struct {
	AccountIDs       []string
	BillingURL       string
	PageSize         int
	FreshnessWindow  string
	DetectAfterSync  bool
	Workers          int
	QueueSize        int
	AutoSyncInterval string
	AuthToken        string
}

// WriteConfigYAML writes a sync server configuration file for testing and
// returns its path. Storage is always file-based; the data directory itself
// is passed to the app builder via WithDataDirectory, not the config file.
func WriteConfigYAML(dir string, opts ConfigOptions) string {
	configContent := fmt.Sprintf(`storage:
  type: file

billing:
  baseUrl: %s
  apiKey: sk_test_integration
  rateLimitRps: 100
  retry:
    maxRetries: 1
    baseDelay: 10ms
    maxDelay: 50ms
`, opts.BillingURL)

	if opts.PageSize > 0 {
		configContent += fmt.Sprintf(`  pageSize: %d
`, opts.PageSize)
	}

	syncBlock := ""
	if opts.Workers > 0 {
		syncBlock += fmt.Sprintf("  workers: %d\n", opts.Workers)
	}
	if opts.QueueSize > 0 {
		syncBlock += fmt.Sprintf("  queueSize: %d\n", opts.QueueSize)
	}
	if opts.FreshnessWindow != "" {
		syncBlock += fmt.Sprintf("  freshnessWindow: %s\n", opts.FreshnessWindow)
	}
	if opts.DetectAfterSync {
		syncBlock += "  detectAfterSync: true\n"
	}
	if syncBlock != "" {
		configContent += "\nsync:\n" + syncBlock
	}

	if opts.AuthToken != "" {
		tokenFile := filepath.Join(dir, "api-token")
		err := os.WriteFile(tokenFile, []byte(opts.AuthToken+"\n"), 0600)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		configContent += fmt.Sprintf("\nauth:\n  mode: token\n  tokenFile: %s\n", tokenFile)
	}

	configContent += "\naccounts:\n"
	for _, id := range opts.AccountIDs {
		configContent += fmt.Sprintf("  - id: %s\n", id)
		if opts.AutoSyncInterval != "" {
			configContent += fmt.Sprintf("    autoSync:\n      enabled: true\n      interval: %s\n", opts.AutoSyncInterval)
		}
	}

	configPath := filepath.Join(dir, "config.yaml")
	err := os.WriteFile(configPath, []byte(configContent), 0600)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	return configPath
}
