// Package config provides configuration loading and management for the sync server.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/revenuleaks/billing-sync-server/internal/telemetry"
)

const (
	// StorageTypeDatabase stores sync state, metric snapshots, and revenue
	// signals in PostgreSQL
	StorageTypeDatabase = "database"

	// StorageTypeFile stores sync state, metric snapshots, and revenue
	// signals on the local filesystem
	StorageTypeFile = "file"
)

const (
	// AuthModeNone disables authentication on the API
	AuthModeNone = "none"

	// AuthModeToken requires a static bearer token on every API request
	AuthModeToken = "token"
)

// EnvPrefix is the prefix for all environment variables read by the server.
const EnvPrefix = "RVL"

// Environment variables consulted for secrets that should never appear in
// the config file itself.
const (
	// EnvDatabasePassword is the fallback source for the database password
	EnvDatabasePassword = "RVL_DATABASE_PASSWORD"

	// EnvBillingAPIKey is the fallback source for the billing API key
	EnvBillingAPIKey = "RVL_BILLING_API_KEY"

	// EnvAPIToken is the fallback source for the API auth token
	EnvAPIToken = "RVL_API_TOKEN"
)

const (
	defaultFileStorageBaseDir = "./data"

	defaultPageSize     = 100
	defaultMaxPages     = 100
	defaultRateLimitRPS = 10

	defaultMaxRetries = 3
	defaultBaseDelay  = 1 * time.Second
	defaultMaxDelay   = 10 * time.Second

	defaultSyncWorkers      = 4
	defaultSyncQueueSize    = 64
	defaultFreshnessWindow  = 15 * time.Minute
	defaultAutoSyncInterval = 15 * time.Minute
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		// Validate the path to prevent path traversal attacks
		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// Storage selects where sync state, snapshots, and signals live
	Storage *StorageConfig `yaml:"storage,omitempty"`

	// Database holds PostgreSQL connection settings. Required when the
	// storage type is database.
	Database *DatabaseConfig `yaml:"database,omitempty"`

	// Billing configures the upstream billing API client
	Billing *BillingConfig `yaml:"billing"`

	// Sync configures the dispatcher and the sync pipeline
	Sync *SyncConfig `yaml:"sync,omitempty"`

	// Auth configures API authentication
	Auth *AuthConfig `yaml:"auth,omitempty"`

	// Telemetry configures tracing and metrics export
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`

	// Accounts lists the billing accounts this server synchronizes
	Accounts []AccountConfig `yaml:"accounts"`
}

// StorageConfig selects the persistence backend
type StorageConfig struct {
	// Type is "database" or "file". When empty the type is inferred:
	// database if a database section is present, file otherwise.
	Type string `yaml:"type,omitempty"`

	// File holds settings for file-based storage
	File *FileStorageConfig `yaml:"file,omitempty"`
}

// FileStorageConfig defines local filesystem storage settings
type FileStorageConfig struct {
	// BasePath is the directory that holds per-account status, snapshot,
	// and signal files
	BasePath string `yaml:"basePath,omitempty"`
}

// BillingConfig defines upstream billing API client settings
type BillingConfig struct {
	// BaseURL is the billing API base URL (scheme and host, no path)
	BaseURL string `yaml:"baseUrl"`

	// APIKeyFile is the path to a file containing the billing API key.
	// This is the recommended approach for production deployments.
	APIKeyFile string `yaml:"apiKeyFile,omitempty"`

	// APIKey is an inline API key. Intended for development only;
	// prefer APIKeyFile or the RVL_BILLING_API_KEY environment variable.
	APIKey string `yaml:"apiKey,omitempty"`

	// PageSize is the number of items requested per list page (1-100)
	PageSize int `yaml:"pageSize,omitempty"`

	// MaxPages caps the number of pages fetched per collection
	MaxPages int `yaml:"maxPages,omitempty"`

	// RateLimitRPS is the client-side request rate ceiling
	RateLimitRPS float64 `yaml:"rateLimitRps,omitempty"`

	// Retry configures the backoff executor for transient failures
	Retry *RetryConfig `yaml:"retry,omitempty"`
}

// RetryConfig defines backoff settings for transient billing API failures
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial attempt
	MaxRetries int `yaml:"maxRetries,omitempty"`

	// BaseDelay is the first retry delay (e.g., "1s")
	BaseDelay string `yaml:"baseDelay,omitempty"`

	// MaxDelay caps the exponential growth of retry delays (e.g., "10s")
	MaxDelay string `yaml:"maxDelay,omitempty"`
}

// SyncConfig defines dispatcher and pipeline settings
type SyncConfig struct {
	// Workers is the number of concurrent sync workers
	Workers int `yaml:"workers,omitempty"`

	// QueueSize bounds the dispatcher work queue
	QueueSize int `yaml:"queueSize,omitempty"`

	// FreshnessWindow is how recently an account must have synced for a
	// non-forced trigger to be skipped (e.g., "15m")
	FreshnessWindow string `yaml:"freshnessWindow,omitempty"`

	// DetectAfterSync runs signal detection at the end of every
	// successful sync run
	DetectAfterSync bool `yaml:"detectAfterSync,omitempty"`

	// SnapshotRetention is how long metric snapshots are kept before being
	// pruned after a successful sync (e.g., "720h"). Empty disables pruning.
	SnapshotRetention string `yaml:"snapshotRetention,omitempty"`
}

// AccountConfig defines a single billing account to synchronize
type AccountConfig struct {
	// ID is the billing account identifier
	ID string `yaml:"id"`

	// AutoSync configures periodic background syncs for this account
	AutoSync *AutoSyncConfig `yaml:"autoSync,omitempty"`
}

// AutoSyncConfig defines periodic background sync settings
type AutoSyncConfig struct {
	// Enabled turns periodic syncs on
	Enabled bool `yaml:"enabled"`

	// Interval is the time between periodic syncs (e.g., "2m")
	Interval string `yaml:"interval,omitempty"`
}

// AuthConfig defines API authentication settings
type AuthConfig struct {
	// Mode is "none" or "token"
	Mode string `yaml:"mode,omitempty"`

	// TokenFile is the path to a file containing the shared API token
	TokenFile string `yaml:"tokenFile,omitempty"`

	// PublicPaths lists additional paths that never require authentication
	PublicPaths []string `yaml:"publicPaths,omitempty"`
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing the database password
	// This is the recommended approach for production deployments
	// The file should contain only the password with optional trailing whitespace
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Password is an inline password. Intended for development only;
	// prefer PasswordFile or the RVL_DATABASE_PASSWORD environment variable.
	Password string `yaml:"password,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	// MaxConns is the maximum number of connections in the pool
	MaxConns int `yaml:"maxConns,omitempty"`

	// MinConns is the minimum number of idle connections in the pool
	MinConns int `yaml:"minConns,omitempty"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from the RVL_DATABASE_PASSWORD environment variable
// 3. The inline Password field
//
// The password from file will have leading/trailing whitespace trimmed.
func (d *DatabaseConfig) GetPassword() (string, error) {
	// Priority 1: Read from file if specified
	if d.PasswordFile != "" {
		// Use filepath.Clean to prevent path traversal attacks
		cleanPath := filepath.Clean(d.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", d.PasswordFile, err)
		}

		// Trim whitespace (including newlines) from file content
		password := strings.TrimSpace(string(data))
		return password, nil
	}

	// Priority 2: Check environment variable
	if envPassword := os.Getenv(EnvDatabasePassword); envPassword != "" {
		return envPassword, nil
	}

	// Priority 3: Inline config value
	if d.Password != "" {
		return d.Password, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or the %s environment variable",
		EnvDatabasePassword,
	)
}

// GetConnectionString builds a PostgreSQL connection string with proper password handling.
// The password is URL-escaped to handle special characters safely.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	return d.buildConnectionURL("postgres")
}

// GetMigrationConnectionString builds the connection string for the migration
// tooling, which registers its database driver under the pgx5 scheme.
func (d *DatabaseConfig) GetMigrationConnectionString() (string, error) {
	return d.buildConnectionURL("pgx5")
}

func (d *DatabaseConfig) buildConnectionURL(scheme string) (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	// URL-escape the password to handle special characters
	escapedPassword := url.QueryEscape(password)

	connString := fmt.Sprintf(
		"%s://%s:%s@%s:%d/%s?sslmode=%s",
		scheme,
		d.User,
		escapedPassword,
		d.Host,
		d.Port,
		d.Database,
		sslMode,
	)

	return connString, nil
}

// GetAPIKey returns the billing API key using the following priority:
// 1. Read from APIKeyFile if specified
// 2. Read from the RVL_BILLING_API_KEY environment variable
// 3. The inline APIKey field
func (b *BillingConfig) GetAPIKey() (string, error) {
	if b.APIKeyFile != "" {
		cleanPath := filepath.Clean(b.APIKeyFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read API key from file %s: %w", b.APIKeyFile, err)
		}

		return strings.TrimSpace(string(data)), nil
	}

	if envKey := os.Getenv(EnvBillingAPIKey); envKey != "" {
		return envKey, nil
	}

	if b.APIKey != "" {
		return b.APIKey, nil
	}

	return "", fmt.Errorf(
		"no billing API key configured: set apiKeyFile or the %s environment variable",
		EnvBillingAPIKey,
	)
}

// GetPageSize returns the configured page size, or 100 if not specified
func (b *BillingConfig) GetPageSize() int {
	if b == nil || b.PageSize == 0 {
		return defaultPageSize
	}
	return b.PageSize
}

// GetMaxPages returns the configured page ceiling, or 100 if not specified
func (b *BillingConfig) GetMaxPages() int {
	if b == nil || b.MaxPages == 0 {
		return defaultMaxPages
	}
	return b.MaxPages
}

// GetRateLimitRPS returns the configured request rate ceiling, or 10 if not specified
func (b *BillingConfig) GetRateLimitRPS() float64 {
	if b == nil || b.RateLimitRPS == 0 {
		return defaultRateLimitRPS
	}
	return b.RateLimitRPS
}

// GetMaxRetries returns the configured retry ceiling, or 3 if not specified
func (b *BillingConfig) GetMaxRetries() int {
	if b == nil || b.Retry == nil || b.Retry.MaxRetries == 0 {
		return defaultMaxRetries
	}
	return b.Retry.MaxRetries
}

// GetBaseDelay returns the configured first retry delay, or 1s if not specified
func (b *BillingConfig) GetBaseDelay() time.Duration {
	if b == nil || b.Retry == nil || b.Retry.BaseDelay == "" {
		return defaultBaseDelay
	}
	d, err := time.ParseDuration(b.Retry.BaseDelay)
	if err != nil {
		return defaultBaseDelay
	}
	return d
}

// GetMaxDelay returns the configured retry delay cap, or 10s if not specified
func (b *BillingConfig) GetMaxDelay() time.Duration {
	if b == nil || b.Retry == nil || b.Retry.MaxDelay == "" {
		return defaultMaxDelay
	}
	d, err := time.ParseDuration(b.Retry.MaxDelay)
	if err != nil {
		return defaultMaxDelay
	}
	return d
}

// GetToken returns the API auth token using the following priority:
// 1. Read from TokenFile if specified
// 2. Read from the RVL_API_TOKEN environment variable
func (a *AuthConfig) GetToken() (string, error) {
	if a != nil && a.TokenFile != "" {
		cleanPath := filepath.Clean(a.TokenFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read API token from file %s: %w", a.TokenFile, err)
		}

		return strings.TrimSpace(string(data)), nil
	}

	if envToken := os.Getenv(EnvAPIToken); envToken != "" {
		return envToken, nil
	}

	return "", fmt.Errorf(
		"no API token configured: set tokenFile or the %s environment variable",
		EnvAPIToken,
	)
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	// As of now, this is required because there's no other options to load
	// configuration. Once we add more options, we can remove this check.
	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	// Read the entire file into memory
	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML content
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	// Validate the config
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// GetStorageType returns the effective storage type. An explicit storage.type
// wins; otherwise the type is inferred from the presence of a database section.
func (c *Config) GetStorageType() string {
	if c.Storage != nil && c.Storage.Type != "" {
		return c.Storage.Type
	}
	if c.Database != nil {
		return StorageTypeDatabase
	}
	return StorageTypeFile
}

// GetFileStorageBaseDir returns the base directory for file-based storage,
// defaulting to "./data"
func (c *Config) GetFileStorageBaseDir() string {
	if c.Storage != nil && c.Storage.File != nil && c.Storage.File.BasePath != "" {
		return c.Storage.File.BasePath
	}
	return defaultFileStorageBaseDir
}

// GetAuthMode returns the effective auth mode, defaulting to "none"
func (c *Config) GetAuthMode() string {
	if c.Auth == nil || c.Auth.Mode == "" {
		return AuthModeNone
	}
	return c.Auth.Mode
}

// GetAccount returns the configuration for the named account
func (c *Config) GetAccount(id string) (*AccountConfig, bool) {
	for i := range c.Accounts {
		if c.Accounts[i].ID == id {
			return &c.Accounts[i], true
		}
	}
	return nil, false
}

// GetSyncWorkers returns the configured worker count, or 4 if not specified
func (c *Config) GetSyncWorkers() int {
	if c.Sync == nil || c.Sync.Workers == 0 {
		return defaultSyncWorkers
	}
	return c.Sync.Workers
}

// GetSyncQueueSize returns the configured queue bound, or 64 if not specified
func (c *Config) GetSyncQueueSize() int {
	if c.Sync == nil || c.Sync.QueueSize == 0 {
		return defaultSyncQueueSize
	}
	return c.Sync.QueueSize
}

// GetFreshnessWindow returns the configured freshness window, or 15m if not specified
func (c *Config) GetFreshnessWindow() time.Duration {
	if c.Sync == nil || c.Sync.FreshnessWindow == "" {
		return defaultFreshnessWindow
	}
	d, err := time.ParseDuration(c.Sync.FreshnessWindow)
	if err != nil {
		return defaultFreshnessWindow
	}
	return d
}

// DetectAfterSync reports whether signal detection runs after every
// successful sync
func (c *Config) DetectAfterSync() bool {
	return c.Sync != nil && c.Sync.DetectAfterSync
}

// GetSnapshotRetention returns how long metric snapshots are retained, or
// zero when pruning is disabled
func (c *Config) GetSnapshotRetention() time.Duration {
	if c.Sync == nil || c.Sync.SnapshotRetention == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Sync.SnapshotRetention)
	if err != nil {
		return 0
	}
	return d
}

// AutoSyncEnabled reports whether periodic background syncs are enabled for
// this account
func (a *AccountConfig) AutoSyncEnabled() bool {
	return a.AutoSync != nil && a.AutoSync.Enabled
}

// AutoSyncInterval returns the periodic sync interval, or 15m if not specified
func (a *AccountConfig) AutoSyncInterval() time.Duration {
	if a.AutoSync == nil || a.AutoSync.Interval == "" {
		return defaultAutoSyncInterval
	}
	d, err := time.ParseDuration(a.AutoSync.Interval)
	if err != nil {
		return defaultAutoSyncInterval
	}
	return d
}

// Validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := c.validateStorage(); err != nil {
		return err
	}

	if err := c.validateBilling(); err != nil {
		return err
	}

	if err := c.validateSync(); err != nil {
		return err
	}

	if err := c.validateAuth(); err != nil {
		return err
	}

	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry configuration is invalid: %w", err)
	}

	return c.validateAccounts()
}

// validateStorage checks the storage type and its backend requirements
func (c *Config) validateStorage() error {
	if c.Storage != nil {
		switch c.Storage.Type {
		case "", StorageTypeDatabase, StorageTypeFile:
		default:
			return fmt.Errorf("storage.type must be %q or %q, got %q",
				StorageTypeDatabase, StorageTypeFile, c.Storage.Type)
		}
	}

	if c.GetStorageType() == StorageTypeDatabase && c.Database == nil {
		return fmt.Errorf("database configuration is required when storage.type is %q", StorageTypeDatabase)
	}

	return nil
}

// validateBilling checks the billing API client settings
func (c *Config) validateBilling() error {
	if c.Billing == nil {
		return fmt.Errorf("billing configuration is required")
	}

	if c.Billing.BaseURL == "" {
		return fmt.Errorf("billing.baseUrl is required")
	}
	parsed, err := url.Parse(c.Billing.BaseURL)
	if err != nil {
		return fmt.Errorf("billing.baseUrl is not a valid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("billing.baseUrl must use http or https, got %q", parsed.Scheme)
	}

	if c.Billing.PageSize < 0 || c.Billing.PageSize > 100 {
		return fmt.Errorf("billing.pageSize must be between 1 and 100, got %d", c.Billing.PageSize)
	}
	if c.Billing.MaxPages < 0 {
		return fmt.Errorf("billing.maxPages must be positive, got %d", c.Billing.MaxPages)
	}
	if c.Billing.RateLimitRPS < 0 {
		return fmt.Errorf("billing.rateLimitRps must be positive, got %f", c.Billing.RateLimitRPS)
	}

	if retry := c.Billing.Retry; retry != nil {
		if retry.MaxRetries < 0 {
			return fmt.Errorf("billing.retry.maxRetries must be positive, got %d", retry.MaxRetries)
		}
		if err := validateDuration(retry.BaseDelay, "billing.retry.baseDelay"); err != nil {
			return err
		}
		if err := validateDuration(retry.MaxDelay, "billing.retry.maxDelay"); err != nil {
			return err
		}
	}

	return nil
}

// validateSync checks the dispatcher settings
func (c *Config) validateSync() error {
	if c.Sync == nil {
		return nil
	}

	if c.Sync.Workers < 0 {
		return fmt.Errorf("sync.workers must be positive, got %d", c.Sync.Workers)
	}
	if c.Sync.QueueSize < 0 {
		return fmt.Errorf("sync.queueSize must be positive, got %d", c.Sync.QueueSize)
	}

	if err := validateDuration(c.Sync.FreshnessWindow, "sync.freshnessWindow"); err != nil {
		return err
	}

	return validateDuration(c.Sync.SnapshotRetention, "sync.snapshotRetention")
}

// validateAuth checks the auth mode
func (c *Config) validateAuth() error {
	if c.Auth == nil {
		return nil
	}

	switch c.Auth.Mode {
	case "", AuthModeNone, AuthModeToken:
		return nil
	default:
		return fmt.Errorf("auth.mode must be %q or %q, got %q", AuthModeNone, AuthModeToken, c.Auth.Mode)
	}
}

// validateAccounts checks that at least one well-formed account is configured
func (c *Config) validateAccounts() error {
	if len(c.Accounts) == 0 {
		return fmt.Errorf("at least one account must be configured")
	}

	accountIDs := make(map[string]bool)
	for i, acct := range c.Accounts {
		prefix := fmt.Sprintf("account[%d]", i)

		if acct.ID == "" {
			return fmt.Errorf("%s: id is required", prefix)
		}

		// Account IDs become path components in file storage
		if strings.ContainsAny(acct.ID, `/\`) || strings.Contains(acct.ID, "..") {
			return fmt.Errorf("%s: id contains invalid characters: %s", prefix, acct.ID)
		}

		if accountIDs[acct.ID] {
			return fmt.Errorf("%s: duplicate account id '%s'", prefix, acct.ID)
		}
		accountIDs[acct.ID] = true

		if acct.AutoSync != nil {
			field := fmt.Sprintf("%s: autoSync.interval", prefix)
			if err := validateDuration(acct.AutoSync.Interval, field); err != nil {
				return err
			}
		}
	}

	return nil
}

// validateDuration checks that a non-empty duration string parses
func validateDuration(value, field string) error {
	if value == "" {
		return nil
	}
	if _, err := time.ParseDuration(value); err != nil {
		return fmt.Errorf("%s must be a valid duration (e.g., '30s', '15m'): %w", field, err)
	}
	return nil
}
