package app

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/revenuleaks/billing-sync-server/database"
)

// writeMigrateTestConfig writes a config file pointing at the given test
// database and returns its path. The password goes through a password file so
// ambient environment variables cannot interfere with the connection.
func writeMigrateTestConfig(t *testing.T, connStr string) string {
	t.Helper()

	parsed, err := url.Parse(connStr)
	require.NoError(t, err)

	port := 5432
	if parsed.Port() != "" {
		_, err = fmt.Sscanf(parsed.Port(), "%d", &port)
		require.NoError(t, err)
	}

	password, _ := parsed.User.Password()

	dir := t.TempDir()
	passwordFile := filepath.Join(dir, "dbpass")
	require.NoError(t, os.WriteFile(passwordFile, []byte(password), 0o600))

	content := fmt.Sprintf(`storage:
  type: database
database:
  host: %s
  port: %d
  user: %s
  passwordFile: %s
  database: %s
  sslMode: disable
billing:
  baseUrl: https://billing.test.invalid
  apiKey: sk_test_migrate
auth:
  mode: none
accounts:
  - id: acct_migrate_test
`, parsed.Hostname(), port, parsed.User.Username(), passwordFile, strings.TrimPrefix(parsed.Path, "/"))

	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))
	return configPath
}

// newMigrateTestCmd builds a command carrying the flags the migrate handlers
// read. The --yes flag is always set so no test ever blocks on a prompt.
func newMigrateTestCmd(configPath string, numSteps uint) *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().Bool("yes", true, "")
	cmd.Flags().Uint("num-steps", numSteps, "")
	cmd.Flags().String("config", configPath, "")
	return cmd
}

func TestRunMigrateUpAndDown(t *testing.T) {
	t.Parallel()

	connStr, cleanup := database.SetupTestDBConnString(t)
	t.Cleanup(cleanup)

	configPath := writeMigrateTestConfig(t, connStr)

	// The test database starts fully migrated, so the first up is a no-op
	require.NoError(t, runMigrateUp(newMigrateTestCmd(configPath, 0), nil))

	m, err := database.NewFromConnectionString(connStr)
	require.NoError(t, err)
	t.Cleanup(func() { closeMigrator(m) })

	version, dirty, err := m.Version()
	require.NoError(t, err)
	require.False(t, dirty)
	require.NotZero(t, version)
	fullVersion := version

	// Revert everything, then reapply
	require.NoError(t, runMigrateDown(newMigrateTestCmd(configPath, 0), nil))

	_, _, err = m.Version()
	require.Error(t, err, "after a full down no schema version should remain")

	require.NoError(t, runMigrateUp(newMigrateTestCmd(configPath, 0), nil))

	version, dirty, err = m.Version()
	require.NoError(t, err)
	require.False(t, dirty)
	require.Equal(t, fullVersion, version)
}

func TestRunMigrateDownSingleStep(t *testing.T) {
	t.Parallel()

	connStr, cleanup := database.SetupTestDBConnString(t)
	t.Cleanup(cleanup)

	configPath := writeMigrateTestConfig(t, connStr)

	m, err := database.NewFromConnectionString(connStr)
	require.NoError(t, err)
	t.Cleanup(func() { closeMigrator(m) })

	before, dirty, err := m.Version()
	require.NoError(t, err)
	require.False(t, dirty)

	require.NoError(t, runMigrateDown(newMigrateTestCmd(configPath, 1), nil))

	after, dirty, err := m.Version()
	require.NoError(t, err)
	require.False(t, dirty)
	require.Less(t, after, before)

	require.NoError(t, runMigrateUp(newMigrateTestCmd(configPath, 0), nil))

	restored, dirty, err := m.Version()
	require.NoError(t, err)
	require.False(t, dirty)
	require.Equal(t, before, restored)
}

func TestRunMigrateUpMissingDatabaseConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `billing:
  baseUrl: https://billing.test.invalid
  apiKey: sk_test_migrate
auth:
  mode: none
accounts:
  - id: acct_migrate_test
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))

	err := runMigrateUp(newMigrateTestCmd(configPath, 0), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "database configuration is required")
}
