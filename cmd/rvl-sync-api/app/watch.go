package app

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/revenuleaks/billing-sync-server/internal/config"
	"github.com/revenuleaks/billing-sync-server/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch a sync run from the terminal",
	Long: `Watch polls the sync status endpoint and renders live progress in the
terminal until the current run completes or fails.

Keys:
  s  trigger a sync for the account
  r  refresh the status immediately
  q  quit`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().String("server", "http://localhost:8080", "Base URL of the sync API server")
	watchCmd.Flags().String("account", "", "Billing account ID to watch (required)")
	watchCmd.Flags().String("token", "", "API token (defaults to the "+config.EnvAPIToken+" environment variable)")

	if err := watchCmd.MarkFlagRequired("account"); err != nil {
		panic(err)
	}
}

func runWatch(cmd *cobra.Command, _ []string) error {
	client, account, err := newWatchClient(cmd)
	if err != nil {
		return err
	}

	model := watch.NewModel(client, account)
	if _, err := tea.NewProgram(model).Run(); err != nil {
		return fmt.Errorf("watch UI failed: %w", err)
	}
	return nil
}

// newWatchClient builds a sync API client from the shared --server, --account,
// and --token flags. The token falls back to the environment when the flag is
// not set.
func newWatchClient(cmd *cobra.Command) (*watch.HTTPClient, string, error) {
	server, err := cmd.Flags().GetString("server")
	if err != nil {
		return nil, "", fmt.Errorf("failed to get server flag: %w", err)
	}

	account, err := cmd.Flags().GetString("account")
	if err != nil {
		return nil, "", fmt.Errorf("failed to get account flag: %w", err)
	}

	token, err := cmd.Flags().GetString("token")
	if err != nil {
		return nil, "", fmt.Errorf("failed to get token flag: %w", err)
	}
	if token == "" {
		token = os.Getenv(config.EnvAPIToken)
	}

	var opts []watch.ClientOption
	if token != "" {
		opts = append(opts, watch.WithToken(token))
	}

	client, err := watch.NewClient(server, opts...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create sync API client: %w", err)
	}

	return client, account, nil
}
