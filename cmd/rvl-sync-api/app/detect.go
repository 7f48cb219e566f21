package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/revenuleaks/billing-sync-server/internal/config"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Run signal detection for an account",
	Long: `Run revenue signal detection against the latest stored snapshots for an
account and print the inserted signals as JSON. Detection is idempotent:
re-running it over the same data inserts nothing new.`,
	RunE: runDetect,
}

func init() {
	detectCmd.Flags().String("server", "http://localhost:8080", "Base URL of the sync API server")
	detectCmd.Flags().String("account", "", "Billing account ID to detect signals for (required)")
	detectCmd.Flags().String("token", "", "API token (defaults to the "+config.EnvAPIToken+" environment variable)")

	if err := detectCmd.MarkFlagRequired("account"); err != nil {
		panic(err)
	}
}

func runDetect(cmd *cobra.Command, _ []string) error {
	client, account, err := newWatchClient(cmd)
	if err != nil {
		return err
	}

	result, err := client.DetectSignals(context.Background(), account)
	if err != nil {
		return fmt.Errorf("signal detection failed: %w", err)
	}

	slog.Info("Signal detection complete", "account", result.AccountID, "inserted", result.Inserted)

	// JSON goes to stdout so it can be piped; logs stay on stderr
	output, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format detection result: %w", err)
	}
	fmt.Println(string(output))
	return nil
}
