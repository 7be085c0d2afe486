package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/sprida/internal/cli"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all splits",
	Long: `List all splits served by the selected environment.

Examples:
  sprida list --env prod
  sprida list --env dev --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := newClient()
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		splits, etag, err := c.ListSplits(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list splits: %w", err)
		}

		if verbose {
			fmt.Fprintf(cmd.ErrOrStderr(), "snapshot %s, %d split(s)\n", etag, len(splits))
		}
		if quiet {
			return nil
		}
		return cli.PrintSplits(cmd.OutOrStdout(), splits, outputFormat())
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
