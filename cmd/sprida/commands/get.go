package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/sprida/internal/cli"
)

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a split by key",
	Long: `Show one split.

Examples:
  sprida get checkout --env prod
  sprida get checkout --env prod --format yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := newClient()
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		s, err := c.GetSplit(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("failed to get split: %w", err)
		}

		return cli.PrintSplit(cmd.OutOrStdout(), s, outputFormat())
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}
