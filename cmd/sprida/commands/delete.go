package commands

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete a split",
	Long: `Delete a split from the selected environment.

Examples:
  sprida delete checkout --env prod
  sprida delete checkout --env prod --force`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]

		c, effectiveEnv, err := newClient()
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		out := cmd.OutOrStdout()
		if !deleteForce && !quiet {
			fmt.Fprintf(out, "Are you sure you want to delete split '%s' from environment '%s'? (y/N): ", key, effectiveEnv)
			response, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil {
				return fmt.Errorf("failed to read confirmation: %w", err)
			}
			response = strings.ToLower(strings.TrimSpace(response))
			if response != "y" && response != "yes" {
				fmt.Fprintln(out, "Deletion cancelled")
				return nil
			}
		}

		if err := c.DeleteSplit(context.Background(), key); err != nil {
			return fmt.Errorf("failed to delete split: %w", err)
		}

		if !quiet {
			fmt.Fprintf(out, "Successfully deleted split '%s' from environment '%s'\n", key, effectiveEnv)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().BoolVar(&deleteForce, "force", false, "Skip confirmation prompt")
}
