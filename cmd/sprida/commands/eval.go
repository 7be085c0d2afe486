package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/sprida/internal/cli"
	"github.com/TimurManjosov/sprida/internal/evaluation"
)

var evalKeys string

var evalCmd = &cobra.Command{
	Use:   "eval <id>",
	Short: "Ask the server which groups an identifier belongs to",
	Long: `Assign an identifier across the splits of the selected environment.

Examples:
  sprida eval a3273afc-004d-4433-b656-8cb069d7245b --env prod
  sprida eval user-42 --env prod --keys checkout,pricing --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := newClient()
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		var keys []string
		for _, k := range strings.Split(evalKeys, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}

		results, err := c.Assign(context.Background(), args[0], keys)
		if err != nil {
			return fmt.Errorf("failed to assign: %w", err)
		}

		if err := cli.PrintAssignments(cmd.OutOrStdout(), results, outputFormat()); err != nil {
			return err
		}
		for _, r := range results {
			if r.Reason != evaluation.ReasonAssigned {
				return fmt.Errorf("identifier could not be assigned in split '%s'", r.Key)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(evalCmd)
	evalCmd.Flags().StringVar(&evalKeys, "keys", "", "Comma separated split keys (default: all)")
}
