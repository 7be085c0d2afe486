package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/sprida/internal/cli"
)

var assignCmd = &cobra.Command{
	Use:   "assign [id...]",
	Short: "Assign identifiers to groups locally",
	Long: `Assign identifiers to weighted groups without a server.
Identifiers come from the arguments, or from stdin one per line.

Examples:
  sprida assign a3273afc-004d-4433-b656-8cb069d7245b --weights 1,1
  sprida assign 0110 --alphabet 01 --weights 6,2 --names big,small
  sprida assign user-42 --salt checkout --weights 9,1 --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := offlineSplit()
		if err != nil {
			return err
		}
		ids, err := readIDs(args, cmd.InOrStdin())
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return fmt.Errorf("no identifiers given")
		}

		rows := make([]cli.AssignRow, len(ids))
		failed := 0
		for i, id := range ids {
			a, err := c.Assign(id)
			if err != nil {
				rows[i] = cli.AssignRow{ID: id, Index: -1, Error: err.Error()}
				failed++
				continue
			}
			rows[i] = cli.AssignRow{ID: id, Index: a.Index, Group: a.Group}
		}

		if !quiet {
			if err := cli.PrintAssignRows(cmd.OutOrStdout(), rows, outputFormat()); err != nil {
				return err
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d identifiers could not be assigned", failed, len(ids))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(assignCmd)
	addModelFlags(assignCmd)
}
