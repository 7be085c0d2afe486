package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/sprida/internal/cli"
	"github.com/TimurManjosov/sprida/internal/grouping"
)

var histogramCmd = &cobra.Command{
	Use:   "histogram [id...]",
	Short: "Show how identifiers spread over groups",
	Long: `Assign many identifiers and compare each group's observed share with
its nominal share. Identifiers too short for the weights are counted as rejected.

Examples:
  cat user_ids.txt | sprida histogram --weights 50,30,20
  cat user_ids.txt | sprida histogram --salt checkout --weights 9,1 --names on,off`,
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

		counts := make([]int, c.Groups())
		rejected := 0
		for _, id := range ids {
			a, err := c.Assign(id)
			if err != nil {
				if errors.Is(err, grouping.ErrInsufficientEntropy) {
					rejected++
					continue
				}
				return err
			}
			counts[a.Index]++
		}

		assigned := len(ids) - rejected
		rows := make([]cli.HistogramRow, c.Groups())
		for i := range rows {
			rows[i] = cli.HistogramRow{Group: c.GroupName(i), Count: counts[i], Expected: c.Share(i)}
			if assigned > 0 {
				rows[i].Share = float64(counts[i]) / float64(assigned)
			}
		}

		return cli.PrintHistogram(cmd.OutOrStdout(), rows, rejected, outputFormat())
	},
}

func init() {
	rootCmd.AddCommand(histogramCmd)
	addModelFlags(histogramCmd)
}
