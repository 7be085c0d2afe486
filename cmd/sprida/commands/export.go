package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/TimurManjosov/sprida/internal/store"
)

var exportOutput string

// ExportFormat is the file layout shared by export and apply.
type ExportFormat struct {
	Splits []store.Split `yaml:"splits" json:"splits"`
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export splits to a file",
	Long: `Export all splits of the selected environment as YAML (default) or JSON.
The output can be fed back to 'sprida apply'.

Examples:
  sprida export --env prod --output splits.yaml
  sprida export --env prod --format json > splits.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := newClient()
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		splits, _, err := c.ListSplits(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list splits: %w", err)
		}
		for i := range splits {
			// environment and timestamps belong to the target server
			splits[i].Env = ""
			splits[i].UpdatedAt = time.Time{}
		}
		data := ExportFormat{Splits: splits}

		var output io.Writer = cmd.OutOrStdout()
		if exportOutput != "" && exportOutput != "-" {
			f, err := os.Create(exportOutput)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer f.Close()
			output = f
		}

		switch format {
		case "json":
			encoder := json.NewEncoder(output)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(data); err != nil {
				return fmt.Errorf("failed to encode JSON: %w", err)
			}
		case "yaml", "table":
			encoder := yaml.NewEncoder(output)
			defer encoder.Close()
			encoder.SetIndent(2)
			if err := encoder.Encode(data); err != nil {
				return fmt.Errorf("failed to encode YAML: %w", err)
			}
		default:
			return fmt.Errorf("unsupported export format: %s", format)
		}

		if exportOutput != "" && exportOutput != "-" && !quiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "Successfully exported %d split(s) to %s\n", len(splits), exportOutput)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")
}
