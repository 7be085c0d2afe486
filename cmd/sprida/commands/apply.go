package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/TimurManjosov/sprida/internal/split"
	"github.com/TimurManjosov/sprida/internal/store"
	"github.com/TimurManjosov/sprida/internal/validation"
)

var (
	applyDryRun bool
	applyForce  bool
)

var applyCmd = &cobra.Command{
	Use:   "apply <file>",
	Short: "Create or replace splits from a file",
	Long: `Create or replace the splits listed in a YAML or JSON file, in the
layout written by 'sprida export'. Every split is checked locally first.

Examples:
  sprida apply splits.yaml --env prod
  sprida apply splits.yaml --env staging --dry-run
  sprida apply splits.yaml --env prod --force`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}

		// YAML is a superset of JSON, one decoder covers both
		var file struct {
			Splits []store.UpsertParams `yaml:"splits"`
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return fmt.Errorf("failed to parse file: %w", err)
		}
		if len(file.Splits) == 0 {
			return fmt.Errorf("no splits found in file")
		}

		out := cmd.OutOrStdout()
		if err := checkSplits(file.Splits); err != nil {
			return err
		}

		if applyDryRun {
			fmt.Fprintln(out, "Dry run mode - the following splits would be applied:")
			for _, s := range file.Splits {
				fmt.Fprintf(out, "  - %s (%d groups)\n", s.Key, len(s.Groups))
			}
			return nil
		}

		c, effectiveEnv, err := newClient()
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		ctx := context.Background()
		succeeded, failed := 0, 0
		for _, s := range file.Splits {
			if verbose {
				fmt.Fprintf(cmd.ErrOrStderr(), "Applying split: %s\n", s.Key)
			}
			s.Env = effectiveEnv
			if _, err := c.UpsertSplit(ctx, s); err != nil {
				failed++
				fmt.Fprintf(cmd.ErrOrStderr(), "Failed to apply split '%s': %v\n", s.Key, err)
				if !applyForce {
					return fmt.Errorf("apply failed, use --force to continue on errors")
				}
				continue
			}
			succeeded++
		}

		if !quiet {
			fmt.Fprintf(out, "Apply complete: %d succeeded, %d failed\n", succeeded, failed)
		}
		if failed > 0 {
			return fmt.Errorf("apply completed with errors")
		}
		return nil
	},
}

// checkSplits runs the server side validation locally so a bad file fails
// before anything is written.
func checkSplits(splits []store.UpsertParams) error {
	seen := make(map[string]bool, len(splits))
	for _, s := range splits {
		if seen[s.Key] {
			return fmt.Errorf("split '%s' appears more than once", s.Key)
		}
		seen[s.Key] = true

		params := validation.SplitValidationParams{
			Key:             s.Key,
			Env:             "file",
			Description:     s.Description,
			Alphabet:        s.Alphabet,
			CaseInsensitive: s.CaseInsensitive,
			Salt:            s.Salt,
		}
		for _, g := range s.Groups {
			params.Groups = append(params.Groups, validation.GroupValidationParams{Name: g.Name, Weight: g.Weight})
		}
		if result := validation.ValidateSplit(params); !result.Valid {
			return fmt.Errorf("split '%s' is invalid: %v", s.Key, result.Errors)
		}
		if _, err := split.Compile(split.Definition{
			Key:             s.Key,
			Alphabet:        s.Alphabet,
			CaseInsensitive: s.CaseInsensitive,
			Salt:            s.Salt,
			Groups:          s.Groups,
		}); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(applyCmd)
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "Validate without applying")
	applyCmd.Flags().BoolVar(&applyForce, "force", false, "Continue on errors")
}
