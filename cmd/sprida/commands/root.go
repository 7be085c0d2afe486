package commands

import (
	"github.com/spf13/cobra"

	"github.com/TimurManjosov/sprida/internal/cli"
	"github.com/TimurManjosov/sprida/internal/client"
)

var (
	// Global flags
	baseURL string
	apiKey  string
	env     string
	format  string
	quiet   bool
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "sprida",
	Short: "Deterministic weighted group assignment",
	Long: `Sprida places identifiers into weighted groups deterministically.

Offline commands (assign, histogram) work on identifiers directly. The other
commands manage the splits of a sprida server.

Examples:
  sprida assign 5251410c-004e-41c1-87ce-52ef98ee8ba9 --weights 1,1
  cat ids.txt | sprida histogram --weights 9,1 --salt checkout
  sprida list --env prod
  sprida apply splits.yaml --env staging --dry-run
  sprida eval user-42 --env prod`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Base URL of the sprida API")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Admin API key for write operations")
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "Environment from the config file")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress output")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Verbose output")
}

// newClient resolves the target server from flags, environment and config file.
func newClient() (*client.Client, string, error) {
	envCfg, effectiveEnv, err := cli.GetEnvConfig(env, baseURL, apiKey)
	if err != nil {
		return nil, "", err
	}
	return client.NewClient(envCfg.BaseURL, envCfg.APIKey), effectiveEnv, nil
}

func outputFormat() cli.OutputFormat {
	return cli.OutputFormat(format)
}
