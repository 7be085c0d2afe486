package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/sprida/internal/auth"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage server API keys",
}

var keysGenerateCmd = &cobra.Command{
	Use:   "generate <name>",
	Short: "Generate an API key and its API_KEYS entry",
	Long: `Generate a random API key. The key is printed once; the server only
needs the name:hash entry, appended to its API_KEYS setting.

Examples:
  sprida keys generate ci`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if name == "" || strings.ContainsAny(name, ",: \t") {
			return fmt.Errorf("invalid key name %q: commas, colons and spaces are not allowed", name)
		}

		key, err := auth.GenerateAPIKey()
		if err != nil {
			return err
		}
		hash, err := auth.HashAPIKey(key)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if quiet {
			fmt.Fprintln(out, key)
			return nil
		}
		fmt.Fprintf(out, "API key:        %s\n", key)
		fmt.Fprintf(out, "API_KEYS entry: %s:%s\n", name, hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysGenerateCmd)
}
