package commands

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/sprida/internal/split"
)

// offline model flags shared by assign and histogram
var (
	modelAlphabet        string
	modelCaseInsensitive bool
	modelSalt            string
	modelWeights         string
	modelNames           string
)

func addModelFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&modelAlphabet, "alphabet", "", "Identifier alphabet (default: hexadecimal)")
	cmd.Flags().BoolVar(&modelCaseInsensitive, "case-insensitive", false, "Lower-case identifiers before reading them")
	cmd.Flags().StringVar(&modelSalt, "salt", "", "Hash identifiers with this salt first")
	cmd.Flags().StringVar(&modelWeights, "weights", "1,1", "Comma separated group weights")
	cmd.Flags().StringVar(&modelNames, "names", "", "Comma separated group names (default: 0,1,...)")
}

// offlineSplit compiles the split described by the model flags.
func offlineSplit() (*split.Compiled, error) {
	weights, err := parseWeights(modelWeights)
	if err != nil {
		return nil, err
	}

	var names []string
	if modelNames != "" {
		names = strings.Split(modelNames, ",")
		if len(names) != len(weights) {
			return nil, fmt.Errorf("got %d names for %d weights", len(names), len(weights))
		}
	}

	groups := make([]split.Group, len(weights))
	for i, w := range weights {
		name := strconv.Itoa(i)
		if names != nil {
			name = strings.TrimSpace(names[i])
		}
		groups[i] = split.Group{Name: name, Weight: w}
	}

	return split.Compile(split.Definition{
		Key:             "cli",
		Alphabet:        modelAlphabet,
		CaseInsensitive: modelCaseInsensitive,
		Salt:            modelSalt,
		Groups:          groups,
	})
}

func parseWeights(s string) ([]float64, error) {
	var weights []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		w, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid weight %q: %w", part, err)
		}
		weights = append(weights, w)
	}
	return weights, nil
}

// readIDs returns args, or one identifier per non-empty line of r when args is empty.
func readIDs(args []string, r io.Reader) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	var ids []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimRight(scanner.Text(), "\r"); line != "" {
			ids = append(ids, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read identifiers: %w", err)
	}
	return ids, nil
}
