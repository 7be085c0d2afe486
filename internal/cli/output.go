package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/TimurManjosov/sprida/internal/evaluation"
	"github.com/TimurManjosov/sprida/internal/split"
	"github.com/TimurManjosov/sprida/internal/store"
)

// OutputFormat specifies the output format for CLI commands
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// AssignRow is one identifier of an offline assignment.
type AssignRow struct {
	ID    string `json:"id" yaml:"id"`
	Index int    `json:"index" yaml:"index"`
	Group string `json:"group,omitempty" yaml:"group,omitempty"`
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// HistogramRow compares observed and nominal shares of one group.
type HistogramRow struct {
	Group    string  `json:"group" yaml:"group"`
	Count    int     `json:"count" yaml:"count"`
	Share    float64 `json:"share" yaml:"share"`
	Expected float64 `json:"expected" yaml:"expected"`
}

// PrintSplits outputs splits in the specified format
func PrintSplits(w io.Writer, splits []store.Split, format OutputFormat) error {
	return render(w, format, map[string][]store.Split{"splits": splits}, func(t *tablewriter.Table) {
		t.Header("Key", "Groups", "Alphabet", "Salted", "Description", "Updated At")
		for _, s := range splits {
			alphabet := s.Alphabet
			if alphabet == "" {
				alphabet = "hex"
			}
			_ = t.Append(
				s.Key,
				formatGroups(s.Groups),
				truncate(alphabet, 20),
				strconv.FormatBool(s.Salt != ""),
				truncate(s.Description, 40),
				s.UpdatedAt.Format("2006-01-02 15:04"),
			)
		}
	})
}

// PrintSplit outputs a single split in the specified format
func PrintSplit(w io.Writer, s *store.Split, format OutputFormat) error {
	if format == FormatTable {
		return PrintSplits(w, []store.Split{*s}, format)
	}
	return render(w, format, s, nil)
}

// PrintAssignments outputs server side assignment results.
func PrintAssignments(w io.Writer, results []evaluation.Result, format OutputFormat) error {
	return render(w, format, map[string][]evaluation.Result{"assignments": results}, func(t *tablewriter.Table) {
		t.Header("Split", "Group", "Index", "Reason")
		for _, r := range results {
			reason := r.Reason
			if r.Error != "" {
				reason += ": " + r.Error
			}
			_ = t.Append(r.Key, r.Group, strconv.Itoa(r.Index), reason)
		}
	})
}

// PrintAssignRows outputs offline assignments.
func PrintAssignRows(w io.Writer, rows []AssignRow, format OutputFormat) error {
	return render(w, format, map[string][]AssignRow{"assignments": rows}, func(t *tablewriter.Table) {
		t.Header("ID", "Index", "Group", "Error")
		for _, r := range rows {
			_ = t.Append(r.ID, strconv.Itoa(r.Index), r.Group, r.Error)
		}
	})
}

// PrintHistogram outputs a group histogram.
func PrintHistogram(w io.Writer, rows []HistogramRow, rejected int, format OutputFormat) error {
	data := map[string]any{"groups": rows, "rejected": rejected}
	return render(w, format, data, func(t *tablewriter.Table) {
		t.Header("Group", "Count", "Share", "Expected")
		for _, r := range rows {
			_ = t.Append(r.Group, strconv.Itoa(r.Count), percent(r.Share), percent(r.Expected))
		}
		if rejected > 0 {
			_ = t.Append("(rejected)", strconv.Itoa(rejected), "", "")
		}
	})
}

func render(w io.Writer, format OutputFormat, data any, table func(*tablewriter.Table)) error {
	switch format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(data)
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		encoder.SetIndent(2)
		return encoder.Encode(data)
	case FormatTable:
		if table == nil {
			return fmt.Errorf("unsupported format: %s", format)
		}
		t := tablewriter.NewWriter(w)
		table(t)
		return t.Render()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func formatGroups(groups []split.Group) string {
	parts := make([]string, len(groups))
	for i, g := range groups {
		parts[i] = g.Name + "=" + strconv.FormatFloat(g.Weight, 'g', -1, 64)
	}
	return truncate(strings.Join(parts, ","), 40)
}

func percent(f float64) string {
	return strconv.FormatFloat(f*100, 'f', 2, 64) + "%"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
