// Package evaluation assigns one identifier across the splits of a snapshot.
//
// All functions are pure: they read compiled splits and return results, with
// no I/O and no global state. Per-split failures are reported inside the
// Result instead of aborting the whole evaluation, so one split whose model
// cannot read an identifier does not hide the others.
package evaluation

import (
	"errors"
	"sort"

	"github.com/TimurManjosov/sprida/internal/grouping"
	"github.com/TimurManjosov/sprida/internal/split"
)

// Reasons explain how a Result was produced.
const (
	ReasonAssigned            = "ASSIGNED"
	ReasonInsufficientEntropy = "INSUFFICIENT_ENTROPY"
	ReasonError               = "ERROR"
)

// Result is the outcome of one split for one identifier.
type Result struct {
	Key    string `json:"key"`
	Group  string `json:"group,omitempty"`
	Index  int    `json:"index"`
	Reason string `json:"reason"`
	Error  string `json:"error,omitempty"`
}

// EvaluateSplit assigns id with c. Index is -1 when no group could be chosen.
func EvaluateSplit(c *split.Compiled, id string) Result {
	a, err := c.Assign(id)
	if err != nil {
		reason := ReasonError
		if errors.Is(err, grouping.ErrInsufficientEntropy) {
			reason = ReasonInsufficientEntropy
		}
		return Result{Key: c.Key(), Index: -1, Reason: reason, Error: err.Error()}
	}
	return Result{Key: c.Key(), Group: a.Group, Index: a.Index, Reason: ReasonAssigned}
}

// EvaluateAll assigns id across splits, ordered by key.
//
// When keys is empty every split is evaluated; otherwise only the listed ones,
// and keys that do not exist are skipped.
func EvaluateAll(splits map[string]*split.Compiled, id string, keys []string) []Result {
	if len(keys) == 0 {
		keys = make([]string, 0, len(splits))
		for k := range splits {
			keys = append(keys, k)
		}
	} else {
		keys = append([]string(nil), keys...)
	}
	sort.Strings(keys)

	results := make([]Result, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		c, ok := splits[key]
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		results = append(results, EvaluateSplit(c, id))
	}
	return results
}
