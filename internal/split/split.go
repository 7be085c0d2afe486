// Package split turns named split definitions into ready-to-use assigners.
// A split pairs a grouping model with a list of named, weighted groups:
//   - Same ID always lands in the same group for a given definition
//   - Group shares follow the weights for uniformly random IDs
//   - A non-empty salt hashes IDs first, so non-random IDs (user-42) spread evenly
//     and different salts give independent splits of the same population
package split

import (
	"errors"
	"fmt"
	"strings"

	"github.com/TimurManjosov/sprida/internal/grouping"
)

// ErrSaltWithAlphabet is returned when a salt is combined with a custom alphabet.
// Hashed IDs are hex digests and only make sense with the default alphabet.
var ErrSaltWithAlphabet = errors.New("salt requires the default alphabet")

// Group is one named output of a split.
type Group struct {
	Name   string  `json:"name" yaml:"name"`
	Weight float64 `json:"weight" yaml:"weight"`
}

// Definition describes how IDs are split into groups.
type Definition struct {
	Key             string  `json:"key" yaml:"key"`
	Alphabet        string  `json:"alphabet,omitempty" yaml:"alphabet,omitempty"` // empty means hexadecimal
	CaseInsensitive bool    `json:"caseInsensitive,omitempty" yaml:"caseInsensitive,omitempty"`
	Salt            string  `json:"salt,omitempty" yaml:"salt,omitempty"`
	Groups          []Group `json:"groups" yaml:"groups"`
}

// Assignment is the group an ID was placed in.
type Assignment struct {
	Split string `json:"split"`
	ID    string `json:"id"`
	Index int    `json:"index"`
	Group string `json:"group"`
}

// Compiled is a Definition with its model built. It is immutable and safe for
// concurrent use.
type Compiled struct {
	key     string
	model   *grouping.Model
	weights []float64
	names   []string
}

// NewModel builds the model a definition with these settings uses.
//
//   - alphabet "" : hexadecimal, always case-insensitive
//   - salt != ""  : IDs are replaced by their salted hash before reading
//   - caseInsensitive : IDs and the alphabet are lower-cased, so "ABCD" reads
//     both "abcd" and "ABCD"
func NewModel(alphabet string, caseInsensitive bool, salt string) (*grouping.Model, error) {
	if salt != "" && alphabet != "" {
		return nil, ErrSaltWithAlphabet
	}
	if alphabet == "" {
		if salt == "" {
			return grouping.DefaultModel, nil
		}
		var pre grouping.Normalizer = grouping.Identity
		if caseInsensitive {
			pre = grouping.Lowercase
		}
		return grouping.BuildModel(grouping.HexAlphabet,
			grouping.WithNormalizer(grouping.Chain(pre, grouping.Hashed(salt))))
	}
	if caseInsensitive {
		return grouping.BuildModel(strings.ToLower(alphabet), grouping.WithNormalizer(grouping.Lowercase))
	}
	return grouping.BuildModel(alphabet)
}

// Compile builds the model for def and checks its weights.
func Compile(def Definition) (*Compiled, error) {
	model, err := NewModel(def.Alphabet, def.CaseInsensitive, def.Salt)
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", def.Key, err)
	}

	weights := make([]float64, len(def.Groups))
	names := make([]string, len(def.Groups))
	for i, g := range def.Groups {
		weights[i] = g.Weight
		names[i] = g.Name
	}
	if err := grouping.ValidateWeights(weights); err != nil {
		return nil, fmt.Errorf("split %s: %w", def.Key, err)
	}

	return &Compiled{key: def.Key, model: model, weights: weights, names: names}, nil
}

// Key returns the split key.
func (c *Compiled) Key() string { return c.key }

// Model returns the model IDs are read with.
func (c *Compiled) Model() *grouping.Model { return c.model }

// Groups returns the number of groups.
func (c *Compiled) Groups() int { return len(c.weights) }

// GroupName returns the name of group i.
func (c *Compiled) GroupName(i int) string { return c.names[i] }

// Assign places id into one of the split's groups.
func (c *Compiled) Assign(id string) (Assignment, error) {
	idx, err := c.model.Assign(c.weights, id)
	if err != nil {
		return Assignment{}, fmt.Errorf("split %s: %w", c.key, err)
	}
	return Assignment{Split: c.key, ID: id, Index: idx, Group: c.names[idx]}, nil
}

// Share returns the nominal fraction of IDs group i receives, weight over the
// sum of weights. Group 0 can end up slightly above it because of rounding.
func (c *Compiled) Share(i int) float64 {
	var sum float64
	for _, w := range c.weights {
		sum += w
	}
	return c.weights[i] / sum
}
