package store

import (
	"context"
	"errors"
	"time"

	"github.com/TimurManjosov/sprida/internal/split"
)

// ErrNotFound is returned when a split does not exist in the requested environment.
var ErrNotFound = errors.New("split not found")

// Store defines the interface for split persistence operations.
// Implementations must be thread-safe and support concurrent access.
type Store interface {
	// ListSplits retrieves all splits for the given environment.
	// Returns an empty slice if no splits are found.
	ListSplits(ctx context.Context, env string) ([]Split, error)

	// GetSplit retrieves a single split by environment and key.
	// Returns ErrNotFound if the split does not exist.
	GetSplit(ctx context.Context, env, key string) (*Split, error)

	// UpsertSplit creates or updates a split.
	UpsertSplit(ctx context.Context, params UpsertParams) (*Split, error)

	// DeleteSplit removes a split by key and environment.
	// Returns no error if the split doesn't exist (idempotent).
	DeleteSplit(ctx context.Context, env, key string) error

	// Close releases any resources held by the store.
	// After Close is called, the store should not be used.
	Close() error
}

// Split is a persisted split definition.
type Split struct {
	Key             string        `json:"key" yaml:"key"`
	Description     string        `json:"description" yaml:"description,omitempty"`
	Alphabet        string        `json:"alphabet,omitempty" yaml:"alphabet,omitempty"`
	CaseInsensitive bool          `json:"caseInsensitive,omitempty" yaml:"caseInsensitive,omitempty"`
	Salt            string        `json:"salt,omitempty" yaml:"salt,omitempty"`
	Groups          []split.Group `json:"groups" yaml:"groups"`
	Env             string        `json:"env" yaml:"env,omitempty"`
	UpdatedAt       time.Time     `json:"updatedAt" yaml:"updatedAt,omitempty"`
}

// UpsertParams contains the parameters for upserting a split.
type UpsertParams struct {
	Key             string        `json:"key" yaml:"key"`
	Description     string        `json:"description" yaml:"description,omitempty"`
	Alphabet        string        `json:"alphabet,omitempty" yaml:"alphabet,omitempty"`
	CaseInsensitive bool          `json:"caseInsensitive,omitempty" yaml:"caseInsensitive,omitempty"`
	Salt            string        `json:"salt,omitempty" yaml:"salt,omitempty"`
	Groups          []split.Group `json:"groups" yaml:"groups"`
	Env             string        `json:"env" yaml:"env,omitempty"`
}

// Definition returns the assignment settings of the split.
func (s Split) Definition() split.Definition {
	return split.Definition{
		Key:             s.Key,
		Alphabet:        s.Alphabet,
		CaseInsensitive: s.CaseInsensitive,
		Salt:            s.Salt,
		Groups:          s.Groups,
	}
}

func copyGroups(groups []split.Group) []split.Group {
	out := make([]split.Group, len(groups))
	copy(out, groups)
	return out
}
