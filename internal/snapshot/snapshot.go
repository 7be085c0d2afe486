// Package snapshot holds the current set of compiled splits for the served
// environment. Readers load an immutable *Snapshot without locking; writers
// build a new one and swap it in atomically.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/TimurManjosov/sprida/internal/split"
	"github.com/TimurManjosov/sprida/internal/store"
)

// Snapshot is an immutable view of the splits of one environment.
type Snapshot struct {
	ETag      string                 `json:"etag"`
	Splits    map[string]store.Split `json:"splits"`
	UpdatedAt time.Time              `json:"updatedAt"`

	compiled map[string]*split.Compiled
}

var current atomic.Pointer[Snapshot]

// Load returns the current snapshot, or an empty one before the first Update.
func Load() *Snapshot {
	if s := current.Load(); s != nil {
		return s
	}
	return &Snapshot{
		Splits:    map[string]store.Split{},
		UpdatedAt: time.Now().UTC(),
		compiled:  map[string]*split.Compiled{},
	}
}

// Update swaps in s and notifies subscribers of its ETag.
func Update(s *Snapshot) {
	current.Store(s)
	publishUpdate(s.ETag)
}

// Build compiles splits into a new snapshot. Splits that fail to compile are
// left out and reported in the returned error; the snapshot is usable either way.
func Build(splits []store.Split) (*Snapshot, error) {
	views := make(map[string]store.Split, len(splits))
	compiled := make(map[string]*split.Compiled, len(splits))

	var errs []error
	for _, s := range splits {
		c, err := split.Compile(s.Definition())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		views[s.Key] = s
		compiled[s.Key] = c
	}

	return &Snapshot{
		ETag:      computeETag(views),
		Splits:    views,
		UpdatedAt: time.Now().UTC(),
		compiled:  compiled,
	}, errors.Join(errs...)
}

// Compiled returns the assigner for key.
func (s *Snapshot) Compiled(key string) (*split.Compiled, bool) {
	c, ok := s.compiled[key]
	return c, ok
}

// All returns every compiled split.
func (s *Snapshot) All() map[string]*split.Compiled {
	return s.compiled
}

// Keys returns the split keys in sorted order.
func (s *Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.Splits))
	for k := range s.Splits {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// computeETag hashes the split definitions; json.Marshal sorts map keys so the
// result only depends on content.
func computeETag(views map[string]store.Split) string {
	blob, err := json.Marshal(views)
	if err != nil {
		blob = []byte(fmt.Sprint(len(views)))
	}
	sum := sha256.Sum256(blob)
	return `W/"` + hex.EncodeToString(sum[:]) + `"`
}
