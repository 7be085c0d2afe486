// Package grouping assigns opaque identifiers to weighted groups without any
// shared state. An identifier is read as a sequence of symbols drawn from a
// Model's alphabet; its leading symbols form an integer bucket which is then
// mapped onto contiguous ranges sized by the requested weights.
//
// The same identifier, weights and model always produce the same group, so any
// number of processes can agree on an assignment without coordinating.
//
// Example:
//
//	group, err := grouping.AssignGroup([]float64{9, 1}, "5251410c-004e-41c1-87ce-52ef98ee8ba9", nil)
//	// group == 0 for ~90% of random UUIDs, 1 for the rest
package grouping

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"
	"unicode/utf8"
)

var (
	// ErrEmptyAlphabet is returned by BuildModel when the alphabet has no symbols.
	ErrEmptyAlphabet = errors.New("alphabet must contain at least one symbol")

	// ErrDuplicateSymbol is returned by BuildModel when a symbol occurs twice in the
	// part of the alphabet the model keeps.
	ErrDuplicateSymbol = errors.New("alphabet symbols must be unique")
)

// HexAlphabet is the alphabet of DefaultModel.
const HexAlphabet = "0123456789abcdef"

// DefaultModel reads identifiers as case-insensitive hexadecimal, which fits
// standard random 128-bit identifiers such as UUID v4.
var DefaultModel = MustBuildModel(HexAlphabet, WithNormalizer(Lowercase))

// Normalizer transforms an identifier before its symbols are read.
// It must be pure: the same input always yields the same output.
type Normalizer func(string) string

// Model describes how identifier strings are interpreted. A Model is immutable
// once built and may be shared by any number of goroutines.
type Model struct {
	alphabet []rune
	table    map[rune]uint32
	entropy  int
	pre      Normalizer
}

// ModelOption configures BuildModel.
type ModelOption func(*modelOptions)

type modelOptions struct {
	normalizer Normalizer
}

// WithNormalizer sets the function applied to identifiers before symbols outside
// the alphabet are stripped. A nil normalizer leaves identifiers untouched.
func WithNormalizer(fn Normalizer) ModelOption {
	return func(o *modelOptions) {
		o.normalizer = fn
	}
}

// BuildModel creates a Model from an alphabet of distinct symbols.
//
// Only the first 2^floor(log2(n)) symbols are kept so that every recognized
// symbol carries a whole number of bits. Symbols past that prefix are treated
// like any other foreign character: Normalize removes them.
func BuildModel(alphabet string, opts ...ModelOption) (*Model, error) {
	options := modelOptions{normalizer: Identity}
	for _, opt := range opts {
		opt(&options)
	}
	if options.normalizer == nil {
		options.normalizer = Identity
	}

	symbols := []rune(alphabet)
	if len(symbols) == 0 {
		return nil, ErrEmptyAlphabet
	}

	// largest power of two not above len(symbols)
	entropy := bits.Len(uint(len(symbols))) - 1
	trimmed := symbols[:1<<entropy]

	table := make(map[rune]uint32, len(trimmed))
	for i, r := range trimmed {
		if _, dup := table[r]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateSymbol, r)
		}
		table[r] = uint32(i)
	}

	return &Model{
		alphabet: trimmed,
		table:    table,
		entropy:  entropy,
		pre:      options.normalizer,
	}, nil
}

// MustBuildModel is like BuildModel but panics on error.
func MustBuildModel(alphabet string, opts ...ModelOption) *Model {
	m, err := BuildModel(alphabet, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

// Alphabet returns the symbols the model recognizes, in index order.
func (m *Model) Alphabet() string {
	return string(m.alphabet)
}

// Size returns the number of recognized symbols. It is always a power of two.
func (m *Model) Size() int {
	return len(m.alphabet)
}

// Entropy returns the number of bits each recognized symbol contributes.
func (m *Model) Entropy() int {
	return m.entropy
}

// Index returns the position of r in the alphabet.
func (m *Model) Index(r rune) (uint32, bool) {
	idx, ok := m.table[r]
	return idx, ok
}

// Normalize applies the model's normalizer and then drops every character that
// is not part of the alphabet.
func (m *Model) Normalize(id string) string {
	pre := m.pre(id)

	var b strings.Builder
	b.Grow(len(pre))
	for _, r := range pre {
		if _, ok := m.table[r]; ok {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// symbolCount returns the number of runes in an already normalized string.
func symbolCount(processed string) int {
	return utf8.RuneCountInString(processed)
}
