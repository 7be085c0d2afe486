package grouping

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Identity returns the identifier unchanged.
func Identity(s string) string { return s }

// Lowercase folds the identifier to lower case.
func Lowercase(s string) string { return strings.ToLower(s) }

// Uppercase folds the identifier to upper case.
func Uppercase(s string) string { return strings.ToUpper(s) }

// Chain applies the normalizers left to right. Nil entries are skipped.
func Chain(fns ...Normalizer) Normalizer {
	return func(s string) string {
		for _, fn := range fns {
			if fn != nil {
				s = fn(s)
			}
		}
		return s
	}
}

// Hashed replaces the identifier by the 16 lowercase hex digits of
// xxhash64(salt + ":" + id). Use it with DefaultModel when identifiers are not
// random (sequential user ids, e-mail addresses) so their symbols become
// uniformly distributed. Different salts give independent assignments for the
// same population.
func Hashed(salt string) Normalizer {
	return func(s string) string {
		sum := xxhash.Sum64String(salt + ":" + s)
		hex := strconv.FormatUint(sum, 16)
		if len(hex) < 16 {
			hex = strings.Repeat("0", 16-len(hex)) + hex
		}
		return hex
	}
}
