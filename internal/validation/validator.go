// Package validation provides validation rules for split definitions and request parameters.
package validation

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MaxKeyLength is the maximum length for split keys
	MaxKeyLength = 64
	// MaxEnvLength is the maximum length for environment names
	MaxEnvLength = 32
	// MaxDescriptionLength is the maximum length for split descriptions
	MaxDescriptionLength = 500
	// MaxAlphabetLength is the maximum number of symbols in a custom alphabet
	MaxAlphabetLength = 1024
	// MaxSaltLength is the maximum length for a hashing salt
	MaxSaltLength = 128
	// MaxGroups is the maximum number of groups in one split
	MaxGroups = 1024
	// MaxGroupNameLength is the maximum length for group names
	MaxGroupNameLength = 64
)

// keyPattern matches alphanumeric characters, underscores, and hyphens
var keyPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidationResult holds the result of validation
type ValidationResult struct {
	Valid  bool
	Errors map[string]string
}

// NewValidationResult creates a new validation result
func NewValidationResult() *ValidationResult {
	return &ValidationResult{
		Valid:  true,
		Errors: make(map[string]string),
	}
}

// AddError adds a field error and marks the result as invalid
func (v *ValidationResult) AddError(field, message string) {
	v.Valid = false
	v.Errors[field] = message
}

// Merge combines another validation result into this one
func (v *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	for field, message := range other.Errors {
		v.AddError(field, message)
	}
}

// SplitValidationParams contains the parameters for validating a split
type SplitValidationParams struct {
	Key             string
	Env             string
	Description     string
	Alphabet        string
	CaseInsensitive bool
	Salt            string
	Groups          []GroupValidationParams
}

// GroupValidationParams contains the parameters for validating a group
type GroupValidationParams struct {
	Name   string
	Weight float64
}

// ValidateSplit validates all split fields and returns a validation result
func ValidateSplit(params SplitValidationParams) *ValidationResult {
	result := NewValidationResult()

	result.Merge(ValidateKey(params.Key))
	result.Merge(ValidateEnv(params.Env))
	result.Merge(ValidateDescription(params.Description))
	result.Merge(ValidateAlphabet(params.Alphabet))
	// case-insensitive splits read the alphabet lower-cased
	if params.CaseInsensitive && result.Errors["alphabet"] == "" &&
		!ValidateAlphabet(strings.ToLower(params.Alphabet)).Valid {
		result.AddError("alphabet", "Alphabet symbols must stay unique when case is ignored")
	}
	result.Merge(ValidateSalt(params.Salt))
	result.Merge(ValidateGroups(params.Groups))

	// hashed identifiers are hex digests and need the default alphabet
	if params.Salt != "" && params.Alphabet != "" {
		result.AddError("salt", "Salt can only be used with the default alphabet")
	}

	return result
}

// ValidateKey validates a split key
func ValidateKey(key string) *ValidationResult {
	result := NewValidationResult()
	key = strings.TrimSpace(key)

	if key == "" {
		result.AddError("key", "Key is required")
		return result
	}

	if utf8.RuneCountInString(key) > MaxKeyLength {
		result.AddError("key", "Key must not exceed 64 characters")
		return result
	}

	if !keyPattern.MatchString(key) {
		result.AddError("key", "Key must contain only alphanumeric characters, underscores, and hyphens")
		return result
	}

	return result
}

// ValidateEnv validates an environment name
func ValidateEnv(env string) *ValidationResult {
	result := NewValidationResult()
	env = strings.TrimSpace(env)

	if env == "" {
		result.AddError("env", "Environment is required")
		return result
	}

	if utf8.RuneCountInString(env) > MaxEnvLength {
		result.AddError("env", "Environment must not exceed 32 characters")
		return result
	}

	return result
}

// ValidateDescription validates a split description
func ValidateDescription(description string) *ValidationResult {
	result := NewValidationResult()

	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		result.AddError("description", "Description must not exceed 500 characters")
	}

	return result
}

// ValidateAlphabet validates a custom alphabet. An empty alphabet selects the
// default hexadecimal one and is valid.
func ValidateAlphabet(alphabet string) *ValidationResult {
	result := NewValidationResult()
	if alphabet == "" {
		return result
	}

	if !utf8.ValidString(alphabet) {
		result.AddError("alphabet", "Alphabet must be valid UTF-8")
		return result
	}

	symbols := []rune(alphabet)
	if len(symbols) > MaxAlphabetLength {
		result.AddError("alphabet", fmt.Sprintf("Alphabet must not exceed %d symbols", MaxAlphabetLength))
		return result
	}

	seen := make(map[rune]bool, len(symbols))
	for _, r := range symbols {
		if seen[r] {
			result.AddError("alphabet", fmt.Sprintf("Alphabet symbol %q appears more than once", r))
			return result
		}
		seen[r] = true
	}

	return result
}

// ValidateSalt validates the optional hashing salt
func ValidateSalt(salt string) *ValidationResult {
	result := NewValidationResult()

	if utf8.RuneCountInString(salt) > MaxSaltLength {
		result.AddError("salt", "Salt must not exceed 128 characters")
	}

	return result
}

// ValidateGroups validates the list of groups of a split
func ValidateGroups(groups []GroupValidationParams) *ValidationResult {
	result := NewValidationResult()

	if len(groups) == 0 {
		result.AddError("groups", "At least one group is required")
		return result
	}
	if len(groups) > MaxGroups {
		result.AddError("groups", fmt.Sprintf("A split must not have more than %d groups", MaxGroups))
		return result
	}

	seenNames := make(map[string]bool)
	var sum float64
	for _, g := range groups {
		if strings.TrimSpace(g.Name) == "" {
			result.AddError("groups", "Group name cannot be empty")
			return result
		}

		if utf8.RuneCountInString(g.Name) > MaxGroupNameLength {
			result.AddError("groups", "Group name must not exceed 64 characters")
			return result
		}

		if seenNames[g.Name] {
			result.AddError("groups", "Duplicate group name: "+g.Name)
			return result
		}
		seenNames[g.Name] = true

		if math.IsNaN(g.Weight) || math.IsInf(g.Weight, 0) || g.Weight <= 0 {
			result.AddError("groups", "Group weight must be a positive number")
			return result
		}
		sum += g.Weight
	}

	if math.IsInf(sum, 0) {
		result.AddError("groups", "Group weights are too large to sum")
	}

	return result
}
