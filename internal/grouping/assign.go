package grouping

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
)

// MaxDomainBits caps the number of identifier bits used for a bucket. Identifiers
// carrying more entropy are still accepted; only their leading bits are read.
const MaxDomainBits = 20

var (
	// ErrInsufficientEntropy is returned when a normalized identifier does not carry
	// enough bits to tell the requested number of groups apart.
	ErrInsufficientEntropy = errors.New("number of entropy bits in identifier too low")

	// ErrNoGroups is returned when the weight vector is empty.
	ErrNoGroups = errors.New("at least one group weight is required")

	// ErrInvalidWeight is returned for weights that are not finite positive numbers.
	ErrInvalidWeight = errors.New("group weights must be finite and positive")
)

// AssignGroup maps id to a group index in [0, len(weights)). Over a population
// of identifiers whose symbols are uniformly random, group i receives about
// weights[i]/sum(weights) of them. A nil model means DefaultModel.
//
// Group 0 additionally absorbs the buckets left over when the floored group
// sizes do not cover the whole domain.
func AssignGroup(weights []float64, id string, model *Model) (int, error) {
	if model == nil {
		model = DefaultModel
	}
	return model.Assign(weights, id)
}

// Assign is AssignGroup bound to m.
func (m *Model) Assign(weights []float64, id string) (int, error) {
	if err := ValidateWeights(weights); err != nil {
		return 0, err
	}

	processed := m.Normalize(id)
	available := symbolCount(processed) * m.entropy
	needed := BitsNeeded(len(weights))
	if available < needed {
		return 0, fmt.Errorf("%w: %d bits available, %d needed for %d groups",
			ErrInsufficientEntropy, available, needed, len(weights))
	}

	usable := min(available, MaxDomainBits)
	domainSize := uint32(1) << usable
	bitmask := domainSize - 1

	bucket := m.leadingBits(processed, m.symbolsNeeded(usable)) & bitmask

	return MapBucketToGroup(weights, domainSize, bucket), nil
}

// Bucket returns the raw bucket of id and the size of the domain it was drawn
// from, without mapping it to a group. It fails like Assign when the identifier
// carries fewer than minBits bits.
func (m *Model) Bucket(id string, minBits int) (bucket, domainSize uint32, err error) {
	processed := m.Normalize(id)
	available := symbolCount(processed) * m.entropy
	if available < minBits {
		return 0, 0, fmt.Errorf("%w: %d bits available, %d needed", ErrInsufficientEntropy, available, minBits)
	}
	usable := min(available, MaxDomainBits)
	domainSize = uint32(1) << usable
	return m.leadingBits(processed, m.symbolsNeeded(usable)) & (domainSize - 1), domainSize, nil
}

// symbolsNeeded is ceil(usableBits / entropy); zero-entropy models read nothing.
func (m *Model) symbolsNeeded(usableBits int) int {
	if m.entropy == 0 {
		return 0
	}
	return (usableBits + m.entropy - 1) / m.entropy
}

// leadingBits folds the first n symbols of processed into an integer, most
// significant symbol first.
func (m *Model) leadingBits(processed string, n int) uint32 {
	var acc uint64
	read := 0
	for _, r := range processed {
		if read == n {
			break
		}
		// normalized input only holds alphabet symbols
		acc = acc<<uint(m.entropy) | uint64(m.table[r])
		read++
	}
	return uint32(acc)
}

// MapBucketToGroup returns the group whose range holds bucket. Groups occupy
// contiguous ranges of floor(weight/sum*domainSize) buckets in weight order;
// buckets past the last range belong to group 0.
func MapBucketToGroup(weights []float64, domainSize, bucket uint32) int {
	var sum float64
	for _, w := range weights {
		sum += w
	}

	var start uint64
	for group, w := range weights {
		size := uint64(math.Floor((w / sum) * float64(domainSize)))
		if uint64(bucket) >= start && uint64(bucket) < start+size {
			return group
		}
		start += size
	}

	// remainder of the floored sizes
	return 0
}

// BitsNeeded returns ceil(log2(groups)), the bits required to distinguish that
// many groups. One group needs no bits.
func BitsNeeded(groups int) int {
	if groups <= 1 {
		return 0
	}
	return bits.Len(uint(groups - 1))
}

// ValidateWeights checks the weight vector preconditions of AssignGroup.
func ValidateWeights(weights []float64) error {
	if len(weights) == 0 {
		return ErrNoGroups
	}
	var sum float64
	for i, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w <= 0 {
			return fmt.Errorf("%w: weight %d is %v", ErrInvalidWeight, i, w)
		}
		sum += w
	}
	// group shares are w/sum; an overflowing sum would make every share zero
	if math.IsInf(sum, 0) {
		return fmt.Errorf("%w: weights sum to %v", ErrInvalidWeight, sum)
	}
	return nil
}
