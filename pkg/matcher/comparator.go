package matcher

import (
	"math"

	"github.com/go-ctap/hybridmoc/pkg/container"
)

// Comparator scores an enrolled sub-template against a verification
// template. Higher scores mean more similar; a score at or above Threshold
// is an accept. The threshold may depend on the configured FAR level and
// model but must not change between calls with the same configuration.
type Comparator interface {
	Threshold(cfg *container.Config) (uint16, error)
	Compare(cfg *container.Config, enrolled, probe []byte) (uint16, error)
}

// WorkSizer is implemented by comparators that need scratch space in the
// work buffer beyond the verification envelope.
type WorkSizer interface {
	WorkSize(cfg *container.Config) int
}

// ExactComparator scores the length of the common prefix of both payloads
// relative to the longer one and only accepts identical payloads. It is a
// stand-in for demos and tests, not a biometric algorithm.
type ExactComparator struct{}

func (ExactComparator) Threshold(*container.Config) (uint16, error) {
	return math.MaxUint16, nil
}

func (ExactComparator) Compare(_ *container.Config, enrolled, probe []byte) (uint16, error) {
	n := max(len(enrolled), len(probe))
	if n == 0 {
		return math.MaxUint16, nil
	}

	common := 0
	for common < len(enrolled) && common < len(probe) && enrolled[common] == probe[common] {
		common++
	}

	return uint16(common * math.MaxUint16 / n), nil
}
