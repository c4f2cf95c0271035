package types

import (
	"fmt"
	"strconv"
	"strings"
)

// StrategyKind enumerates the supported submit strategies.
type StrategyKind uint8

const (
	// StrategyAll requires every backend to acknowledge.
	StrategyAll StrategyKind = iota
	// StrategyQuorum requires floor(n/2)+1 backends.
	StrategyQuorum
	// StrategyNumber requires an explicit number of backends.
	StrategyNumber
)

// SubmitStrategy decides how many backends must acknowledge a batch before it
// is considered available.
type SubmitStrategy struct {
	Kind StrategyKind
	// N is only meaningful for StrategyNumber.
	N uint64
}

// All returns the all-of-n strategy.
func All() SubmitStrategy { return SubmitStrategy{Kind: StrategyAll} }

// Quorum returns the majority strategy.
func Quorum() SubmitStrategy { return SubmitStrategy{Kind: StrategyQuorum} }

// Number returns a strategy requiring n acknowledgements.
func Number(n uint64) SubmitStrategy { return SubmitStrategy{Kind: StrategyNumber, N: n} }

// ParseSubmitStrategy parses "all", "quorum" (case-insensitive) or a
// non-negative integer.
func ParseSubmitStrategy(s string) (SubmitStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all":
		return All(), nil
	case "quorum":
		return Quorum(), nil
	}
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return SubmitStrategy{}, fmt.Errorf("%w: %q", ErrInvalidStrategy, s)
	}
	return Number(n), nil
}

// Threshold resolves the number of acknowledgements required out of
// backendCount backends. Number(k) is clamped into [1, backendCount].
// Zero backends resolve to zero; callers reject that configuration.
func (s SubmitStrategy) Threshold(backendCount int) int {
	if backendCount <= 0 {
		return 0
	}
	switch s.Kind {
	case StrategyQuorum:
		return backendCount/2 + 1
	case StrategyNumber:
		if s.N < 1 {
			return 1
		}
		if s.N > uint64(backendCount) {
			return backendCount
		}
		return int(s.N)
	default:
		return backendCount
	}
}

// Clamp returns the strategy with Number(k) adjusted into [1, backendCount].
// Other kinds are returned unchanged.
func (s SubmitStrategy) Clamp(backendCount int) SubmitStrategy {
	if s.Kind != StrategyNumber || backendCount <= 0 {
		return s
	}
	return Number(uint64(s.Threshold(backendCount)))
}

// String implements fmt.Stringer.
func (s SubmitStrategy) String() string {
	switch s.Kind {
	case StrategyQuorum:
		return "quorum"
	case StrategyNumber:
		return strconv.FormatUint(s.N, 10)
	default:
		return "all"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s SubmitStrategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *SubmitStrategy) UnmarshalText(text []byte) error {
	parsed, err := ParseSubmitStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
