package da

import (
	"context"
	"errors"

	"github.com/rollkit/multida/types"
)

// Backend is the capability every DA backend driver implements. It is the
// only view of a backend the coordinator has.
type Backend interface {
	// ID returns a name unique within one backend set.
	ID() string

	// MaxSegmentSize returns the largest payload accepted by SubmitSegment.
	MaxSegmentSize() uint64

	// SubmitSegment stores seg and returns the ID that locates it in the backend.
	//
	// Implementations must return promptly once ctx is done. Failures should wrap
	// ErrTimeout, ErrRejected or ErrNetwork when the cause is known.
	SubmitSegment(ctx context.Context, seg types.Segment) (types.ID, error)
}

// Fetcher is implemented by backends that support read-back of submitted segments.
type Fetcher interface {
	// Fetch returns the segment payload stored under id.
	Fetch(ctx context.Context, id types.ID) ([]byte, error)
}

// Classify maps a submission error to the reason recorded in the receipt.
func Classify(err error) types.FailureReason {
	switch {
	case err == nil:
		return types.ReasonNone
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return types.ReasonTimeout
	case errors.Is(err, ErrRejected):
		return types.ReasonRejected
	case errors.Is(err, ErrNetwork):
		return types.ReasonNetwork
	default:
		return types.ReasonOther
	}
}
