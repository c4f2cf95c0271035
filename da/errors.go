package da

import (
	"errors"
)

var (
	// ErrTimeout is returned when a backend did not confirm a segment in time.
	ErrTimeout = errors.New("backend timed out")
	// ErrRejected is returned when a backend refused a segment.
	ErrRejected = errors.New("backend rejected segment")
	// ErrNetwork is returned when a backend could not be reached.
	ErrNetwork = errors.New("backend unreachable")
	// ErrSegmentNotFound is returned by Fetch for unknown IDs.
	ErrSegmentNotFound = errors.New("segment not found")
	// ErrSegmentTooLarge is returned when a segment exceeds the backend limit.
	ErrSegmentTooLarge = errors.New("segment exceeds backend limit")
)
