package types

import "errors"

var (
	ErrInvalidSegmentSize  = errors.New("max segment size must be positive")
	ErrInvalidStrategy     = errors.New("invalid submit strategy")
	ErrSegmentGap          = errors.New("segments are not contiguous")
	ErrSegmentBatchID      = errors.New("segments belong to different batches")
	ErrRoundFailed         = errors.New("submission round failed")
	ErrRoundCancelled      = errors.New("submission round cancelled")
	ErrInvalidReceiptField = errors.New("invalid receipt field")
)
