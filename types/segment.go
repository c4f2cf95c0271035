package types

import (
	"fmt"
)

// Segment is a size bounded, ordered slice of a batch payload.
// Data aliases the batch payload; it covers [Offset, Offset+len(Data)).
type Segment struct {
	BatchID uint64
	Index   uint32
	Offset  uint64
	Data    []byte
}

// Size returns the segment length in bytes.
func (s Segment) Size() int {
	return len(s.Data)
}

// End returns the offset right after the last byte of the segment.
func (s Segment) End() uint64 {
	return s.Offset + uint64(len(s.Data))
}

// SegmentBatch splits the batch payload into ceil(len/maxSize) contiguous
// segments of at most maxSize bytes. An empty payload yields exactly one empty
// segment, so every backend always receives at least one submission.
func SegmentBatch(batch *Batch, maxSize uint64) ([]Segment, error) {
	if maxSize == 0 {
		return nil, fmt.Errorf("segment batch %d: %w", batch.ID, ErrInvalidSegmentSize)
	}

	total := uint64(len(batch.Data))
	if total == 0 {
		return []Segment{{BatchID: batch.ID, Data: batch.Data[:0:0]}}, nil
	}

	count := (total + maxSize - 1) / maxSize
	segments := make([]Segment, 0, count)
	for offset := uint64(0); offset < total; offset += maxSize {
		end := min(offset+maxSize, total)
		segments = append(segments, Segment{
			BatchID: batch.ID,
			Index:   uint32(len(segments)),
			Offset:  offset,
			Data:    batch.Data[offset:end:end],
		})
	}
	return segments, nil
}

// JoinSegments concatenates segments in index order. Segments must all belong
// to one batch and cover the payload without gaps or overlaps.
func JoinSegments(segments []Segment) ([]byte, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("join segments: %w", ErrSegmentGap)
	}

	size := 0
	for i, s := range segments {
		if s.BatchID != segments[0].BatchID {
			return nil, fmt.Errorf("segment %d has batch %d, expected %d: %w", i, s.BatchID, segments[0].BatchID, ErrSegmentBatchID)
		}
		size += len(s.Data)
	}

	out := make([]byte, 0, size)
	for i, s := range segments {
		if s.Index != uint32(i) || s.Offset != uint64(len(out)) {
			return nil, fmt.Errorf("segment %d (index %d, offset %d): %w", i, s.Index, s.Offset, ErrSegmentGap)
		}
		out = append(out, s.Data...)
	}
	return out, nil
}
