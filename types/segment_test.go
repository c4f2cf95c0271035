package types

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentBatch(t *testing.T) {
	payload := make([]byte, 1000)
	for i := range payload {
		payload[i] = byte(i % 251)
	}

	cases := []struct {
		name     string
		size     int
		maxSize  uint64
		expected int
	}{
		{"single byte limit", 10, 1, 10},
		{"exact multiple", 1000, 100, 10},
		{"remainder", 1000, 300, 4},
		{"limit above payload", 1000, 4096, 1},
		{"limit equals payload", 1000, 1000, 1},
		{"one byte over", 1000, 999, 2},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			batch := &Batch{ID: 42, Data: payload[:c.size]}
			segments, err := SegmentBatch(batch, c.maxSize)
			require.NoError(err)
			require.Len(segments, c.expected)

			var offset uint64
			for i, s := range segments {
				assert.Equal(uint64(42), s.BatchID)
				assert.Equal(uint32(i), s.Index)
				assert.Equal(offset, s.Offset)
				assert.LessOrEqual(uint64(s.Size()), c.maxSize)
				offset = s.End()
			}
			assert.Equal(uint64(c.size), offset)

			joined, err := JoinSegments(segments)
			require.NoError(err)
			assert.True(bytes.Equal(batch.Data, joined))
		})
	}
}

func TestSegmentBatchEmptyPayload(t *testing.T) {
	for _, data := range [][]byte{nil, {}} {
		segments, err := SegmentBatch(&Batch{ID: 1, Data: data}, 16)
		require.NoError(t, err)
		require.Len(t, segments, 1)
		assert.Equal(t, 0, segments[0].Size())
		assert.Equal(t, uint32(0), segments[0].Index)

		joined, err := JoinSegments(segments)
		require.NoError(t, err)
		assert.Empty(t, joined)
	}
}

func TestSegmentBatchZeroLimit(t *testing.T) {
	_, err := SegmentBatch(&Batch{ID: 1, Data: []byte("data")}, 0)
	assert.ErrorIs(t, err, ErrInvalidSegmentSize)
}

func TestSegmentBatchDoesNotShareCapacity(t *testing.T) {
	batch := &Batch{ID: 1, Data: []byte("abcdef")}
	segments, err := SegmentBatch(batch, 2)
	require.NoError(t, err)

	// appending to a segment must not overwrite the next one
	_ = append(segments[0].Data, 'X')
	assert.Equal(t, []byte("abcdef"), batch.Data)
}

func TestJoinSegmentsErrors(t *testing.T) {
	segments, err := SegmentBatch(&Batch{ID: 3, Data: []byte("0123456789")}, 3)
	require.NoError(t, err)

	t.Run("empty", func(t *testing.T) {
		_, err := JoinSegments(nil)
		assert.ErrorIs(t, err, ErrSegmentGap)
	})

	t.Run("missing segment", func(t *testing.T) {
		_, err := JoinSegments([]Segment{segments[0], segments[2]})
		assert.ErrorIs(t, err, ErrSegmentGap)
	})

	t.Run("out of order", func(t *testing.T) {
		_, err := JoinSegments([]Segment{segments[1], segments[0], segments[2], segments[3]})
		assert.ErrorIs(t, err, ErrSegmentGap)
	})

	t.Run("mixed batches", func(t *testing.T) {
		other := segments[1]
		other.BatchID = 4
		_, err := JoinSegments([]Segment{segments[0], other})
		assert.ErrorIs(t, err, ErrSegmentBatchID)
	})
}
