package types

import (
	"encoding/binary"
	"encoding/hex"
)

// Batch is an ordered payload produced by execution, identified by a
// caller-assigned, monotonically increasing sequence number.
//
// The coordinator never writes to Data; callers must not mutate it while a
// round is in flight.
type Batch struct {
	ID   uint64
	Data []byte
}

// Size returns the payload length in bytes.
func (b *Batch) Size() int {
	return len(b.Data)
}

// ID identifies a submitted segment inside a single backend.
type ID = []byte

// Location is the ordered list of segment IDs a backend returned for one batch.
type Location []ID

// Strings returns the hex encoding of every segment ID.
func (l Location) Strings() []string {
	out := make([]string, len(l))
	for i, id := range l {
		out[i] = hex.EncodeToString(id)
	}
	return out
}

// BatchKey encodes a batch ID so that byte order matches numeric order.
func BatchKey(id uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, id)
	return key
}
