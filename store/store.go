package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/rollkit/multida/types"
)

var (
	receiptPrefix = []byte{1}
	statusPrefix  = []byte{2}
)

// ErrInvalidKey is returned when a stored key cannot be decoded.
var ErrInvalidKey = errors.New("invalid receipt key")

// ReceiptStore is the journal of submission receipts, keyed by batch ID.
//
// Saving a receipt for a batch ID that is already present overwrites it, so
// callers retrying a failed round keep only the latest outcome.
type ReceiptStore struct {
	db KVStore

	latest    uint64
	hasLatest bool

	// mtx protects latest and hasLatest
	mtx sync.RWMutex
}

// NewReceiptStore opens the journal stored in kv.
func NewReceiptStore(kv KVStore) (*ReceiptStore, error) {
	s := &ReceiptStore{db: kv}
	it := kv.ReversePrefixIterator(receiptPrefix)
	defer it.Discard()
	if it.Valid() {
		id, err := decodeKey(it.Key()[len(receiptPrefix):])
		if err != nil {
			return nil, err
		}
		s.latest, s.hasLatest = id, true
	}
	return s, it.Error()
}

// SaveReceipt stores r under its batch ID.
func (s *ReceiptStore) SaveReceipt(r *types.SubmissionReceipt) (err error) {
	blob, err := r.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal receipt %d: %w", r.BatchID(), err)
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	batch := s.db.NewBatch()
	err = multierr.Append(err, batch.Set(receiptKey(r.BatchID()), blob))
	err = multierr.Append(err, batch.Set(statusKey(r.BatchID()), []byte(r.Status().String())))
	if err != nil {
		batch.Discard()
		return err
	}
	if err := batch.Commit(); err != nil {
		return err
	}

	if !s.hasLatest || r.BatchID() > s.latest {
		s.latest, s.hasLatest = r.BatchID(), true
	}
	return nil
}

// GetReceipt returns the receipt of batchID, or an error wrapping ErrKeyNotFound.
func (s *ReceiptStore) GetReceipt(batchID uint64) (*types.SubmissionReceipt, error) {
	blob, err := s.db.Get(receiptKey(batchID))
	if err != nil {
		return nil, fmt.Errorf("load receipt %d: %w", batchID, err)
	}
	r := new(types.SubmissionReceipt)
	if err := r.UnmarshalJSON(blob); err != nil {
		return nil, fmt.Errorf("decode receipt %d: %w", batchID, err)
	}
	return r, nil
}

// Status returns the stored round status of batchID without decoding the receipt.
func (s *ReceiptStore) Status(batchID uint64) (types.RoundStatus, error) {
	raw, err := s.db.Get(statusKey(batchID))
	if err != nil {
		return 0, fmt.Errorf("load status %d: %w", batchID, err)
	}
	var status types.RoundStatus
	if err := status.UnmarshalText(raw); err != nil {
		return 0, err
	}
	return status, nil
}

// Receipts returns up to limit receipts with batch ID >= from, ordered by batch ID.
func (s *ReceiptStore) Receipts(from uint64, limit int) (receipts []*types.SubmissionReceipt, err error) {
	if limit <= 0 {
		return nil, nil
	}
	it := s.db.PrefixIterator(receiptPrefix, types.BatchKey(from))
	defer func() {
		err = multierr.Append(err, it.Error())
		it.Discard()
	}()

	for ; it.Valid() && len(receipts) < limit; it.Next() {
		r := new(types.SubmissionReceipt)
		if err := r.UnmarshalJSON(it.Value()); err != nil {
			return nil, fmt.Errorf("decode receipt %x: %w", it.Key(), err)
		}
		receipts = append(receipts, r)
	}
	return receipts, nil
}

// LatestBatchID returns the highest stored batch ID. ok is false for an empty journal.
func (s *ReceiptStore) LatestBatchID() (id uint64, ok bool) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.latest, s.hasLatest
}

// Close closes the underlying store.
func (s *ReceiptStore) Close() error {
	return s.db.Close()
}

func receiptKey(batchID uint64) []byte {
	return concat(receiptPrefix, types.BatchKey(batchID))
}

func statusKey(batchID uint64) []byte {
	return concat(statusPrefix, types.BatchKey(batchID))
}

func decodeKey(key []byte) (uint64, error) {
	if len(key) != 8 {
		return 0, fmt.Errorf("%w: %x", ErrInvalidKey, key)
	}
	return binary.BigEndian.Uint64(key), nil
}
