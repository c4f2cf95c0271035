package store

import (
	"path/filepath"

	"github.com/dgraph-io/badger/v3"
)

// KVStore encapsulates key-value store abstraction, in minimalistic interface.
//
// KVStore MUST be thread safe.
type KVStore interface {
	Get(key []byte) ([]byte, error)     // Get gets the value for a key.
	Set(key []byte, value []byte) error // Set updates the value for a key.
	Delete(key []byte) error            // Delete deletes a key.
	NewBatch() Batch                    // NewBatch creates a new batch.
	// PrefixIterator iterates keys with prefix in ascending order, starting at prefix+start.
	PrefixIterator(prefix, start []byte) Iterator
	// ReversePrefixIterator iterates keys with prefix in descending order.
	ReversePrefixIterator(prefix []byte) Iterator
	Close() error
}

// Batch enables batching of transactions.
type Batch interface {
	Set(key, value []byte) error // Accumulates KV entries in a transaction.
	Delete(key []byte) error     // Deletes the given key.
	Commit() error               // Commits the transaction.
	Discard()                    // Discards the transaction.
}

// Iterator enables traversal over a given prefix.
type Iterator interface {
	Valid() bool
	Next()
	Key() []byte
	Value() []byte
	Error() error
	Discard()
}

// NewDefaultKVStore creates instance of default key-value store.
func NewDefaultKVStore(dbDir string, name string) (KVStore, error) {
	path := filepath.Join(dbDir, name)
	db, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil))
	if err != nil {
		return nil, err
	}
	return &BadgerKV{db: db}, nil
}

// NewInMemoryKVStore builds KVStore that works in-memory (without accessing disk).
func NewInMemoryKVStore() KVStore {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		panic(err)
	}
	return &BadgerKV{
		db: db,
	}
}
