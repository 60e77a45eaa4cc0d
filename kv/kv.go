// Package kv provides the key-value storage primitive used by namespaces.
//
// A Store owns one keyspace of opaque byte keys and values. Implementations
// must be safe for concurrent use; a namespace shares its Store handle with
// every executing script.
package kv

import "errors"

// ErrKeyNotFound is returned by Get when the key is absent.
var ErrKeyNotFound = errors.New("key not found")

// Item is a single key-value pair, used by batch and scan operations.
type Item struct {
	Key   []byte
	Value []byte
}

// Store is the key-value storage contract consumed by the namespace layer.
type Store interface {
	// Put stores value under key, overwriting any previous value.
	Put(key, value []byte) error

	// Get returns the value stored under key, or ErrKeyNotFound.
	Get(key []byte) ([]byte, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(key []byte) error

	// BatchPut stores all items atomically.
	BatchPut(items []Item) error

	// ScanPrefix returns up to limit items whose key starts with prefix,
	// in ascending key order. limit <= 0 means no limit.
	ScanPrefix(prefix []byte, limit int) ([]Item, error)

	// Iterate calls fn for every item in ascending key order.
	// Iteration stops at the first error returned by fn.
	Iterate(fn func(key, value []byte) error) error

	// Flush persists any buffered writes.
	Flush() error

	// Close releases the store. The handle must not be used afterwards.
	Close() error
}

// prefixUpperBound returns the smallest key greater than every key with the
// given prefix, or nil if no such bound exists (prefix is all 0xFF).
func prefixUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xFF {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
