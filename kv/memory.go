package kv

import (
	"bytes"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store, mainly useful for tests and ephemeral
// namespaces. It is safe for concurrent use.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Put stores value under key, overwriting any previous value.
func (s *MemoryStore) Put(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[string(key)] = bytes.Clone(value)
	return nil
}

// Get returns the value stored under key, or ErrKeyNotFound.
func (s *MemoryStore) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.data[string(key)]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return bytes.Clone(value), nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *MemoryStore) Delete(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, string(key))
	return nil
}

// BatchPut stores all items.
func (s *MemoryStore) BatchPut(items []Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		s.data[string(item.Key)] = bytes.Clone(item.Value)
	}
	return nil
}

// ScanPrefix returns up to limit items whose key starts with prefix.
func (s *MemoryStore) ScanPrefix(prefix []byte, limit int) ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []Item
	for k, v := range s.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			items = append(items, Item{Key: []byte(k), Value: bytes.Clone(v)})
		}
	}
	sort.Slice(items, func(i, j int) bool { return bytes.Compare(items[i].Key, items[j].Key) < 0 })
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// Iterate calls fn for every item in ascending key order.
func (s *MemoryStore) Iterate(fn func(key, value []byte) error) error {
	items, err := s.ScanPrefix(nil, 0)
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := fn(item.Key, item.Value); err != nil {
			return err
		}
	}
	return nil
}

// Flush is a no-op for the in-memory store.
func (s *MemoryStore) Flush() error { return nil }

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
