package kv

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]Store{
		"sqlite": sqlite,
		"memory": NewMemoryStore(),
	}
}

func TestStore_PutGetDelete(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get([]byte("missing"))
			assert.ErrorIs(t, err, ErrKeyNotFound)

			require.NoError(t, store.Put([]byte("k1"), []byte("v1")))
			got, err := store.Get([]byte("k1"))
			require.NoError(t, err)
			assert.Equal(t, []byte("v1"), got)

			// Overwrite
			require.NoError(t, store.Put([]byte("k1"), []byte("v2")))
			got, err = store.Get([]byte("k1"))
			require.NoError(t, err)
			assert.Equal(t, []byte("v2"), got)

			require.NoError(t, store.Delete([]byte("k1")))
			_, err = store.Get([]byte("k1"))
			assert.ErrorIs(t, err, ErrKeyNotFound)

			// Deleting an absent key is fine.
			require.NoError(t, store.Delete([]byte("k1")))
		})
	}
}

func TestStore_BatchPut(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			items := []Item{
				{Key: []byte("a"), Value: []byte("1")},
				{Key: []byte("b"), Value: []byte("2")},
				{Key: []byte("c"), Value: []byte("3")},
			}
			require.NoError(t, store.BatchPut(items))

			for _, item := range items {
				got, err := store.Get(item.Key)
				require.NoError(t, err)
				assert.Equal(t, item.Value, got)
			}
		})
	}
}

func TestStore_ScanPrefix(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 5; i++ {
				require.NoError(t, store.Put([]byte(fmt.Sprintf("doc:%d", i)), []byte("x")))
			}
			require.NoError(t, store.Put([]byte("other"), []byte("y")))

			items, err := store.ScanPrefix([]byte("doc:"), 0)
			require.NoError(t, err)
			assert.Len(t, items, 5)
			assert.Equal(t, []byte("doc:0"), items[0].Key)

			items, err = store.ScanPrefix([]byte("doc:"), 2)
			require.NoError(t, err)
			assert.Len(t, items, 2)

			items, err = store.ScanPrefix([]byte("nope"), 0)
			require.NoError(t, err)
			assert.Empty(t, items)
		})
	}
}

func TestStore_Iterate(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Put([]byte("b"), []byte("2")))
			require.NoError(t, store.Put([]byte("a"), []byte("1")))

			var keys []string
			err := store.Iterate(func(key, _ []byte) error {
				keys = append(keys, string(key))
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, keys)
		})
	}
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")

	store, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, store.Put([]byte("k"), []byte("v")))
	require.NoError(t, store.Flush())
	require.NoError(t, store.Close())

	store2, err := OpenSQLite(path)
	require.NoError(t, err)
	defer store2.Close()

	got, err := store2.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestPrefixUpperBound(t *testing.T) {
	assert.Equal(t, []byte("doc;"), prefixUpperBound([]byte("doc:")))
	assert.Equal(t, []byte{0x01}, prefixUpperBound([]byte{0x00}))
	assert.Equal(t, []byte{0xAB, 0x01}, prefixUpperBound([]byte{0xAB, 0x00}))
	assert.Nil(t, prefixUpperBound([]byte{0xFF, 0xFF}))
}
