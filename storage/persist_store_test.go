package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistenceStore_BasicOperations(t *testing.T) {
	ps, err := NewMemoryPersistenceStore()
	require.NoError(t, err)
	defer ps.Close()

	key, value := []byte("test-key"), []byte("test-value")
	require.NoError(t, ps.Put(key, value))

	got, found, err := ps.Get(key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, value, got)

	_, found, err = ps.Get([]byte("non-existent"))
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, ps.Delete(key))
	_, found, err = ps.Get(key)
	require.NoError(t, err)
	assert.False(t, found, "Expected key to be deleted")
}

func TestPersistenceStore_Prefix(t *testing.T) {
	ps, err := NewMemoryPersistenceStore()
	require.NoError(t, err)
	defer ps.Close()

	for _, k := range []string{"a/2", "a/1", "b/1", "a"} {
		require.NoError(t, ps.Put([]byte(k), []byte("v"+k)))
	}
	kvs, err := ps.GetWithPrefix([]byte("a/"))
	require.NoError(t, err)
	require.Len(t, kvs, 2)
	assert.Equal(t, "a/1", string(kvs[0][0]))
	assert.Equal(t, "va/2", string(kvs[1][1]))

	n, err := ps.DeleteWithPrefix([]byte("a/"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	kvs, err = ps.GetWithPrefix(nil)
	require.NoError(t, err)
	assert.Len(t, kvs, 2)
}

func TestPersistenceStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	ps, err := NewPersistenceStore(path)
	require.NoError(t, err)
	assert.Equal(t, path, ps.Path())
	require.NoError(t, ps.Put([]byte("k"), []byte("persisted")))
	require.NoError(t, ps.Close())

	ps, err = NewPersistenceStore(path)
	require.NoError(t, err)
	defer ps.Close()
	got, found, err := ps.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "persisted", string(got))
}
