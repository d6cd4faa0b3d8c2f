package metastore_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"vexdb/internal/metastore"
)

func TestStorePutGetDeleteScan(t *testing.T) {
	store, err := metastore.Open(t.TempDir())
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.Put(metastore.BucketRegion, []byte("a"), []byte("1")))
	require.NoError(t, store.Put(metastore.BucketRegion, []byte("b"), []byte("2")))

	value, err := store.Get(metastore.BucketRegion, []byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), value)

	missing, err := store.Get(metastore.BucketRegion, []byte("zz"))
	require.NoError(t, err)
	require.Nil(t, missing)

	var keys []string
	require.NoError(t, store.Scan(metastore.BucketRegion, func(key, _ []byte) error {
		keys = append(keys, string(key))
		return nil
	}))
	require.Equal(t, []string{"a", "b"}, keys)

	require.NoError(t, store.Delete(metastore.BucketRegion, []byte("a")))
	value, err = store.Get(metastore.BucketRegion, []byte("a"))
	require.NoError(t, err)
	require.Nil(t, value)
}

func TestStoreDirectoryIsExclusive(t *testing.T) {
	dir := t.TempDir()
	store, err := metastore.Open(dir)
	require.NoError(t, err)

	_, err = metastore.Open(dir)
	require.Error(t, err)

	require.NoError(t, store.Close())
	store2, err := metastore.Open(dir)
	require.NoError(t, err)
	require.NoError(t, store2.Close())
}

func TestStoreBucketsAreDisjoint(t *testing.T) {
	store, err := metastore.Open(t.TempDir())
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.Put(metastore.BucketCommand, []byte("k"), []byte("cmd")))
	require.NoError(t, store.Put(metastore.BucketRaftMeta, []byte("k"), []byte("raft")))

	value, err := store.Get(metastore.BucketCommand, []byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("cmd"), value)

	value, err = store.Get(metastore.BucketRaftMeta, []byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("raft"), value)
}
