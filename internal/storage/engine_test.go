package storage_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	region "vexdb/internal/region"
	"vexdb/internal/storage"
)

func TestEngineWriteReadDelete(t *testing.T) {
	eng, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	defer func() { _ = eng.Close() }()

	writer := eng.NewWriter(storage.DataCF)
	reader := eng.NewReader(storage.DataCF)

	require.NoError(t, writer.KvPut([]byte("k1"), []byte("v1")))
	value, err := reader.KvGet([]byte("k1"))
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), value)

	require.NoError(t, writer.KvDelete([]byte("k1")))
	_, err = reader.KvGet([]byte("k1"))
	require.ErrorIs(t, err, storage.ErrKeyNotFound)
}

func TestEngineColumnFamiliesAreDisjoint(t *testing.T) {
	eng, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	defer func() { _ = eng.Close() }()

	require.NoError(t, eng.NewWriter(storage.DataCF).KvPut([]byte("k"), []byte("data")))
	require.NoError(t, eng.NewWriter(storage.MetaCF).KvPut([]byte("k"), []byte("meta")))

	value, err := eng.NewReader(storage.DataCF).KvGet([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("data"), value)

	value, err = eng.NewReader(storage.MetaCF).KvGet([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("meta"), value)
}

func TestEngineBatchDeleteRange(t *testing.T) {
	eng, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	defer func() { _ = eng.Close() }()

	writer := eng.NewWriter(storage.DataCF)
	reader := eng.NewReader(storage.DataCF)

	for _, key := range [][]byte{{0x01}, {0x05}, {0x0f}, {0x10}} {
		require.NoError(t, writer.KvPut(key, []byte("v")))
	}

	require.NoError(t, writer.KvBatchDeleteRange(region.KeyRange{Start: []byte{0x01}, End: []byte{0x10}}))

	for _, key := range [][]byte{{0x01}, {0x05}, {0x0f}} {
		_, err := reader.KvGet(key)
		require.ErrorIs(t, err, storage.ErrKeyNotFound, "key %x should be gone", key)
	}
	// End key is exclusive.
	_, err = reader.KvGet([]byte{0x10})
	require.NoError(t, err)

	// Re-deleting an already-empty range is a no-op.
	require.NoError(t, writer.KvBatchDeleteRange(region.KeyRange{Start: []byte{0x01}, End: []byte{0x10}}))
}
