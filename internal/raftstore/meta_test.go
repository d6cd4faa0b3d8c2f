package raftstore_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"vexdb/internal/metastore"
)

func openMetaStore(t *testing.T, dir string) *metastore.Store {
	t.Helper()
	store, err := metastore.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}
