package raftstore_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.etcd.io/etcd/raft/v3"
	"go.etcd.io/etcd/raft/v3/raftpb"

	"vexdb/internal/raftstore"
)

func TestLogStorageAppendAndPersist(t *testing.T) {
	dir := t.TempDir()
	st, err := raftstore.NewLogStorage(dir)
	require.NoError(t, err)

	first, err := st.FirstIndex()
	require.NoError(t, err)
	require.Equal(t, uint64(1), first)

	last, err := st.LastIndex()
	require.NoError(t, err)
	require.Equal(t, uint64(0), last)

	entries := []raftpb.Entry{
		{Index: 1, Term: 1, Data: []byte("e1")},
		{Index: 2, Term: 1, Data: []byte("e2")},
		{Index: 3, Term: 2, Data: []byte("e3")},
	}
	require.NoError(t, st.Append(entries))

	got, err := st.Entries(1, 4, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, []byte("e1"), got[0].Data)

	term, err := st.Term(3)
	require.NoError(t, err)
	require.Equal(t, uint64(2), term)

	require.NoError(t, st.SetHardState(raftpb.HardState{Term: 2, Commit: 3}))

	st2, err := raftstore.NewLogStorage(dir)
	require.NoError(t, err)

	hs, _, err := st2.InitialState()
	require.NoError(t, err)
	require.Equal(t, uint64(2), hs.Term)
	require.Equal(t, uint64(3), hs.Commit)

	got2, err := st2.Entries(2, 4, 0)
	require.NoError(t, err)
	require.Len(t, got2, 2)
	require.Equal(t, []byte("e2"), got2[0].Data)
}

func TestLogStorageAppendOverwritesConflictingTail(t *testing.T) {
	st, err := raftstore.NewLogStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, st.Append([]raftpb.Entry{
		{Index: 1, Term: 1},
		{Index: 2, Term: 1},
		{Index: 3, Term: 1},
	}))
	// A new leader rewrites the tail from index 2.
	require.NoError(t, st.Append([]raftpb.Entry{
		{Index: 2, Term: 2, Data: []byte("new2")},
	}))

	last, err := st.LastIndex()
	require.NoError(t, err)
	require.Equal(t, uint64(2), last)

	term, err := st.Term(2)
	require.NoError(t, err)
	require.Equal(t, uint64(2), term)

	// Appends past the end of the log are rejected.
	require.Error(t, st.Append([]raftpb.Entry{{Index: 9, Term: 2}}))
}

func TestLogStorageSnapshotAndCompaction(t *testing.T) {
	dir := t.TempDir()
	st, err := raftstore.NewLogStorage(dir)
	require.NoError(t, err)

	require.NoError(t, st.Append([]raftpb.Entry{
		{Index: 1, Term: 1},
		{Index: 2, Term: 1},
		{Index: 3, Term: 2, Data: []byte("v3")},
		{Index: 4, Term: 2, Data: []byte("v4")},
	}))

	snap, err := st.CreateSnapshot(3, []byte("payload"), nil)
	require.NoError(t, err)
	require.Equal(t, uint64(3), snap.Metadata.Index)
	require.Equal(t, uint64(2), snap.Metadata.Term)

	require.NoError(t, st.Compact(3))

	first, err := st.FirstIndex()
	require.NoError(t, err)
	require.Equal(t, uint64(4), first)

	_, err = st.Term(2)
	require.ErrorIs(t, err, raft.ErrCompacted)
	// The truncation point still answers with its term.
	term, err := st.Term(3)
	require.NoError(t, err)
	require.Equal(t, uint64(2), term)

	_, err = st.Entries(3, 5, 0)
	require.ErrorIs(t, err, raft.ErrCompacted)
	entries, err := st.Entries(4, 5, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, []byte("v4"), entries[0].Data)

	require.ErrorIs(t, st.Compact(3), raft.ErrCompacted)

	st2, err := raftstore.NewLogStorage(dir)
	require.NoError(t, err)

	first2, err := st2.FirstIndex()
	require.NoError(t, err)
	require.Equal(t, uint64(4), first2)
	loaded, err := st2.Snapshot()
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), loaded.Data)
}

func TestLogStorageApplySnapshot(t *testing.T) {
	st, err := raftstore.NewLogStorage(t.TempDir())
	require.NoError(t, err)

	snap := raftpb.Snapshot{
		Metadata: raftpb.SnapshotMetadata{Index: 6, Term: 3},
	}
	require.NoError(t, st.ApplySnapshot(snap))

	first, err := st.FirstIndex()
	require.NoError(t, err)
	require.Equal(t, uint64(7), first)
	last, err := st.LastIndex()
	require.NoError(t, err)
	require.Equal(t, uint64(6), last)

	term, err := st.Term(6)
	require.NoError(t, err)
	require.Equal(t, uint64(3), term)

	require.NoError(t, st.Append([]raftpb.Entry{
		{Index: 7, Term: 4, Data: []byte("v7")},
		{Index: 8, Term: 4, Data: []byte("v8")},
	}))
	entries, err := st.Entries(7, 9, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Stale snapshots are rejected.
	require.ErrorIs(t, st.ApplySnapshot(snap), raft.ErrSnapOutOfDate)
}

func TestLogStorageDestroy(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "raft")
	st, err := raftstore.NewLogStorage(sub)
	require.NoError(t, err)
	require.NoError(t, st.SetHardState(raftpb.HardState{Term: 1}))

	_, err = os.Stat(filepath.Join(sub, "state.bin"))
	require.NoError(t, err)

	require.NoError(t, st.Destroy())
	_, err = os.Stat(sub)
	require.True(t, os.IsNotExist(err))
}

func TestRaftMetaStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	metaStore := openMetaStore(t, dir)

	ms := raftstore.NewMetaStore(metaStore)
	require.NoError(t, ms.Init())

	require.Nil(t, ms.Get(9))
	meta := raftstore.NewRaftMeta(9)
	meta.AppliedIndex = 42
	require.NoError(t, ms.Add(meta))

	got := ms.Get(9)
	require.NotNil(t, got)
	require.Equal(t, uint64(42), got.AppliedIndex)

	require.NoError(t, ms.Delete(9))
	require.Nil(t, ms.Get(9))
	require.NoError(t, ms.Delete(9))
}
