package vectorindex_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"vexdb/internal/errs"
	"vexdb/internal/meta"
	"vexdb/internal/metastore"
	region "vexdb/internal/region"
	"vexdb/internal/vectorindex"
)

func newManager(t *testing.T) (*vectorindex.Manager, *meta.Store) {
	t.Helper()
	ms, err := metastore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ms.Close() })

	regions := meta.NewStore(ms)
	require.NoError(t, regions.Init())
	return vectorindex.NewManager(regions, t.TempDir()), regions
}

func addIndexRegion(t *testing.T, regions *meta.Store, id region.ID, maxElements uint64) {
	t.Helper()
	r := region.New(region.Definition{
		ID:    id,
		Type:  region.IndexRegion,
		Range: region.KeyRange{Start: []byte{0x01}, End: []byte{0x10}},
		IndexParameter: region.IndexParameter{
			HNSW: &region.HNSWParameter{Dimension: 128, MaxElements: maxElements},
		},
	})
	require.NoError(t, regions.AddRegion(r))
}

func TestManagerLoadOrBuild(t *testing.T) {
	m, regions := newManager(t)
	addIndexRegion(t, regions, 10, 1000)

	require.Nil(t, m.GetVectorIndex(10))
	require.NoError(t, m.LoadOrBuildVectorIndex(10))

	idx := m.GetVectorIndex(10)
	require.NotNil(t, idx)
	require.Equal(t, uint64(10), idx.ID())

	// Loading again is a no-op.
	require.NoError(t, m.LoadOrBuildVectorIndex(10))

	m.DeleteVectorIndex(10)
	require.Nil(t, m.GetVectorIndex(10))
	m.DeleteVectorIndex(10)
}

func TestManagerLoadErrors(t *testing.T) {
	m, regions := newManager(t)

	err := m.LoadOrBuildVectorIndex(99)
	require.Equal(t, errs.KindRegionNotFound, errs.KindOf(err))

	plain := region.New(region.Definition{
		ID:    5,
		Range: region.KeyRange{Start: []byte{0x01}, End: []byte{0x10}},
	})
	require.NoError(t, regions.AddRegion(plain))
	err = m.LoadOrBuildVectorIndex(5)
	require.Equal(t, errs.KindIllegalParameters, errs.KindOf(err))
}

func TestHNSWResize(t *testing.T) {
	idx := vectorindex.NewHNSWIndex(1, 128, 1000, 200, 16)
	require.Equal(t, uint64(1000), idx.MaxElements())

	require.NoError(t, idx.ResizeMaxElements(2000))
	require.Equal(t, uint64(2000), idx.MaxElements())

	err := idx.ResizeMaxElements(100)
	require.Equal(t, errs.KindVectorIndexResize, errs.KindOf(err))
	require.Equal(t, uint64(2000), idx.MaxElements())
}

func TestSnapshotSaveAndDelete(t *testing.T) {
	m, regions := newManager(t)
	addIndexRegion(t, regions, 20, 500)
	require.NoError(t, m.LoadOrBuildVectorIndex(20))

	idx := m.GetVectorIndex(20)
	hnsw := idx.(*vectorindex.HNSWIndex)
	hnsw.SetApplyLogID(77)

	snaps := m.GetVectorIndexSnapshotManager()
	logID, err := snaps.SaveVectorIndexSnapshot(idx)
	require.NoError(t, err)
	require.Equal(t, uint64(77), logID)

	m.UpdateSnapshotLogId(idx, logID)
	require.Equal(t, uint64(77), idx.SnapshotLogID())

	snaps.DeleteSnapshots(20)
	snaps.DeleteSnapshots(20) // absent snapshot is a no-op

	_, err = snaps.SaveVectorIndexSnapshot(nil)
	require.Equal(t, errs.KindVectorIndexNotFound, errs.KindOf(err))
}
