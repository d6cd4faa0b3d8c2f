package meta_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"vexdb/internal/errs"
	"vexdb/internal/meta"
	"vexdb/internal/metastore"
	region "vexdb/internal/region"
)

func openStore(t *testing.T, dir string) *meta.Store {
	t.Helper()
	ms, err := metastore.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ms.Close() })

	s := meta.NewStore(ms)
	require.NoError(t, s.Init())
	return s
}

func testRegion(id region.ID, start, end byte) *region.Region {
	return region.New(region.Definition{
		ID:    id,
		Range: region.KeyRange{Start: []byte{start}, End: []byte{end}},
	})
}

func TestStoreAddGetDelete(t *testing.T) {
	s := openStore(t, t.TempDir())

	require.Nil(t, s.GetRegion(100))
	require.NoError(t, s.AddRegion(testRegion(100, 0x01, 0x10)))

	r := s.GetRegion(100)
	require.NotNil(t, r)
	require.Equal(t, region.StateNew, r.State)

	err := s.AddRegion(testRegion(100, 0x01, 0x10))
	require.Equal(t, errs.KindRegionExist, errs.KindOf(err))

	require.NoError(t, s.DeleteRegion(100))
	require.Nil(t, s.GetRegion(100))
	// Deleting an absent region is a no-op.
	require.NoError(t, s.DeleteRegion(100))
}

func TestStoreRejectsInvalidRange(t *testing.T) {
	s := openStore(t, t.TempDir())
	err := s.AddRegion(testRegion(1, 0x10, 0x01))
	require.Equal(t, errs.KindKeyInvalid, errs.KindOf(err))
}

func TestStoreUpdateStateGuards(t *testing.T) {
	s := openStore(t, t.TempDir())
	require.NoError(t, s.AddRegion(testRegion(7, 0x01, 0x10)))

	require.NoError(t, s.UpdateState(7, region.StateNormal))
	require.NoError(t, s.UpdateState(7, region.StateNormal)) // same state no-op

	err := s.UpdateState(7, region.StateDeleted) // skips DELETING
	require.Equal(t, errs.KindRegionState, errs.KindOf(err))

	require.NoError(t, s.UpdateState(7, region.StateDeleting))
	require.NoError(t, s.UpdateState(7, region.StateDeleted))

	err = s.UpdateState(99, region.StateNormal)
	require.Equal(t, errs.KindRegionNotFound, errs.KindOf(err))
}

func TestStoreAliveExcludesDeleted(t *testing.T) {
	s := openStore(t, t.TempDir())
	require.NoError(t, s.AddRegion(testRegion(2, 0x20, 0x30)))
	require.NoError(t, s.AddRegion(testRegion(1, 0x01, 0x10)))
	require.NoError(t, s.UpdateState(2, region.StateDeleting))
	require.NoError(t, s.UpdateState(2, region.StateDeleted))

	alive := s.GetAllAliveRegion()
	require.Len(t, alive, 1)
	require.Equal(t, region.ID(1), alive[0].ID())
}

func TestStoreGetRegionByKey(t *testing.T) {
	s := openStore(t, t.TempDir())
	require.NoError(t, s.AddRegion(testRegion(1, 0x01, 0x10)))
	require.NoError(t, s.AddRegion(testRegion(2, 0x10, 0x20)))

	r := s.GetRegionByKey([]byte{0x05})
	require.NotNil(t, r)
	require.Equal(t, region.ID(1), r.ID())

	r = s.GetRegionByKey([]byte{0x10})
	require.NotNil(t, r)
	require.Equal(t, region.ID(2), r.ID())

	require.Nil(t, s.GetRegionByKey([]byte{0x00}))
	require.Nil(t, s.GetRegionByKey([]byte{0x20}))
}

func TestStoreSurvivesRestart(t *testing.T) {
	dir := t.TempDir()

	ms, err := metastore.Open(dir)
	require.NoError(t, err)
	s := meta.NewStore(ms)
	require.NoError(t, s.Init())
	require.NoError(t, s.AddRegion(testRegion(5, 0x01, 0x10)))
	require.NoError(t, s.UpdateState(5, region.StateNormal))
	require.NoError(t, ms.Close())

	s2 := openStore(t, dir)
	r := s2.GetRegion(5)
	require.NotNil(t, r)
	require.Equal(t, region.StateNormal, r.State)
}

func TestStoreReadersGetSnapshots(t *testing.T) {
	s := openStore(t, t.TempDir())
	require.NoError(t, s.AddRegion(testRegion(3, 0x01, 0x10)))

	r := s.GetRegion(3)
	r.State = region.StateDeleted
	r.Definition.Range.Start[0] = 0x09

	fresh := s.GetRegion(3)
	require.Equal(t, region.StateNew, fresh.State)
	require.Equal(t, byte(0x01), fresh.Range().Start[0])
}
