package vectorindex

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	art "github.com/plar/go-adaptive-radix-tree"

	"vexdb/internal/errs"
	logpkg "vexdb/internal/log"
	"vexdb/internal/meta"
)

// Manager owns the vector indexes materialized on this store, keyed by
// region id.
type Manager struct {
	mu      sync.RWMutex
	indexes art.Tree
	meta    *meta.Store
	snaps   *SnapshotManager
	log     *logpkg.Logger
}

// NewManager builds a manager over the region meta store; snapshots live
// under dir.
func NewManager(metaStore *meta.Store, dir string) *Manager {
	return &Manager{
		indexes: art.New(),
		meta:    metaStore,
		snaps:   newSnapshotManager(dir),
		log:     logpkg.New("vectorindex"),
	}
}

func indexKey(regionID uint64) art.Key {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], regionID)
	return key[:]
}

// GetVectorIndex returns the loaded index for a region, or nil.
func (m *Manager) GetVectorIndex(regionID uint64) VectorIndex {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, found := m.indexes.Search(indexKey(regionID))
	if !found || value == nil {
		return nil
	}
	return value.(VectorIndex)
}

// LoadOrBuildVectorIndex materializes the region's index locally from its
// definition. Loading an already-loaded index is a no-op.
func (m *Manager) LoadOrBuildVectorIndex(regionID uint64) error {
	if idx := m.GetVectorIndex(regionID); idx != nil {
		return nil
	}

	r := m.meta.GetRegion(regionID)
	if r == nil {
		return errs.Newf(errs.KindRegionNotFound, "region %d not exist", regionID)
	}
	hnsw := r.Definition.IndexParameter.HNSW
	if hnsw == nil {
		return errs.Newf(errs.KindIllegalParameters, "region %d has no hnsw parameter", regionID)
	}

	idx := NewHNSWIndex(regionID, hnsw.Dimension, hnsw.MaxElements, hnsw.EfConstruction, hnsw.NLinks)
	m.mu.Lock()
	m.indexes.Insert(indexKey(regionID), VectorIndex(idx))
	m.mu.Unlock()
	m.log.Infof("vector index %d loaded, max elements %d", regionID, hnsw.MaxElements)
	return nil
}

// DeleteVectorIndex drops the in-memory index; absent indexes are a no-op.
func (m *Manager) DeleteVectorIndex(regionID uint64) {
	m.mu.Lock()
	_, deleted := m.indexes.Delete(indexKey(regionID))
	m.mu.Unlock()
	if deleted {
		m.log.Infof("vector index %d deleted", regionID)
	}
}

// UpdateSnapshotLogId records the log index covered by the latest snapshot.
func (m *Manager) UpdateSnapshotLogId(idx VectorIndex, snapshotLogID uint64) {
	if hnsw, ok := idx.(*HNSWIndex); ok {
		hnsw.setSnapshotLogID(snapshotLogID)
	}
}

// GetVectorIndexSnapshotManager exposes the snapshot side.
func (m *Manager) GetVectorIndexSnapshotManager() *SnapshotManager {
	return m.snaps
}

// SnapshotManager persists vector index snapshots per region.
type SnapshotManager struct {
	mu  sync.Mutex
	dir string
	log *logpkg.Logger
}

func newSnapshotManager(dir string) *SnapshotManager {
	return &SnapshotManager{dir: dir, log: logpkg.New("vectorsnapshot")}
}

type snapshotRecord struct {
	RegionID      uint64 `json:"region_id"`
	SnapshotLogID uint64 `json:"snapshot_log_id"`
	MaxElements   uint64 `json:"max_elements"`
}

func (s *SnapshotManager) snapshotPath(regionID uint64) string {
	return filepath.Join(s.dir, fmt.Sprintf("%d.snapshot", regionID))
}

// SaveVectorIndexSnapshot writes a snapshot of the index and returns the log
// index it covers.
func (s *SnapshotManager) SaveVectorIndexSnapshot(idx VectorIndex) (uint64, error) {
	if idx == nil {
		return 0, errs.New(errs.KindVectorIndexNotFound, "vector index is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return 0, err
	}
	record := snapshotRecord{
		RegionID:      idx.ID(),
		SnapshotLogID: idx.ApplyLogID(),
	}
	if hnsw, ok := idx.(*HNSWIndex); ok {
		record.MaxElements = hnsw.MaxElements()
	}
	data, err := json.Marshal(record)
	if err != nil {
		return 0, err
	}
	path := s.snapshotPath(idx.ID())
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp, path); err != nil {
		return 0, err
	}
	s.log.Infof("vector index %d snapshot saved at log %d", idx.ID(), record.SnapshotLogID)
	return record.SnapshotLogID, nil
}

// DeleteSnapshots removes every snapshot of a region.
func (s *SnapshotManager) DeleteSnapshots(regionID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.snapshotPath(regionID)); err != nil && !os.IsNotExist(err) {
		s.log.Warnf("delete vector index %d snapshot: %v", regionID, err)
	}
}
