package raftstore

import (
	"encoding/binary"
	"encoding/json"
	"sync"

	"vexdb/internal/metastore"
)

// RaftMeta is the durable per-region raft bookkeeping record, allocated when
// a region is created and deleted with the region.
type RaftMeta struct {
	RegionID     uint64 `json:"region_id"`
	Term         uint64 `json:"term"`
	AppliedIndex uint64 `json:"applied_index"`
}

// NewRaftMeta allocates a fresh record for a region.
func NewRaftMeta(regionID uint64) *RaftMeta {
	return &RaftMeta{RegionID: regionID}
}

// MetaStore persists RaftMeta records through the node-local metastore.
type MetaStore struct {
	mu    sync.Mutex
	store *metastore.Store
	metas map[uint64]*RaftMeta
}

// NewMetaStore builds a raft meta store over the metastore.
func NewMetaStore(store *metastore.Store) *MetaStore {
	return &MetaStore{store: store, metas: make(map[uint64]*RaftMeta)}
}

func raftMetaKey(regionID uint64) []byte {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], regionID)
	return key[:]
}

// Init hydrates records from the durable bucket.
func (m *MetaStore) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Scan(metastore.BucketRaftMeta, func(_, value []byte) error {
		var meta RaftMeta
		if err := json.Unmarshal(value, &meta); err != nil {
			return err
		}
		m.metas[meta.RegionID] = &meta
		return nil
	})
}

// Add persists a record; an existing record for the region is replaced.
func (m *MetaStore) Add(meta *RaftMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metas[meta.RegionID] = meta
	return m.persistLocked(meta)
}

// Get returns the record for a region, or nil.
func (m *MetaStore) Get(regionID uint64) *RaftMeta {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metas[regionID]
}

// Update persists the record's current term/applied index.
func (m *MetaStore) Update(meta *RaftMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metas[meta.RegionID] = meta
	return m.persistLocked(meta)
}

// Delete removes the record; absent records are a no-op.
func (m *MetaStore) Delete(regionID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.metas, regionID)
	return m.store.Delete(metastore.BucketRaftMeta, raftMetaKey(regionID))
}

func (m *MetaStore) persistLocked(meta *RaftMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return m.store.Put(metastore.BucketRaftMeta, raftMetaKey(meta.RegionID), data)
}
