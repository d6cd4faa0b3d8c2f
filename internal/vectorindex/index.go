package vectorindex

import (
	"sync"

	"vexdb/internal/errs"
)

// IndexType identifies the vector index algorithm.
type IndexType int

const (
	IndexTypeHNSW IndexType = iota
)

// VectorIndex is an auxiliary index colocated with an INDEX region. Its id is
// the region id.
type VectorIndex interface {
	ID() uint64
	Type() IndexType
	ApplyLogID() uint64
	SnapshotLogID() uint64
}

// HNSWIndex holds the control-plane bookkeeping of an HNSW graph: capacity,
// dimension and the log positions the index has absorbed. The graph itself
// lives below this layer.
type HNSWIndex struct {
	id uint64

	mu             sync.RWMutex
	dimension      int
	maxElements    uint64
	efConstruction int
	nlinks         int
	applyLogID     uint64
	snapshotLogID  uint64
}

// NewHNSWIndex builds the bookkeeping for region regionID.
func NewHNSWIndex(regionID uint64, dimension int, maxElements uint64, efConstruction, nlinks int) *HNSWIndex {
	return &HNSWIndex{
		id:             regionID,
		dimension:      dimension,
		maxElements:    maxElements,
		efConstruction: efConstruction,
		nlinks:         nlinks,
	}
}

func (h *HNSWIndex) ID() uint64      { return h.id }
func (h *HNSWIndex) Type() IndexType { return IndexTypeHNSW }

// MaxElements returns the current element capacity.
func (h *HNSWIndex) MaxElements() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.maxElements
}

// ResizeMaxElements grows the element capacity. Shrinking is rejected; the
// graph cannot drop allocated levels.
func (h *HNSWIndex) ResizeMaxElements(maxElements uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if maxElements < h.maxElements {
		return errs.Newf(errs.KindVectorIndexResize, "hnsw index %d cannot shrink max elements %d -> %d",
			h.id, h.maxElements, maxElements)
	}
	h.maxElements = maxElements
	return nil
}

// ApplyLogID returns the raft log index the index has absorbed.
func (h *HNSWIndex) ApplyLogID() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.applyLogID
}

// SetApplyLogID records log progress; only moves forward.
func (h *HNSWIndex) SetApplyLogID(logID uint64) {
	h.mu.Lock()
	if logID > h.applyLogID {
		h.applyLogID = logID
	}
	h.mu.Unlock()
}

// SnapshotLogID returns the log index of the last durable snapshot.
func (h *HNSWIndex) SnapshotLogID() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snapshotLogID
}

func (h *HNSWIndex) setSnapshotLogID(logID uint64) {
	h.mu.Lock()
	if logID > h.snapshotLogID {
		h.snapshotLogID = logID
	}
	h.mu.Unlock()
}
