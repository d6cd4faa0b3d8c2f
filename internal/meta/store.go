package meta

import (
	"encoding/binary"
	"encoding/json"
	"sync"

	"github.com/huandu/skiplist"
	"golang.org/x/exp/slices"

	"vexdb/internal/errs"
	logpkg "vexdb/internal/log"
	"vexdb/internal/metastore"
	region "vexdb/internal/region"
)

// Store is the durable map of region id → region descriptor. Operations are
// internally serialized and write through to the node-local metastore.
// Readers get deep copies; mutations go through the store, never through
// field writes on returned regions.
type Store struct {
	mu      sync.RWMutex
	store   *metastore.Store
	regions map[region.ID]*region.Region
	byStart *skiplist.SkipList // raw start key → region id, for key routing
	log     *logpkg.Logger
}

// NewStore builds a region meta store over the metastore.
func NewStore(store *metastore.Store) *Store {
	return &Store{
		store:   store,
		regions: make(map[region.ID]*region.Region),
		byStart: skiplist.New(skiplist.Bytes),
		log:     logpkg.New("regionmeta"),
	}
}

func regionKey(id region.ID) []byte {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], id)
	return key[:]
}

// Init hydrates the in-memory map from the durable bucket.
func (s *Store) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Scan(metastore.BucketRegion, func(_, value []byte) error {
		var r region.Region
		if err := json.Unmarshal(value, &r); err != nil {
			return err
		}
		s.regions[r.ID()] = &r
		s.byStart.Set(r.RawRange().Start, r.ID())
		return nil
	})
}

// GetRegion returns a snapshot of the region, or nil if absent.
func (s *Store) GetRegion(id region.ID) *region.Region {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.regions[id].Clone()
}

// GetRegionByKey routes a raw key to the region whose raw range contains it.
func (s *Store) GetRegionByKey(key []byte) *region.Region {
	s.mu.RLock()
	defer s.mu.RUnlock()
	elem := s.byStart.Find(key)
	// Find returns the first element >= key; the owner is that element when
	// its start equals key, otherwise the previous one.
	if elem == nil {
		elem = s.byStart.Back()
	} else if string(elem.Key().([]byte)) != string(key) {
		elem = elem.Prev()
	}
	if elem == nil {
		return nil
	}
	r := s.regions[elem.Value.(region.ID)]
	if r == nil || !r.RawRange().Contains(key) {
		return nil
	}
	return r.Clone()
}

// AddRegion inserts a new region descriptor.
func (s *Store) AddRegion(r *region.Region) error {
	if !r.Range().Valid() {
		return errs.Newf(errs.KindKeyInvalid, "region %d range start >= end", r.ID())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.regions[r.ID()]; exists {
		return errs.Newf(errs.KindRegionExist, "region %d already exist", r.ID())
	}
	return s.putLocked(r.Clone())
}

// UpdateRegion replaces an existing region descriptor.
func (s *Store) UpdateRegion(r *region.Region) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.regions[r.ID()]; !exists {
		return errs.Newf(errs.KindRegionNotFound, "region %d not exist", r.ID())
	}
	return s.putLocked(r.Clone())
}

// UpdateState advances the region's lifecycle state, rejecting transitions
// outside the allowed diagram.
func (s *Store) UpdateState(id region.ID, state region.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, exists := s.regions[id]
	if !exists {
		return errs.Newf(errs.KindRegionNotFound, "region %d not exist", id)
	}
	if r.State == state {
		return nil
	}
	if !region.CanTransit(r.State, state) {
		return errs.Newf(errs.KindRegionState, "region %d state %s -> %s not allowed", id, r.State, state)
	}
	cp := r.Clone()
	cp.State = state
	s.log.Infof("region %d state %s -> %s", id, r.State, state)
	return s.putLocked(cp)
}

// SetDisableSplit flips the split switch on the in-memory descriptor. This
// call writes nothing to the metastore; the flag reaches disk only when a
// later UpdateRegion or UpdateState rewrites the region.
func (s *Store) SetDisableSplit(id region.ID, disable bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, exists := s.regions[id]
	if !exists {
		return errs.Newf(errs.KindRegionNotFound, "region %d not exist", id)
	}
	r.DisableSplit = disable
	return nil
}

// DeleteRegion purges the region row entirely.
func (s *Store) DeleteRegion(id region.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, exists := s.regions[id]
	if !exists {
		return nil
	}
	delete(s.regions, id)
	s.byStart.Remove(r.RawRange().Start)
	return s.store.Delete(metastore.BucketRegion, regionKey(id))
}

// GetAllAliveRegion returns every region not in state DELETED, ascending id.
func (s *Store) GetAllAliveRegion() []*region.Region {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uint64, 0, len(s.regions))
	for id, r := range s.regions {
		if r.State == region.StateDeleted {
			continue
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	alive := make([]*region.Region, 0, len(ids))
	for _, id := range ids {
		alive = append(alive, s.regions[id].Clone())
	}
	return alive
}

func (s *Store) putLocked(r *region.Region) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	if err := s.store.Put(metastore.BucketRegion, regionKey(r.ID()), data); err != nil {
		return err
	}
	if prev := s.regions[r.ID()]; prev != nil {
		s.byStart.Remove(prev.RawRange().Start)
	}
	s.regions[r.ID()] = r
	s.byStart.Set(r.RawRange().Start, r.ID())
	return nil
}
