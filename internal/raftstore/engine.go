package raftstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"go.etcd.io/etcd/raft/v3"
	"go.etcd.io/etcd/raft/v3/raftpb"

	"vexdb/internal/errs"
	logpkg "vexdb/internal/log"
	region "vexdb/internal/region"
)

// EngineType identifies the replication engine backing region data.
type EngineType int

const (
	// EngineTypeRaft replicates region writes through per-region raft groups.
	EngineTypeRaft EngineType = iota
	// EngineTypeLocal applies writes directly without replication.
	EngineTypeLocal
)

// Node is the per-region raft handle the control plane consults.
type Node interface {
	IsLeader() bool
	LeaderID() uint64
	PeerID() uint64
	ListPeers() []region.Peer
}

// Listener observes entries applied by a region's state machine, outside the
// controller's tasks.
type Listener interface {
	OnApply(regionID uint64, index uint64, data []byte)
}

// AppliedObserver receives applied-index advances for metrics.
type AppliedObserver interface {
	ObserveApplied(regionID uint64, index uint64)
}

// Engine is the replication engine consumed by the region controller.
type Engine interface {
	Type() EngineType
	AddNode(ctx context.Context, r *region.Region, meta *RaftMeta, observer AppliedObserver, listener Listener) error
	DestroyNode(ctx context.Context, regionID uint64) error
	StopNode(ctx context.Context, regionID uint64) error
	ChangeNode(ctx context.Context, regionID uint64, voters []region.Peer) error
	TransferLeader(regionID uint64, peer region.Peer) error
	DoSnapshot(ctx context.Context, regionID uint64) error
	AsyncWrite(ctx context.Context, regionID uint64, data []byte, cb func(error)) error
	GetNode(regionID uint64) Node
}

// RaftEngine manages one raft group per region with file-backed log storage.
type RaftEngine struct {
	mu        sync.Mutex
	dir       string
	storeID   uint64
	transport Transport
	metas     *MetaStore
	nodes     map[uint64]*raftNode
	log       *logpkg.Logger
}

// NewRaftEngine builds the raft replication engine rooted at dir.
func NewRaftEngine(dir string, storeID uint64, transport Transport, metas *MetaStore) *RaftEngine {
	if transport == nil {
		transport = NewNoopTransport()
	}
	return &RaftEngine{
		dir:       dir,
		storeID:   storeID,
		transport: transport,
		metas:     metas,
		nodes:     make(map[uint64]*raftNode),
		log:       logpkg.New("raftengine"),
	}
}

func (e *RaftEngine) Type() EngineType { return EngineTypeRaft }

func (e *RaftEngine) regionDir(regionID uint64) string {
	return filepath.Join(e.dir, "regions", fmt.Sprintf("%d", regionID), "raft")
}

// AddNode starts a raft group member for the region on this store.
func (e *RaftEngine) AddNode(ctx context.Context, r *region.Region, meta *RaftMeta, observer AppliedObserver, listener Listener) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	regionID := r.ID()
	if _, exists := e.nodes[regionID]; exists {
		return nil
	}
	if meta == nil {
		meta = NewRaftMeta(regionID)
	}

	storage, err := NewLogStorage(e.regionDir(regionID))
	if err != nil {
		return errs.Newf(errs.KindInternal, "open raft log storage for region %d: %v", regionID, err)
	}

	for _, p := range r.Peers() {
		addr := fmt.Sprintf("%s:%d", p.RaftLocation.Host, p.RaftLocation.Port)
		if err := e.transport.AddMember(p.StoreID, []string{addr}); err != nil {
			e.log.Warnf("region %d add transport member %d: %v", regionID, p.StoreID, err)
		}
	}

	node := newRaftNode(raftNodeConfig{
		RegionID:      regionID,
		PeerID:        e.storeID,
		Peers:         r.Peers(),
		Storage:       storage,
		Transport:     e.transport,
		Meta:          meta,
		Metas:         e.metas,
		Listener:      listener,
		Observer:      observer,
		ElectionTick:  10,
		HeartbeatTick: 1,
	})
	e.nodes[regionID] = node
	e.log.Infof("region %d raft node started, peer %d", regionID, e.storeID)
	return nil
}

// StopNode shuts the region's raft node down without touching its data.
// Stopping an absent node is a no-op.
func (e *RaftEngine) StopNode(ctx context.Context, regionID uint64) error {
	e.mu.Lock()
	node := e.nodes[regionID]
	delete(e.nodes, regionID)
	e.mu.Unlock()

	if node != nil {
		node.stop()
		e.log.Infof("region %d raft node stopped", regionID)
	}
	return nil
}

// DestroyNode stops the region's raft node and removes its log storage.
// Destroying an absent node still removes leftover storage.
func (e *RaftEngine) DestroyNode(ctx context.Context, regionID uint64) error {
	e.mu.Lock()
	node := e.nodes[regionID]
	delete(e.nodes, regionID)
	e.mu.Unlock()

	if node != nil {
		node.stop()
		if err := node.storage.Destroy(); err != nil {
			return errs.Newf(errs.KindInternal, "destroy raft log storage for region %d: %v", regionID, err)
		}
	} else {
		storage, err := NewLogStorage(e.regionDir(regionID))
		if err == nil {
			_ = storage.Destroy()
		}
	}
	e.log.Infof("region %d raft node destroyed", regionID)
	return nil
}

// ChangeNode reconciles the raft group membership toward the voter list.
func (e *RaftEngine) ChangeNode(ctx context.Context, regionID uint64, voters []region.Peer) error {
	node := e.node(regionID)
	if node == nil {
		return errs.Newf(errs.KindRaftNotFound, "no raft node for region %d", regionID)
	}

	current := make(map[uint64]region.Peer)
	for _, p := range node.ListPeers() {
		if p.Role == region.Voter {
			current[p.StoreID] = p
		}
	}
	desired := make(map[uint64]region.Peer)
	for _, p := range voters {
		desired[p.StoreID] = p
	}

	for storeID, p := range desired {
		if _, ok := current[storeID]; ok {
			continue
		}
		addr := fmt.Sprintf("%s:%d", p.RaftLocation.Host, p.RaftLocation.Port)
		if err := e.transport.AddMember(storeID, []string{addr}); err != nil {
			e.log.Warnf("region %d add transport member %d: %v", regionID, storeID, err)
		}
		cc := raftpb.ConfChange{Type: raftpb.ConfChangeAddNode, NodeID: storeID, Context: []byte(addr)}
		if err := node.proposeConfChange(ctx, cc); err != nil {
			return errs.Newf(errs.KindInternal, "add peer %d to region %d: %v", storeID, regionID, err)
		}
	}
	for storeID := range current {
		if _, ok := desired[storeID]; ok {
			continue
		}
		cc := raftpb.ConfChange{Type: raftpb.ConfChangeRemoveNode, NodeID: storeID}
		if err := node.proposeConfChange(ctx, cc); err != nil {
			return errs.Newf(errs.KindInternal, "remove peer %d from region %d: %v", storeID, regionID, err)
		}
	}

	node.setPeers(voters)
	return nil
}

// TransferLeader hands region leadership to the target peer.
func (e *RaftEngine) TransferLeader(regionID uint64, peer region.Peer) error {
	node := e.node(regionID)
	if node == nil {
		return errs.Newf(errs.KindRaftNotFound, "no raft node for region %d", regionID)
	}
	node.raft.TransferLeadership(node.ctx, node.LeaderID(), peer.StoreID)
	return nil
}

// DoSnapshot snapshots the region's raft log at the applied index and
// compacts entries behind it.
func (e *RaftEngine) DoSnapshot(ctx context.Context, regionID uint64) error {
	node := e.node(regionID)
	if node == nil {
		return errs.Newf(errs.KindRaftNotFound, "no raft node for region %d", regionID)
	}
	applied := node.appliedIndex()
	if applied == 0 {
		return nil
	}
	if _, err := node.storage.CreateSnapshot(applied, nil, nil); err != nil {
		if errors.Is(err, raft.ErrSnapOutOfDate) {
			return nil
		}
		return errs.Newf(errs.KindInternal, "snapshot region %d at %d: %v", regionID, applied, err)
	}
	if err := node.storage.Compact(applied); err != nil && !errors.Is(err, raft.ErrCompacted) {
		return errs.Newf(errs.KindInternal, "compact region %d to %d: %v", regionID, applied, err)
	}
	return nil
}

// AsyncWrite submits data to the region's raft log. The callback fires once
// submission finishes; the apply path runs independently on the engine side.
func (e *RaftEngine) AsyncWrite(ctx context.Context, regionID uint64, data []byte, cb func(error)) error {
	node := e.node(regionID)
	if node == nil {
		return errs.Newf(errs.KindRaftNotFound, "no raft node for region %d", regionID)
	}
	go func() {
		err := node.propose(ctx, data)
		if cb != nil {
			cb(err)
		}
	}()
	return nil
}

// GetNode returns the raft handle for a region, or nil.
func (e *RaftEngine) GetNode(regionID uint64) Node {
	node := e.node(regionID)
	if node == nil {
		return nil
	}
	return node
}

// Close stops every node. Used on teardown; region data stays on disk.
func (e *RaftEngine) Close() {
	e.mu.Lock()
	nodes := make([]*raftNode, 0, len(e.nodes))
	for _, node := range e.nodes {
		nodes = append(nodes, node)
	}
	e.nodes = make(map[uint64]*raftNode)
	e.mu.Unlock()

	for _, node := range nodes {
		node.stop()
	}
}

func (e *RaftEngine) node(regionID uint64) *raftNode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nodes[regionID]
}
