package raftstore

import (
	"context"
	"sync"
	"time"

	"go.etcd.io/etcd/raft/v3"
	"go.etcd.io/etcd/raft/v3/raftpb"

	logpkg "vexdb/internal/log"
	region "vexdb/internal/region"
)

// raftNode drives one region's raft group on this store.
type raftNode struct {
	regionID  uint64
	peerID    uint64
	raft      raft.Node
	storage   *LogStorage
	transport Transport

	meta     *RaftMeta
	metas    *MetaStore
	listener Listener
	observer AppliedObserver

	mu    sync.RWMutex
	peers []region.Peer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    *logpkg.Logger
}

type raftNodeConfig struct {
	RegionID      uint64
	PeerID        uint64
	Peers         []region.Peer
	Storage       *LogStorage
	Transport     Transport
	Meta          *RaftMeta
	Metas         *MetaStore
	Listener      Listener
	Observer      AppliedObserver
	ElectionTick  int
	HeartbeatTick int
}

func newRaftNode(cfg raftNodeConfig) *raftNode {
	raftConfig := &raft.Config{
		ID:              cfg.PeerID,
		ElectionTick:    cfg.ElectionTick,
		HeartbeatTick:   cfg.HeartbeatTick,
		Storage:         cfg.Storage,
		MaxSizePerMsg:   4096,
		MaxInflightMsgs: 256,
		CheckQuorum:     true,
		PreVote:         true,
	}

	ctx, cancel := context.WithCancel(context.Background())
	n := &raftNode{
		regionID:  cfg.RegionID,
		peerID:    cfg.PeerID,
		storage:   cfg.Storage,
		transport: cfg.Transport,
		meta:      cfg.Meta,
		metas:     cfg.Metas,
		listener:  cfg.Listener,
		observer:  cfg.Observer,
		peers:     append([]region.Peer(nil), cfg.Peers...),
		ctx:       ctx,
		cancel:    cancel,
		log:       logpkg.New("raftnode"),
	}

	raftPeers := make([]raft.Peer, 0, len(cfg.Peers))
	for _, p := range cfg.Peers {
		if p.Role == region.Voter {
			raftPeers = append(raftPeers, raft.Peer{ID: p.StoreID})
		}
	}
	restart := (cfg.Meta != nil && cfg.Meta.AppliedIndex > 0) || len(raftPeers) == 0
	if restart {
		n.raft = raft.RestartNode(raftConfig)
	} else {
		n.raft = raft.StartNode(raftConfig, raftPeers)
	}

	n.wg.Add(1)
	go n.run()
	return n
}

func (n *raftNode) stop() {
	n.cancel()
	n.wg.Wait()
	n.raft.Stop()
}

func (n *raftNode) run() {
	defer n.wg.Done()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n.raft.Tick()

		case rd := <-n.raft.Ready():
			if !raft.IsEmptyHardState(rd.HardState) {
				if err := n.storage.SetHardState(rd.HardState); err != nil {
					n.log.Errorf("region %d persist hard state: %v", n.regionID, err)
				}
				n.meta.Term = rd.HardState.Term
			}
			if len(rd.Entries) > 0 {
				if err := n.storage.Append(rd.Entries); err != nil {
					n.log.Errorf("region %d append entries: %v", n.regionID, err)
				}
			}
			n.sendMessages(rd.Messages)
			if !raft.IsEmptySnap(rd.Snapshot) {
				if err := n.storage.ApplySnapshot(rd.Snapshot); err != nil {
					n.log.Errorf("region %d apply snapshot: %v", n.regionID, err)
				}
				n.observeApplied(rd.Snapshot.Metadata.Index)
			}
			n.applyCommits(rd.CommittedEntries)
			n.raft.Advance()

		case <-n.ctx.Done():
			return
		}
	}
}

func (n *raftNode) sendMessages(messages []raftpb.Message) {
	for _, msg := range messages {
		if msg.To == 0 {
			continue
		}
		if err := n.transport.Send(msg.To, []raftpb.Message{msg}); err != nil {
			n.log.Warnf("region %d send to %d: %v", n.regionID, msg.To, err)
		}
	}
}

func (n *raftNode) applyCommits(entries []raftpb.Entry) {
	for _, entry := range entries {
		switch entry.Type {
		case raftpb.EntryNormal:
			if len(entry.Data) > 0 && n.listener != nil {
				n.listener.OnApply(n.regionID, entry.Index, entry.Data)
			}
		case raftpb.EntryConfChange:
			var cc raftpb.ConfChange
			if err := cc.Unmarshal(entry.Data); err != nil {
				n.log.Errorf("region %d decode conf change: %v", n.regionID, err)
				continue
			}
			state := n.raft.ApplyConfChange(cc)
			if err := n.storage.SetConfState(state); err != nil {
				n.log.Errorf("region %d persist conf state: %v", n.regionID, err)
			}
		}
		n.observeApplied(entry.Index)
	}
}

func (n *raftNode) observeApplied(index uint64) {
	if index <= n.meta.AppliedIndex {
		return
	}
	n.meta.AppliedIndex = index
	if n.observer != nil {
		n.observer.ObserveApplied(n.regionID, index)
	}
	if n.metas != nil {
		if err := n.metas.Update(n.meta); err != nil {
			n.log.Warnf("region %d persist raft meta: %v", n.regionID, err)
		}
	}
}

func (n *raftNode) propose(ctx context.Context, data []byte) error {
	proposeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return n.raft.Propose(proposeCtx, data)
}

func (n *raftNode) proposeConfChange(ctx context.Context, cc raftpb.ConfChange) error {
	proposeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return n.raft.ProposeConfChange(proposeCtx, cc)
}

// Step processes an incoming raft message from the transport.
func (n *raftNode) Step(ctx context.Context, msg raftpb.Message) error {
	return n.raft.Step(ctx, msg)
}

func (n *raftNode) IsLeader() bool {
	return n.raft.Status().Lead == n.peerID
}

func (n *raftNode) LeaderID() uint64 {
	return n.raft.Status().Lead
}

func (n *raftNode) PeerID() uint64 {
	return n.peerID
}

func (n *raftNode) ListPeers() []region.Peer {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]region.Peer(nil), n.peers...)
}

func (n *raftNode) setPeers(peers []region.Peer) {
	n.mu.Lock()
	n.peers = append([]region.Peer(nil), peers...)
	n.mu.Unlock()
}

func (n *raftNode) appliedIndex() uint64 {
	return n.meta.AppliedIndex
}
