package server

import (
	"context"
	"path/filepath"
	"time"

	"vexdb/internal/command"
	"vexdb/internal/config"
	"vexdb/internal/controller"
	"vexdb/internal/heartbeat"
	logpkg "vexdb/internal/log"
	"vexdb/internal/meta"
	"vexdb/internal/metastore"
	"vexdb/internal/metrics"
	"vexdb/internal/noderpc"
	"vexdb/internal/raftstore"
	"vexdb/internal/storage"
	"vexdb/internal/vectorindex"
)

// Server wires the store-node subsystems in their documented order:
// engines → meta stores → controller.Init → controller.Recover. Teardown
// runs in reverse.
type Server struct {
	cfg *config.ServerConfig

	metaStore  *metastore.Store
	regions    *meta.Store
	commands   *command.Log
	raftMetas  *raftstore.MetaStore
	raw        *storage.Engine
	engine     *raftstore.RaftEngine
	indexes    *vectorindex.Manager
	metrics    *metrics.RegionMetrics
	heartbeat  *heartbeat.Heartbeat
	peerClient *noderpc.Client
	controller *controller.Controller

	grpc *grpcServer
	log  *logpkg.Logger

	cancelMetrics context.CancelFunc
}

// New constructs the server; nothing is started yet.
func New(cfg *config.ServerConfig, coordinator heartbeat.Coordinator) (*Server, error) {
	s := &Server{cfg: cfg, log: logpkg.New("server")}

	raw, err := storage.Open(filepath.Join(cfg.Dir, "data"))
	if err != nil {
		return nil, err
	}
	s.raw = raw

	metaStore, err := metastore.Open(filepath.Join(cfg.Dir, "meta"))
	if err != nil {
		_ = raw.Close()
		return nil, err
	}
	s.metaStore = metaStore

	s.regions = meta.NewStore(metaStore)
	if err := s.regions.Init(); err != nil {
		s.closeStores()
		return nil, err
	}
	s.commands = command.NewLog(metaStore)
	if err := s.commands.Init(); err != nil {
		s.closeStores()
		return nil, err
	}
	s.raftMetas = raftstore.NewMetaStore(metaStore)
	if err := s.raftMetas.Init(); err != nil {
		s.closeStores()
		return nil, err
	}

	s.engine = raftstore.NewRaftEngine(cfg.Dir, cfg.StoreID, raftstore.NewNoopTransport(), s.raftMetas)
	s.indexes = vectorindex.NewManager(s.regions, filepath.Join(cfg.Dir, "vectorindex"))
	s.metrics = metrics.NewRegionMetrics(nil, "vexdb")
	s.peerClient = noderpc.NewClient()

	interval := time.Duration(cfg.Coordinator.HeartbeatSeconds) * time.Second
	s.heartbeat = heartbeat.New(cfg.StoreID, cfg.Raft.Address, s.regions, s.commands,
		coordinator, appliedSource{s}, interval)

	role := controller.RoleStore
	if cfg.IsIndexRole() {
		role = controller.RoleIndex
	}
	s.controller = controller.NewController(&controller.Services{
		StoreID:       cfg.StoreID,
		Role:          role,
		Meta:          s.regions,
		Commands:      s.commands,
		Engine:        s.engine,
		RaftMetas:     s.raftMetas,
		Raw:           s.raw,
		VectorIndexes: s.indexes,
		Metrics:       s.metrics,
		Heartbeat:     s.heartbeat,
		PeerChecker:   s.peerClient,
		Listener:      &applyListener{server: s},
	})

	s.grpc = newGRPCServer(cfg.GRPC.Address, s.controller, s.indexes)
	return s, nil
}

// Start brings the node up: controller init, command recovery, heartbeats,
// RPC and metrics surfaces.
func (s *Server) Start() error {
	if err := s.controller.Init(); err != nil {
		return err
	}
	if err := s.controller.Recover(); err != nil {
		return err
	}
	s.heartbeat.Start()

	if err := s.grpc.Start(); err != nil {
		return err
	}
	if s.cfg.Metrics.Address != "" {
		ctx, cancel := context.WithCancel(context.Background())
		s.cancelMetrics = cancel
		if err := metrics.StartServer(ctx, s.cfg.Metrics.Address); err != nil {
			return err
		}
	}
	s.log.Infof("store %d started", s.cfg.StoreID)
	return nil
}

// Stop tears the node down in reverse order of Start.
func (s *Server) Stop() {
	if s.cancelMetrics != nil {
		s.cancelMetrics()
	}
	s.grpc.Stop()
	s.heartbeat.Stop()
	s.controller.Destroy()
	s.engine.Close()
	_ = s.peerClient.Close()
	s.closeStores()
	s.log.Infof("store %d stopped", s.cfg.StoreID)
}

// Controller exposes the region controller, e.g. for admin surfaces.
func (s *Server) Controller() *controller.Controller {
	return s.controller
}

func (s *Server) closeStores() {
	if s.metaStore != nil {
		if err := s.metaStore.Close(); err != nil {
			s.log.Errorf("close metastore: %v", err)
		}
		s.metaStore = nil
	}
	if s.raw != nil {
		if err := s.raw.Close(); err != nil {
			s.log.Errorf("close raw engine: %v", err)
		}
		s.raw = nil
	}
}

// appliedSource feeds heartbeat region entries from raft state.
type appliedSource struct {
	s *Server
}

func (a appliedSource) AppliedOf(regionID uint64) (uint64, bool) {
	var applied uint64
	if m := a.s.raftMetas.Get(regionID); m != nil {
		applied = m.AppliedIndex
	}
	node := a.s.engine.GetNode(regionID)
	return applied, node != nil && node.IsLeader()
}

// applyListener is the state-machine side of the raft engine. It records
// apply progress in the region metrics and, on index nodes, the HNSW index's
// apply log id. It does not decode applied entries; split log entries are not
// carried out here.
type applyListener struct {
	server *Server
}

func (l *applyListener) OnApply(regionID uint64, index uint64, data []byte) {
	s := l.server
	s.metrics.ObserveApplied(regionID, index)
	if s.cfg.IsIndexRole() {
		if idx := s.indexes.GetVectorIndex(regionID); idx != nil {
			if hnsw, ok := idx.(*vectorindex.HNSWIndex); ok {
				hnsw.SetApplyLogID(index)
			}
		}
	}
}
