package controller

import (
	"context"
	"sync"

	"vexdb/internal/command"
	"vexdb/internal/errs"
	"vexdb/internal/heartbeat"
	logpkg "vexdb/internal/log"
	"vexdb/internal/meta"
	"vexdb/internal/metrics"
	"vexdb/internal/noderpc"
	"vexdb/internal/raftstore"
	"vexdb/internal/storage"
	"vexdb/internal/vectorindex"
)

// Role is the cluster role of this node.
type Role int

const (
	RoleStore Role = iota
	RoleIndex
)

// Services bundles the subsystems the controller drives. It replaces a
// process-global locator; construction order is engines → meta stores →
// controller Init → controller Recover, teardown reverse.
type Services struct {
	StoreID uint64
	Role    Role

	Meta          *meta.Store
	Commands      *command.Log
	Engine        raftstore.Engine
	RaftMetas     *raftstore.MetaStore
	Raw           *storage.Engine
	VectorIndexes *vectorindex.Manager
	Metrics       *metrics.RegionMetrics
	Heartbeat     Notifier
	PeerChecker   noderpc.Checker
	Listener      raftstore.Listener
}

// Notifier triggers a prompt store heartbeat after a command completes.
type Notifier interface {
	TriggerStoreHeartbeat(regionID uint64)
}

var _ Notifier = (*heartbeat.Heartbeat)(nil)

// ValidateFunc pre-validates a command at the RPC ingress, before it is
// persisted or enqueued.
type ValidateFunc func(cmd *command.RegionCmd) error

// Controller routes region control commands onto per-region executors and
// drives executor lifecycle.
type Controller struct {
	mu        sync.Mutex
	services  *Services
	executors map[uint64]*RegionControlExecutor
	shared    *Executor
	log       *logpkg.Logger
}

// NewController builds the controller over its services.
func NewController(services *Services) *Controller {
	return &Controller{
		services:  services,
		executors: make(map[uint64]*RegionControlExecutor),
		log:       logpkg.New("regioncontroller"),
	}
}

// Init constructs the shared executor and one executor per alive region.
func (c *Controller) Init() error {
	c.shared = NewExecutor()
	if !c.shared.Init() {
		return errs.New(errs.KindInternal, "share executor init failed")
	}

	for _, r := range c.services.Meta.GetAllAliveRegion() {
		if !c.RegisterExecutor(r.ID()) {
			return errs.Newf(errs.KindInternal, "register region control executor failed, region %d", r.ID())
		}
	}
	return nil
}

// Recover re-dispatches every command still in status NONE. It goes through
// InnerDispatch: the commands are already in the log.
func (c *Controller) Recover() error {
	for _, cmd := range c.services.Commands.GetByStatus(command.StatusNone) {
		if err := c.InnerDispatch(context.Background(), cmd); err != nil {
			c.log.Errorf("recover region control command %d failed: %v", cmd.ID, err)
		}
	}
	return nil
}

// Destroy stops every per-region executor, then the shared executor.
// Executors are stopped outside the map lock so draining tasks that call
// back into the controller cannot deadlock.
func (c *Controller) Destroy() {
	c.mu.Lock()
	executors := make([]*RegionControlExecutor, 0, len(c.executors))
	for _, executor := range c.executors {
		executors = append(executors, executor)
	}
	c.executors = make(map[uint64]*RegionControlExecutor)
	c.mu.Unlock()

	for _, executor := range executors {
		executor.Stop()
	}
	c.shared.Stop()
}

// ExecutorRegions lists region ids with a live executor.
func (c *Controller) ExecutorRegions() []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]uint64, 0, len(c.executors))
	for id := range c.executors {
		ids = append(ids, id)
	}
	return ids
}

// RegisterExecutor creates and starts the region's executor; idempotent.
func (c *Controller) RegisterExecutor(regionID uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.executors[regionID]; !exists {
		executor := NewRegionControlExecutor(regionID)
		if !executor.Init() {
			c.log.Errorf("region control executor init failed, region %d", regionID)
			return false
		}
		c.executors[regionID] = executor
	}
	return true
}

// UnRegisterExecutor removes the executor from the map, then stops it
// outside the lock so its draining tasks don't deadlock against the map.
func (c *Controller) UnRegisterExecutor(regionID uint64) {
	var executor *RegionControlExecutor
	c.mu.Lock()
	if e, ok := c.executors[regionID]; ok {
		executor = e
		delete(c.executors, regionID)
	}
	c.mu.Unlock()

	if executor != nil {
		executor.Stop()
	}
}

// GetRegionControlExecutor returns the region's executor, or nil.
func (c *Controller) GetRegionControlExecutor(regionID uint64) *RegionControlExecutor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.executors[regionID]
}

// DispatchRegionControlCommand dedups against the command log, persists the
// command with status NONE and routes it to an executor. A crash after this
// returns OK leaves the command recoverable.
func (c *Controller) DispatchRegionControlCommand(ctx context.Context, cmd *command.RegionCmd) error {
	if c.services.Commands.IsExist(cmd.ID) {
		return errs.Newf(errs.KindRepeatCommand, "repeat region control command %d", cmd.ID)
	}
	if err := c.services.Commands.Add(cmd); err != nil {
		return errs.Newf(errs.KindInternal, "save region control command %d: %v", cmd.ID, err)
	}

	return c.InnerDispatch(ctx, cmd)
}

// InnerDispatch routes an already-persisted command to its executor.
func (c *Controller) InnerDispatch(ctx context.Context, cmd *command.RegionCmd) error {
	c.log.Debugf("dispatch region control command, region %d id %d %s", cmd.RegionID, cmd.ID, cmd.Type)

	// CREATE brings its own executor into existence.
	if cmd.Type == command.TypeCreate {
		c.RegisterExecutor(cmd.RegionID)
	}

	var executor *Executor
	if cmd.Type == command.TypePurge || cmd.Type == command.TypeDestroyExecutor {
		executor = c.shared
	} else if regionExecutor := c.GetRegionControlExecutor(cmd.RegionID); regionExecutor != nil {
		executor = &regionExecutor.Executor
	}
	if executor == nil {
		c.log.Errorf("not find region control executor, region %d", cmd.RegionID)
		return errs.Newf(errs.KindRegionNotFound, "not find region control executor for region %d", cmd.RegionID)
	}

	builder, ok := taskBuilders[cmd.Type]
	if !ok {
		c.log.Errorf("not exist region control command %s", cmd.Type)
		return errs.New(errs.KindInternal, "not exist region control command")
	}
	task := builder(c, ctx, cmd)
	if task == nil {
		c.log.Errorf("not support region control command %s", cmd.Type)
		return errs.New(errs.KindInternal, "not support region control command")
	}
	if !executor.Execute(task) {
		return errs.New(errs.KindInternal, "execute region control command failed")
	}
	return nil
}

// GetValidater returns the pre-validation function for a command type, or
// nil where the type has none (MERGE, SNAPSHOT, DESTROY_EXECUTOR,
// SNAPSHOT_VECTOR_INDEX).
func (c *Controller) GetValidater(cmdType command.Type) ValidateFunc {
	preValidate, ok := preValidaters[cmdType]
	if !ok {
		return nil
	}
	services := c.services
	return func(cmd *command.RegionCmd) error {
		return preValidate(services, cmd)
	}
}
