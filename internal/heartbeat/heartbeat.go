package heartbeat

import (
	"context"
	"sync"
	"time"

	"vexdb/internal/command"
	logpkg "vexdb/internal/log"
	"vexdb/internal/meta"
	region "vexdb/internal/region"
)

// RegionHeartbeat carries metadata about one region replica on this store.
type RegionHeartbeat struct {
	Region       region.Region
	StoreID      uint64
	AppliedIndex uint64
	IsLeader     bool
}

// CommandStatus reports a command's outcome back to the coordinator.
type CommandStatus struct {
	ID       uint64
	RegionID uint64
	Type     command.Type
	Status   command.Status
}

// StoreHeartbeat aggregates what this store reports to the coordinator.
type StoreHeartbeat struct {
	StoreID   uint64
	Address   string
	Regions   []RegionHeartbeat
	Commands  []CommandStatus
	Timestamp time.Time
}

// Coordinator consumes store heartbeats. The wire client lives behind it.
type Coordinator interface {
	HandleHeartbeat(StoreHeartbeat)
}

// AppliedSource resolves a region's applied raft index and leadership.
type AppliedSource interface {
	AppliedOf(regionID uint64) (applied uint64, isLeader bool)
}

// Heartbeat periodically reports region and command state, and supports
// immediate triggers after a command completes.
type Heartbeat struct {
	storeID     uint64
	address     string
	meta        *meta.Store
	commands    *command.Log
	coordinator Coordinator
	applied     AppliedSource
	interval    time.Duration

	trigger chan uint64
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	log     *logpkg.Logger
}

// New builds the heartbeat reporter. coordinator may be nil, in which case
// triggers are dropped.
func New(storeID uint64, address string, metaStore *meta.Store, commands *command.Log,
	coordinator Coordinator, applied AppliedSource, interval time.Duration) *Heartbeat {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Heartbeat{
		storeID:     storeID,
		address:     address,
		meta:        metaStore,
		commands:    commands,
		coordinator: coordinator,
		applied:     applied,
		interval:    interval,
		trigger:     make(chan uint64, 64),
		ctx:         ctx,
		cancel:      cancel,
		log:         logpkg.New("heartbeat"),
	}
}

// Start launches the reporter loop.
func (h *Heartbeat) Start() {
	h.wg.Add(1)
	go h.run()
}

// Stop terminates the loop and waits for it.
func (h *Heartbeat) Stop() {
	h.cancel()
	h.wg.Wait()
}

// TriggerStoreHeartbeat requests a prompt full store heartbeat. regionID is
// only logged; the heartbeat does not name it. Never blocks; a full trigger
// queue collapses into the next periodic beat.
func (h *Heartbeat) TriggerStoreHeartbeat(regionID uint64) {
	select {
	case h.trigger <- regionID:
	default:
	}
}

func (h *Heartbeat) run() {
	defer h.wg.Done()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.send()
		case regionID := <-h.trigger:
			h.log.Debugf("heartbeat triggered by region %d", regionID)
			h.send()
		case <-h.ctx.Done():
			return
		}
	}
}

func (h *Heartbeat) send() {
	if h.coordinator == nil {
		return
	}
	hb := StoreHeartbeat{
		StoreID:   h.storeID,
		Address:   h.address,
		Timestamp: time.Now(),
	}
	for _, r := range h.meta.GetAllAliveRegion() {
		entry := RegionHeartbeat{Region: *r, StoreID: h.storeID}
		if h.applied != nil {
			entry.AppliedIndex, entry.IsLeader = h.applied.AppliedOf(r.ID())
		}
		hb.Regions = append(hb.Regions, entry)
	}
	for _, cmd := range h.commands.All() {
		hb.Commands = append(hb.Commands, CommandStatus{
			ID:       cmd.ID,
			RegionID: cmd.RegionID,
			Type:     cmd.Type,
			Status:   cmd.Status,
		})
	}
	h.coordinator.HandleHeartbeat(hb)
}
