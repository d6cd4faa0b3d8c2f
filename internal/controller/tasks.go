package controller

import (
	"context"
	"encoding/json"
	"fmt"

	"vexdb/internal/command"
	"vexdb/internal/errs"
	"vexdb/internal/raftstore"
	region "vexdb/internal/region"
	"vexdb/internal/storage"
	"vexdb/internal/vectorindex"
)

type taskBuilder func(c *Controller, ctx context.Context, cmd *command.RegionCmd) Task

// taskBuilders maps command types to their handlers. MERGE intentionally
// builds nil: dispatch rejects it as unsupported.
var taskBuilders = map[command.Type]taskBuilder{
	command.TypeCreate: func(c *Controller, ctx context.Context, cmd *command.RegionCmd) Task {
		return &createRegionTask{baseTask{c, ctx, cmd}}
	},
	command.TypeDelete: func(c *Controller, ctx context.Context, cmd *command.RegionCmd) Task {
		return &deleteRegionTask{baseTask{c, ctx, cmd}}
	},
	command.TypeSplit: func(c *Controller, ctx context.Context, cmd *command.RegionCmd) Task {
		return &splitRegionTask{baseTask{c, ctx, cmd}}
	},
	command.TypeMerge: func(*Controller, context.Context, *command.RegionCmd) Task {
		return nil
	},
	command.TypeChangePeer: func(c *Controller, ctx context.Context, cmd *command.RegionCmd) Task {
		return &changeRegionTask{baseTask{c, ctx, cmd}}
	},
	command.TypeTransferLeader: func(c *Controller, ctx context.Context, cmd *command.RegionCmd) Task {
		return &transferLeaderTask{baseTask{c, ctx, cmd}}
	},
	command.TypeSnapshot: func(c *Controller, ctx context.Context, cmd *command.RegionCmd) Task {
		return &snapshotRegionTask{baseTask{c, ctx, cmd}}
	},
	command.TypePurge: func(c *Controller, ctx context.Context, cmd *command.RegionCmd) Task {
		return &purgeRegionTask{baseTask{c, ctx, cmd}}
	},
	command.TypeStop: func(c *Controller, ctx context.Context, cmd *command.RegionCmd) Task {
		return &stopRegionTask{baseTask{c, ctx, cmd}}
	},
	command.TypeDestroyExecutor: func(c *Controller, ctx context.Context, cmd *command.RegionCmd) Task {
		return &destroyExecutorTask{baseTask{c, ctx, cmd}}
	},
	command.TypeSnapshotVectorIndex: func(c *Controller, ctx context.Context, cmd *command.RegionCmd) Task {
		return &snapshotVectorIndexTask{baseTask{c, ctx, cmd}}
	},
	command.TypeUpdateDefinition: func(c *Controller, ctx context.Context, cmd *command.RegionCmd) Task {
		return &updateDefinitionTask{baseTask{c, ctx, cmd}}
	},
	command.TypeSwitchSplit: func(c *Controller, ctx context.Context, cmd *command.RegionCmd) Task {
		return &switchSplitTask{baseTask{c, ctx, cmd}}
	},
	command.TypeHoldVectorIndex: func(c *Controller, ctx context.Context, cmd *command.RegionCmd) Task {
		return &holdVectorIndexTask{baseTask{c, ctx, cmd}}
	},
}

type preValidateFunc func(services *Services, cmd *command.RegionCmd) error

// preValidaters holds the cheap ingress checks. Types absent here have none.
var preValidaters = map[command.Type]preValidateFunc{
	command.TypeCreate: func(services *Services, cmd *command.RegionCmd) error {
		return validateCreateRegion(services, cmd.RegionID)
	},
	command.TypeDelete: func(services *Services, cmd *command.RegionCmd) error {
		return validateDeleteRegion(services.Meta.GetRegion(cmd.RegionID))
	},
	command.TypeSplit: func(services *Services, cmd *command.RegionCmd) error {
		return validateSplitRegion(context.Background(), services, cmd.Split)
	},
	command.TypeChangePeer: func(services *Services, cmd *command.RegionCmd) error {
		if cmd.ChangePeer == nil {
			return errs.New(errs.KindIllegalParameters, "change peer request is missing")
		}
		return validateChangeRegion(services, cmd.ChangePeer.Definition)
	},
	command.TypeTransferLeader: func(services *Services, cmd *command.RegionCmd) error {
		if cmd.TransferLeader == nil {
			return errs.New(errs.KindIllegalParameters, "transfer leader request is missing")
		}
		return validateTransferLeader(services, cmd.RegionID, cmd.TransferLeader.Peer)
	},
	command.TypePurge: func(services *Services, cmd *command.RegionCmd) error {
		return validatePurgeRegion(services.Meta.GetRegion(cmd.RegionID))
	},
	command.TypeStop: func(services *Services, cmd *command.RegionCmd) error {
		return validateStopRegion(services.Meta.GetRegion(cmd.RegionID))
	},
	command.TypeUpdateDefinition: func(services *Services, cmd *command.RegionCmd) error {
		return validateUpdateDefinition(services.Meta.GetRegion(cmd.RegionID))
	},
	command.TypeSwitchSplit: func(services *Services, cmd *command.RegionCmd) error {
		if cmd.SwitchSplit == nil {
			return errs.New(errs.KindIllegalParameters, "switch split request is missing")
		}
		if services.Meta.GetRegion(cmd.SwitchSplit.RegionID) == nil {
			return errs.Newf(errs.KindRegionNotFound, "not found region %d", cmd.SwitchSplit.RegionID)
		}
		return nil
	},
	command.TypeHoldVectorIndex: func(services *Services, cmd *command.RegionCmd) error {
		if cmd.HoldVectorIndex == nil {
			return errs.New(errs.KindIllegalParameters, "hold vector index request is missing")
		}
		return validateHoldVectorIndex(services, cmd.HoldVectorIndex.RegionID)
	},
}

// notifyOnFinish marks which command types trigger a store heartbeat on
// completion when the command asked for notification.
var notifyOnFinish = map[command.Type]bool{
	command.TypeCreate:              true,
	command.TypeDelete:              true,
	command.TypeSplit:               true,
	command.TypeMerge:               false,
	command.TypeChangePeer:          true,
	command.TypeTransferLeader:      true,
	command.TypeSnapshot:            false,
	command.TypePurge:               true,
	command.TypeStop:                false,
	command.TypeDestroyExecutor:     false,
	command.TypeSnapshotVectorIndex: false,
	command.TypeUpdateDefinition:    true,
	command.TypeSwitchSplit:         true,
	command.TypeHoldVectorIndex:     true,
}

type baseTask struct {
	c   *Controller
	ctx context.Context
	cmd *command.RegionCmd
}

// finish writes the command's final status and optionally notifies the
// coordinator. Shared by every task's Run.
func (t *baseTask) finish(err error) {
	services := t.c.services
	status := command.StatusDone
	if err != nil {
		status = command.StatusFail
		t.c.log.Debugf("region %d command %d %s failed: %v", t.cmd.RegionID, t.cmd.ID, t.cmd.Type, err)
	}
	if uerr := services.Commands.UpdateStatus(t.cmd, status); uerr != nil {
		t.c.log.Errorf("update command %d status: %v", t.cmd.ID, uerr)
	}
	if services.Metrics != nil {
		services.Metrics.IncCommand(t.cmd.Type.String(), status.String())
	}
	if t.cmd.IsNotify && notifyOnFinish[t.cmd.Type] && services.Heartbeat != nil {
		services.Heartbeat.TriggerStoreHeartbeat(t.cmd.RegionID)
	}
}

// --- CREATE ---

func validateCreateRegion(services *Services, regionID uint64) error {
	r := services.Meta.GetRegion(regionID)
	if r != nil && r.State != region.StateNew {
		return errs.Newf(errs.KindRegionExist, "region %d already exist", regionID)
	}
	return nil
}

func createRegion(c *Controller, ctx context.Context, def region.Definition, splitFromRegionID uint64) error {
	services := c.services
	r := region.New(def)
	regionID := r.ID()

	if err := validateCreateRegion(services, regionID); err != nil {
		return err
	}

	if existing := services.Meta.GetRegion(regionID); existing == nil {
		if err := services.Meta.AddRegion(r); err != nil {
			return err
		}
	}

	if services.Metrics != nil {
		services.Metrics.AddRegion(regionID)
	}

	if services.Engine.Type() == raftstore.EngineTypeRaft {
		var raftMeta *raftstore.RaftMeta
		if services.RaftMetas != nil {
			raftMeta = services.RaftMetas.Get(regionID)
		}
		if raftMeta == nil {
			raftMeta = raftstore.NewRaftMeta(regionID)
			if services.RaftMetas != nil {
				if err := services.RaftMetas.Add(raftMeta); err != nil {
					return errs.Newf(errs.KindInternal, "save raft meta for region %d: %v", regionID, err)
				}
			}
		}
		var observer raftstore.AppliedObserver
		if services.Metrics != nil {
			observer = services.Metrics
		}
		if err := services.Engine.AddNode(ctx, r, raftMeta, observer, services.Listener); err != nil {
			return err
		}
	}

	state := region.StateNormal
	if splitFromRegionID != 0 {
		state = region.StateStandby
	}
	if err := services.Meta.UpdateState(regionID, state); err != nil {
		return err
	}
	if services.Metrics != nil {
		services.Metrics.ObserveRegion(services.Meta.GetRegion(regionID))
	}
	return nil
}

type createRegionTask struct {
	baseTask
}

func (t *createRegionTask) Run() {
	t.finish(createRegion(t.c, t.ctx, t.cmd.Create.Definition, t.cmd.Create.SplitFromRegionID))
}

// --- DELETE ---

func validateDeleteRegion(r *region.Region) error {
	if r == nil {
		return errs.New(errs.KindRegionNotFound, "region is not exist, can't delete")
	}
	if r.State == region.StateDeleting || r.State == region.StateDeleted {
		return errs.New(errs.KindRegionDeleting, "region is deleting or deleted")
	}
	if r.State == region.StateSplitting || r.State == region.StateMerging {
		return errs.New(errs.KindRegionState, "region state not allow delete")
	}
	return nil
}

// deleteRegion tears a region down in durably-ordered steps. Each step
// tolerates "already done" so that recovery can re-drive the chain from
// whichever step was last durable. A missing region row counts as DELETED.
func deleteRegion(c *Controller, ctx context.Context, regionID uint64) error {
	services := c.services
	r := services.Meta.GetRegion(regionID)
	if r == nil {
		c.log.Infof("region %d already deleted", regionID)
		return nil
	}

	if r.State != region.StateDeleting && r.State != region.StateDeleted {
		if err := validateDeleteRegion(r); err != nil {
			return err
		}
	}

	if r.State != region.StateDeleted {
		if err := services.Meta.UpdateState(regionID, region.StateDeleting); err != nil {
			return err
		}

		if services.Raw != nil {
			writer := services.Raw.NewWriter(storage.DataCF)
			if err := writer.KvBatchDeleteRange(r.RawRange()); err != nil {
				return errs.Newf(errs.KindInternal, "delete region %d data: %v", regionID, err)
			}
		}

		if services.Engine.Type() == raftstore.EngineTypeRaft {
			if err := services.Engine.DestroyNode(ctx, regionID); err != nil {
				return err
			}
		}

		if err := services.Meta.UpdateState(regionID, region.StateDeleted); err != nil {
			return err
		}
	}

	if services.Metrics != nil {
		services.Metrics.RemoveRegion(regionID)
	}

	if services.RaftMetas != nil {
		if err := services.RaftMetas.Delete(regionID); err != nil {
			return errs.Newf(errs.KindInternal, "delete raft meta for region %d: %v", regionID, err)
		}
	}

	if services.Role == RoleIndex && services.VectorIndexes != nil {
		services.VectorIndexes.DeleteVectorIndex(regionID)
		services.VectorIndexes.GetVectorIndexSnapshotManager().DeleteSnapshots(regionID)
	}

	// The per-region executor is running this very task; its teardown goes
	// through the shared executor.
	destroy := command.NewDestroyExecutor(regionID)
	if err := c.DispatchRegionControlCommand(ctx, destroy); err != nil {
		c.log.Errorf("dispatch destroy executor command failed, region %d: %v", regionID, err)
	}

	return services.Meta.DeleteRegion(regionID)
}

type deleteRegionTask struct {
	baseTask
}

func (t *deleteRegionTask) Run() {
	t.finish(deleteRegion(t.c, t.ctx, t.cmd.Delete.RegionID))
}

// --- SPLIT ---

func validateSplitRegion(ctx context.Context, services *Services, req *command.SplitRequest) error {
	if req == nil {
		return errs.New(errs.KindIllegalParameters, "split request is missing")
	}
	parent := services.Meta.GetRegion(req.SplitFromRegionID)
	if parent == nil {
		return errs.New(errs.KindRegionNotFound, "parent region not exist")
	}
	child := services.Meta.GetRegion(req.SplitToRegionID)
	if child == nil {
		return errs.New(errs.KindRegionNotFound, "child region not exist")
	}

	if !parent.RawRange().StrictlyContains(req.SplitWatershedKey) {
		return errs.New(errs.KindKeyInvalid, "split key is invalid")
	}

	if parent.State == region.StateSplitting {
		return errs.New(errs.KindRegionSplitting, "parent region state is splitting")
	}
	switch parent.State {
	case region.StateNew, region.StateMerging, region.StateDeleting, region.StateDeleted:
		return errs.New(errs.KindRegionState, "parent region state not allow split")
	}

	if services.Engine.Type() == raftstore.EngineTypeRaft {
		node := services.Engine.GetNode(req.SplitFromRegionID)
		if node == nil {
			return errs.New(errs.KindRaftNotFound, "no found raft node")
		}
		if !node.IsLeader() {
			return errs.Newf(errs.KindRaftNotLeader, "leader is peer %d", node.LeaderID())
		}

		if parent.Type() == region.IndexRegion {
			// Every follower must already hold the vector index, or the
			// split would leave the child without one.
			selfID := node.PeerID()
			for _, peer := range node.ListPeers() {
				if peer.StoreID == selfID {
					continue
				}
				addr := fmt.Sprintf("%s:%d", peer.RaftLocation.Host, peer.RaftLocation.Port)
				exist, err := services.PeerChecker.CheckVectorIndex(ctx, req.SplitFromRegionID, addr)
				if err != nil {
					return errs.Newf(errs.KindVectorIndexNotFound,
						"check peer %s hold vector index %d failed: %v", addr, req.SplitFromRegionID, err)
				}
				if !exist {
					return errs.Newf(errs.KindVectorIndexNotFound,
						"not found vector index %d at peer %s", req.SplitFromRegionID, addr)
				}
			}
		}
	}
	return nil
}

// splitLogEntry is the raft log payload a SPLIT submits; once applied it is
// handed to the engine's Listener.
type splitLogEntry struct {
	SplitFromRegionID uint64 `json:"split_from_region_id"`
	SplitToRegionID   uint64 `json:"split_to_region_id"`
	SplitWatershedKey []byte `json:"split_watershed_key"`
}

func splitRegion(c *Controller, ctx context.Context, req *command.SplitRequest) error {
	services := c.services
	if err := validateSplitRegion(ctx, services, req); err != nil {
		return err
	}

	entry := splitLogEntry{
		SplitFromRegionID: req.SplitFromRegionID,
		SplitToRegionID:   req.SplitToRegionID,
		SplitWatershedKey: req.SplitWatershedKey,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return errs.Newf(errs.KindInternal, "encode split log entry: %v", err)
	}

	// The handler's contract ends at log submission; what happens when the
	// entry is applied is up to the engine's Listener.
	log := c.log
	return services.Engine.AsyncWrite(ctx, req.SplitFromRegionID, data, func(err error) {
		if err != nil {
			log.Errorf("write split failed, region %d -> %d: %v", req.SplitFromRegionID, req.SplitToRegionID, err)
		}
	})
}

type splitRegionTask struct {
	baseTask
}

func (t *splitRegionTask) Run() {
	t.finish(splitRegion(t.c, t.ctx, t.cmd.Split))
}

// --- CHANGE_PEER ---

func checkLeader(services *Services, regionID uint64) error {
	if services.Engine.Type() != raftstore.EngineTypeRaft {
		return nil
	}
	node := services.Engine.GetNode(regionID)
	if node == nil {
		return errs.New(errs.KindRaftNotFound, "no found raft node")
	}
	if !node.IsLeader() {
		return errs.Newf(errs.KindRaftNotLeader, "leader is peer %d", node.LeaderID())
	}
	return nil
}

func validateChangeRegion(services *Services, def region.Definition) error {
	r := services.Meta.GetRegion(def.ID)
	if r == nil {
		return errs.New(errs.KindRegionNotFound, "region not exist, can't change")
	}
	if r.State != region.StateNormal {
		return errs.New(errs.KindRegionState, "region state not allow change")
	}
	return checkLeader(services, def.ID)
}

func changeRegion(c *Controller, ctx context.Context, def region.Definition) error {
	services := c.services
	if err := validateChangeRegion(services, def); err != nil {
		return err
	}
	if services.Engine.Type() == raftstore.EngineTypeRaft {
		return services.Engine.ChangeNode(ctx, def.ID, def.Voters())
	}
	return nil
}

type changeRegionTask struct {
	baseTask
}

func (t *changeRegionTask) Run() {
	t.finish(changeRegion(t.c, t.ctx, t.cmd.ChangePeer.Definition))
}

// --- TRANSFER_LEADER ---

func validateTransferLeader(services *Services, regionID uint64, peer region.Peer) error {
	r := services.Meta.GetRegion(regionID)
	if r == nil {
		return errs.New(errs.KindRegionNotFound, "region not exist, can't transfer leader")
	}
	if r.State != region.StateNormal {
		return errs.New(errs.KindRegionState, "region state not allow transfer leader")
	}
	if peer.StoreID == services.StoreID {
		return errs.New(errs.KindRaftTransferLeader, "the peer is already leader, not need transfer")
	}
	if peer.RaftLocation.Host == "" || peer.RaftLocation.Host == "0.0.0.0" {
		return errs.New(errs.KindIllegalParameters, "raft location is invalid")
	}
	return nil
}

func transferLeader(c *Controller, regionID uint64, peer region.Peer) error {
	services := c.services
	if err := validateTransferLeader(services, regionID, peer); err != nil {
		return err
	}
	if services.Engine.Type() == raftstore.EngineTypeRaft {
		return services.Engine.TransferLeader(regionID, peer)
	}
	return nil
}

type transferLeaderTask struct {
	baseTask
}

func (t *transferLeaderTask) Run() {
	t.finish(transferLeader(t.c, t.cmd.RegionID, t.cmd.TransferLeader.Peer))
}

// --- SNAPSHOT ---

type snapshotRegionTask struct {
	baseTask
}

func (t *snapshotRegionTask) Run() {
	t.finish(t.c.services.Engine.DoSnapshot(t.ctx, t.cmd.RegionID))
}

// --- PURGE ---

func validatePurgeRegion(r *region.Region) error {
	if r == nil {
		return errs.New(errs.KindRegionNotFound, "region is not exist, can't purge")
	}
	if r.State != region.StateDeleted {
		return errs.New(errs.KindRegionDeleted, "region is not deleted, can't purge")
	}
	return nil
}

func purgeRegion(c *Controller, regionID uint64) error {
	services := c.services
	if err := validatePurgeRegion(services.Meta.GetRegion(regionID)); err != nil {
		return err
	}
	return services.Meta.DeleteRegion(regionID)
}

type purgeRegionTask struct {
	baseTask
}

func (t *purgeRegionTask) Run() {
	t.finish(purgeRegion(t.c, t.cmd.Purge.RegionID))
}

// --- STOP ---

func validateStopRegion(r *region.Region) error {
	if r == nil {
		return errs.New(errs.KindRegionNotFound, "region is not exist, can't stop")
	}
	if r.State != region.StateOrphan {
		return errs.New(errs.KindRegionState, "region is not orphan")
	}
	return nil
}

func stopRegion(c *Controller, ctx context.Context, regionID uint64) error {
	services := c.services
	if err := validateStopRegion(services.Meta.GetRegion(regionID)); err != nil {
		return err
	}
	// Stop keeps data; that is what distinguishes it from DELETE.
	if services.Engine.Type() == raftstore.EngineTypeRaft {
		return services.Engine.StopNode(ctx, regionID)
	}
	return nil
}

type stopRegionTask struct {
	baseTask
}

func (t *stopRegionTask) Run() {
	t.finish(stopRegion(t.c, t.ctx, t.cmd.Stop.RegionID))
}

// --- DESTROY_EXECUTOR ---

type destroyExecutorTask struct {
	baseTask
}

func (t *destroyExecutorTask) Run() {
	t.c.UnRegisterExecutor(t.cmd.DestroyExecutor.RegionID)
	t.finish(nil)
}

// --- SNAPSHOT_VECTOR_INDEX ---

func snapshotVectorIndex(c *Controller, vectorIndexID uint64) error {
	services := c.services
	if services.Meta.GetRegion(vectorIndexID) == nil {
		return errs.Newf(errs.KindRegionNotFound, "not found region %d", vectorIndexID)
	}
	if services.VectorIndexes == nil {
		return errs.New(errs.KindInternal, "vector index manager is nil")
	}
	idx := services.VectorIndexes.GetVectorIndex(vectorIndexID)
	if idx == nil {
		return errs.Newf(errs.KindVectorIndexNotFound, "not found vector index %d", vectorIndexID)
	}

	snapshotLogID, err := services.VectorIndexes.GetVectorIndexSnapshotManager().SaveVectorIndexSnapshot(idx)
	if err != nil {
		return err
	}
	services.VectorIndexes.UpdateSnapshotLogId(idx, snapshotLogID)
	return nil
}

type snapshotVectorIndexTask struct {
	baseTask
}

func (t *snapshotVectorIndexTask) Run() {
	t.finish(snapshotVectorIndex(t.c, t.cmd.SnapshotVectorIndex.VectorIndexID))
}

// --- UPDATE_DEFINITION ---

func validateUpdateDefinition(r *region.Region) error {
	if r == nil {
		return errs.New(errs.KindRegionNotFound, "region is not exist, can't update definition")
	}
	if r.State != region.StateNormal {
		return errs.New(errs.KindRegionState, "region state not allow change")
	}
	return nil
}

// updateDefinition currently supports only growing HNSW max_elements.
func updateDefinition(c *Controller, regionID uint64, newDef region.Definition) error {
	services := c.services
	r := services.Meta.GetRegion(regionID)
	if r == nil {
		return errs.Newf(errs.KindRegionNotFound, "not found region %d", regionID)
	}
	if services.VectorIndexes == nil {
		return errs.New(errs.KindInternal, "vector index manager is nil")
	}
	idx := services.VectorIndexes.GetVectorIndex(regionID)
	if idx == nil {
		return errs.Newf(errs.KindVectorIndexNotFound, "not found vector index %d", regionID)
	}

	if newDef.IndexParameter.HNSW == nil {
		return errs.Newf(errs.KindIllegalParameters, "not found hnsw index parameter in region cmd %d", regionID)
	}
	hnswIndex, ok := idx.(*vectorindex.HNSWIndex)
	if !ok {
		return errs.Newf(errs.KindVectorIndexNotFound, "not found hnsw index %d", regionID)
	}

	newMaxElements := newDef.IndexParameter.HNSW.MaxElements
	oldMaxElements := hnswIndex.MaxElements()
	if newMaxElements <= oldMaxElements {
		c.log.Infof("region %d new max elements %d <= old max elements %d, skip",
			regionID, newMaxElements, oldMaxElements)
		return nil
	}
	if err := hnswIndex.ResizeMaxElements(newMaxElements); err != nil {
		return errs.Newf(errs.KindVectorIndexResize, "resize hnsw index %d max elements: %v", regionID, err)
	}

	hnswParam := *newDef.IndexParameter.HNSW
	r.Definition.IndexParameter.HNSW = &hnswParam
	if err := services.Meta.UpdateRegion(r); err != nil {
		return err
	}
	c.log.Infof("region %d max elements %d -> %d, resize success", regionID, oldMaxElements, newMaxElements)
	return nil
}

type updateDefinitionTask struct {
	baseTask
}

func (t *updateDefinitionTask) Run() {
	t.finish(updateDefinition(t.c, t.cmd.RegionID, t.cmd.UpdateDefinition.NewDefinition))
}

// --- SWITCH_SPLIT ---

func switchSplit(c *Controller, regionID uint64, disableSplit bool) error {
	return c.services.Meta.SetDisableSplit(regionID, disableSplit)
}

type switchSplitTask struct {
	baseTask
}

func (t *switchSplitTask) Run() {
	t.finish(switchSplit(t.c, t.cmd.SwitchSplit.RegionID, t.cmd.SwitchSplit.DisableSplit))
}

// --- HOLD_VECTOR_INDEX ---

func validateHoldVectorIndex(services *Services, regionID uint64) error {
	if services.Meta.GetRegion(regionID) == nil {
		return errs.Newf(errs.KindRegionNotFound, "not found region %d", regionID)
	}
	// The command is addressed to followers asked to materialize the index
	// locally; the raft node must already exist.
	if services.Engine.Type() == raftstore.EngineTypeRaft {
		if services.Engine.GetNode(regionID) == nil {
			return errs.Newf(errs.KindRaftNotFound, "no found raft node %d", regionID)
		}
	}
	return nil
}

func holdVectorIndex(c *Controller, regionID uint64, isHold bool) error {
	services := c.services
	if err := validateHoldVectorIndex(services, regionID); err != nil {
		return err
	}
	if services.VectorIndexes == nil {
		return errs.New(errs.KindInternal, "vector index manager is nil")
	}

	idx := services.VectorIndexes.GetVectorIndex(regionID)
	if isHold {
		if idx == nil {
			if err := services.VectorIndexes.LoadOrBuildVectorIndex(regionID); err != nil {
				c.log.Errorf("load or build vector index %d failed: %v", regionID, err)
			}
		}
	} else {
		if idx != nil {
			services.VectorIndexes.DeleteVectorIndex(regionID)
		}
	}
	return nil
}

type holdVectorIndexTask struct {
	baseTask
}

func (t *holdVectorIndexTask) Run() {
	t.finish(holdVectorIndex(t.c, t.cmd.HoldVectorIndex.RegionID, t.cmd.HoldVectorIndex.IsHold))
}
