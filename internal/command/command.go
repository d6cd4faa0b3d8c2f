package command

import (
	"encoding/json"
	"fmt"
	"time"

	region "vexdb/internal/region"
)

// Type enumerates the region control commands. Names are wire-stable.
type Type int

const (
	TypeCreate Type = iota
	TypeDelete
	TypeSplit
	TypeMerge
	TypeChangePeer
	TypeTransferLeader
	TypeSnapshot
	TypePurge
	TypeStop
	TypeDestroyExecutor
	TypeSnapshotVectorIndex
	TypeUpdateDefinition
	TypeSwitchSplit
	TypeHoldVectorIndex
)

var typeNames = map[Type]string{
	TypeCreate:              "CREATE",
	TypeDelete:              "DELETE",
	TypeSplit:               "SPLIT",
	TypeMerge:               "MERGE",
	TypeChangePeer:          "CHANGE_PEER",
	TypeTransferLeader:      "TRANSFER_LEADER",
	TypeSnapshot:            "SNAPSHOT",
	TypePurge:               "PURGE",
	TypeStop:                "STOP",
	TypeDestroyExecutor:     "DESTROY_EXECUTOR",
	TypeSnapshotVectorIndex: "SNAPSHOT_VECTOR_INDEX",
	TypeUpdateDefinition:    "UPDATE_DEFINITION",
	TypeSwitchSplit:         "SWITCH_SPLIT",
	TypeHoldVectorIndex:     "HOLD_VECTOR_INDEX",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("CMD(%d)", int(t))
}

// Status tracks a command through the durable log.
type Status int

const (
	StatusNone Status = iota
	StatusDone
	StatusFail
)

var statusNames = map[Status]string{
	StatusNone: "STATUS_NONE",
	StatusDone: "STATUS_DONE",
	StatusFail: "STATUS_FAIL",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STATUS(%d)", int(s))
}

// Per-type request payloads. Exactly one of them is set on a RegionCmd,
// matching its Type.

type CreateRequest struct {
	Definition        region.Definition `json:"region_definition"`
	SplitFromRegionID uint64            `json:"split_from_region_id,omitempty"`
}

type DeleteRequest struct {
	RegionID uint64 `json:"region_id"`
}

type SplitRequest struct {
	SplitFromRegionID uint64 `json:"split_from_region_id"`
	SplitToRegionID   uint64 `json:"split_to_region_id"`
	SplitWatershedKey []byte `json:"split_watershed_key"`
}

type ChangePeerRequest struct {
	Definition region.Definition `json:"region_definition"`
}

type TransferLeaderRequest struct {
	Peer region.Peer `json:"peer"`
}

type SnapshotRequest struct {
	RegionID uint64 `json:"region_id"`
}

type PurgeRequest struct {
	RegionID uint64 `json:"region_id"`
}

type StopRequest struct {
	RegionID uint64 `json:"region_id"`
}

type DestroyExecutorRequest struct {
	RegionID uint64 `json:"region_id"`
}

type SnapshotVectorIndexRequest struct {
	VectorIndexID uint64 `json:"vector_index_id"`
}

type UpdateDefinitionRequest struct {
	NewDefinition region.Definition `json:"new_region_definition"`
}

type SwitchSplitRequest struct {
	RegionID     uint64 `json:"region_id"`
	DisableSplit bool   `json:"disable_split"`
}

type HoldVectorIndexRequest struct {
	RegionID uint64 `json:"region_id"`
	IsHold   bool   `json:"is_hold"`
}

// RegionCmd is an imperative control command from the coordinator. It is
// immutable once accepted except for Status.
type RegionCmd struct {
	ID              uint64 `json:"id"`
	RegionID        uint64 `json:"region_id"`
	CreateTimestamp int64  `json:"create_timestamp"` // ms since epoch
	Type            Type   `json:"type"`
	Status          Status `json:"status"`
	IsNotify        bool   `json:"is_notify"`

	Create              *CreateRequest              `json:"create_request,omitempty"`
	Delete              *DeleteRequest              `json:"delete_request,omitempty"`
	Split               *SplitRequest               `json:"split_request,omitempty"`
	ChangePeer          *ChangePeerRequest          `json:"change_peer_request,omitempty"`
	TransferLeader      *TransferLeaderRequest      `json:"transfer_leader_request,omitempty"`
	Snapshot            *SnapshotRequest            `json:"snapshot_request,omitempty"`
	Purge               *PurgeRequest               `json:"purge_request,omitempty"`
	Stop                *StopRequest                `json:"stop_request,omitempty"`
	DestroyExecutor     *DestroyExecutorRequest     `json:"destroy_executor_request,omitempty"`
	SnapshotVectorIndex *SnapshotVectorIndexRequest `json:"snapshot_vector_index_request,omitempty"`
	UpdateDefinition    *UpdateDefinitionRequest    `json:"update_definition_request,omitempty"`
	SwitchSplit         *SwitchSplitRequest         `json:"switch_split_request,omitempty"`
	HoldVectorIndex     *HoldVectorIndexRequest     `json:"hold_vector_index_request,omitempty"`
}

// Marshal serializes the command for the durable log.
func (c *RegionCmd) Marshal() ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("nil command")
	}
	return json.Marshal(c)
}

// Unmarshal deserializes command bytes.
func Unmarshal(data []byte) (*RegionCmd, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty command payload")
	}
	var cmd RegionCmd
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, err
	}
	return &cmd, nil
}

// NewDestroyExecutor synthesizes the internal command DELETE dispatches to
// tear down a region's executor on the shared queue.
func NewDestroyExecutor(regionID uint64) *RegionCmd {
	now := time.Now()
	return &RegionCmd{
		ID:              uint64(now.UnixNano()),
		RegionID:        regionID,
		CreateTimestamp: now.UnixMilli(),
		Type:            TypeDestroyExecutor,
		Status:          StatusNone,
		DestroyExecutor: &DestroyExecutorRequest{RegionID: regionID},
	}
}
