package errs

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind classifies controller failures. Names are wire-stable.
type Kind int

const (
	KindOK Kind = iota
	KindRegionNotFound
	KindRegionExist
	KindRegionUnavailable
	KindRegionState
	KindRegionDeleting
	KindRegionDeleted
	KindRegionSplitting
	KindRepeatCommand
	KindKeyInvalid
	KindKeyOutOfRange
	KindIllegalParameters
	KindRaftNotFound
	KindRaftNotLeader
	KindRaftTransferLeader
	KindVectorIndexNotFound
	KindVectorIndexResize
	KindInternal
)

var kindNames = map[Kind]string{
	KindOK:                  "OK",
	KindRegionNotFound:      "REGION_NOT_FOUND",
	KindRegionExist:         "REGION_EXIST",
	KindRegionUnavailable:   "REGION_UNAVAILABLE",
	KindRegionState:         "REGION_STATE",
	KindRegionDeleting:      "REGION_DELETING",
	KindRegionDeleted:       "REGION_DELETED",
	KindRegionSplitting:     "REGION_SPLITING",
	KindRepeatCommand:       "REGION_REPEAT_COMMAND",
	KindKeyInvalid:          "KEY_INVALID",
	KindKeyOutOfRange:       "KEY_OUT_OF_RANGE",
	KindIllegalParameters:   "ILLEGAL_PARAMETERS",
	KindRaftNotFound:        "RAFT_NOT_FOUND",
	KindRaftNotLeader:       "RAFT_NOTLEADER",
	KindRaftTransferLeader:  "RAFT_TRANSFER_LEADER",
	KindVectorIndexNotFound: "VECTOR_INDEX_NOT_FOUND",
	KindVectorIndexResize:   "VECTOR_INDEX_RESIZE",
	KindInternal:            "INTERNAL",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("KIND(%d)", int(k))
}

// Error carries a failure kind and a human message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// New builds an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds an Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the failure kind from err. A nil error is KindOK; anything
// that is not an *Error maps to KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

var kindCodes = map[Kind]codes.Code{
	KindRegionNotFound:      codes.NotFound,
	KindRegionExist:         codes.AlreadyExists,
	KindRegionUnavailable:   codes.Unavailable,
	KindRegionState:         codes.FailedPrecondition,
	KindRegionDeleting:      codes.FailedPrecondition,
	KindRegionDeleted:       codes.FailedPrecondition,
	KindRegionSplitting:     codes.FailedPrecondition,
	KindRepeatCommand:       codes.AlreadyExists,
	KindKeyInvalid:          codes.InvalidArgument,
	KindKeyOutOfRange:       codes.OutOfRange,
	KindIllegalParameters:   codes.InvalidArgument,
	KindRaftNotFound:        codes.NotFound,
	KindRaftNotLeader:       codes.FailedPrecondition,
	KindRaftTransferLeader:  codes.FailedPrecondition,
	KindVectorIndexNotFound: codes.NotFound,
	KindVectorIndexResize:   codes.Internal,
	KindInternal:            codes.Internal,
}

// GRPCStatus converts err into a grpc status for the RPC boundary.
func GRPCStatus(err error) *status.Status {
	if err == nil {
		return status.New(codes.OK, "")
	}
	code, ok := kindCodes[KindOf(err)]
	if !ok {
		code = codes.Internal
	}
	return status.New(code, err.Error())
}

// IsRegionNotFound reports whether err indicates missing region metadata.
func IsRegionNotFound(err error) bool {
	if err == nil {
		return false
	}
	if KindOf(err) == KindRegionNotFound {
		return true
	}
	if st, ok := status.FromError(err); ok {
		return st.Code() == codes.NotFound
	}
	return false
}

// IsRepeatCommand reports whether err represents a duplicate command id.
func IsRepeatCommand(err error) bool {
	return KindOf(err) == KindRepeatCommand
}
