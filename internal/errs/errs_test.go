package errs_test

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"

	"vexdb/internal/errs"
)

func TestKindOf(t *testing.T) {
	if errs.KindOf(nil) != errs.KindOK {
		t.Fatalf("nil error should map to KindOK")
	}
	err := errs.Newf(errs.KindRegionNotFound, "region %d not exist", 7)
	if errs.KindOf(err) != errs.KindRegionNotFound {
		t.Fatalf("unexpected kind %s", errs.KindOf(err))
	}
	wrapped := fmt.Errorf("dispatch: %w", err)
	if errs.KindOf(wrapped) != errs.KindRegionNotFound {
		t.Fatalf("wrapping should preserve the kind")
	}
	if errs.KindOf(errors.New("plain")) != errs.KindInternal {
		t.Fatalf("foreign errors should map to KindInternal")
	}
}

func TestKindNamesAreWireStable(t *testing.T) {
	cases := map[errs.Kind]string{
		errs.KindRegionSplitting:     "REGION_SPLITING",
		errs.KindRepeatCommand:       "REGION_REPEAT_COMMAND",
		errs.KindRaftNotLeader:       "RAFT_NOTLEADER",
		errs.KindVectorIndexNotFound: "VECTOR_INDEX_NOT_FOUND",
		errs.KindVectorIndexResize:   "VECTOR_INDEX_RESIZE",
	}
	for kind, name := range cases {
		if kind.String() != name {
			t.Fatalf("kind %d renders %q, want %q", kind, kind.String(), name)
		}
	}
}

func TestGRPCStatusMapping(t *testing.T) {
	st := errs.GRPCStatus(errs.New(errs.KindRegionNotFound, "missing"))
	if st.Code() != codes.NotFound {
		t.Fatalf("unexpected code %s", st.Code())
	}
	if errs.GRPCStatus(nil).Code() != codes.OK {
		t.Fatalf("nil error should map to OK")
	}
	if !errs.IsRegionNotFound(st.Err()) {
		t.Fatalf("status error should round-trip as region-not-found")
	}
	if !errs.IsRepeatCommand(errs.New(errs.KindRepeatCommand, "dup")) {
		t.Fatalf("repeat command helper failed")
	}
}
