package region_test

import (
	"testing"

	region "vexdb/internal/region"
)

func TestEpochCompareVersionDominant(t *testing.T) {
	cases := []struct {
		a, b   region.Epoch
		expect int
	}{
		{region.Epoch{Version: 1, ConfVersion: 1}, region.Epoch{Version: 1, ConfVersion: 1}, 0},
		{region.Epoch{Version: 2, ConfVersion: 1}, region.Epoch{Version: 1, ConfVersion: 9}, 1},
		{region.Epoch{Version: 1, ConfVersion: 9}, region.Epoch{Version: 2, ConfVersion: 1}, -1},
		{region.Epoch{Version: 1, ConfVersion: 2}, region.Epoch{Version: 1, ConfVersion: 1}, 1},
	}
	for _, tc := range cases {
		if got := tc.a.Compare(tc.b); got != tc.expect {
			t.Fatalf("compare %+v vs %+v = %d, want %d", tc.a, tc.b, got, tc.expect)
		}
	}
}

func TestKeyRangeContains(t *testing.T) {
	r := region.KeyRange{Start: []byte{0x01}, End: []byte{0x10}}

	if !r.Contains([]byte{0x01}) {
		t.Fatalf("start key should be inside the half-open range")
	}
	if r.Contains([]byte{0x10}) {
		t.Fatalf("end key should be outside the half-open range")
	}
	if r.StrictlyContains([]byte{0x01}) {
		t.Fatalf("start key is not an interior point")
	}
	if !r.StrictlyContains([]byte{0x05}) {
		t.Fatalf("interior key should satisfy StrictlyContains")
	}
	if !r.Valid() {
		t.Fatalf("range should be valid")
	}
	if (region.KeyRange{Start: []byte{0x10}, End: []byte{0x01}}).Valid() {
		t.Fatalf("inverted range should be invalid")
	}
}

func TestStateTransitions(t *testing.T) {
	allowed := []struct{ from, to region.State }{
		{region.StateNew, region.StateNormal},
		{region.StateNew, region.StateStandby},
		{region.StateStandby, region.StateNormal},
		{region.StateNormal, region.StateSplitting},
		{region.StateNormal, region.StateDeleting},
		{region.StateDeleting, region.StateDeleted},
		{region.StateOrphan, region.StateDeleting},
	}
	for _, tc := range allowed {
		if !region.CanTransit(tc.from, tc.to) {
			t.Fatalf("%s -> %s should be allowed", tc.from, tc.to)
		}
	}

	forbidden := []struct{ from, to region.State }{
		{region.StateNew, region.StateDeleted},
		{region.StateNormal, region.StateDeleted},
		{region.StateDeleted, region.StateNormal},
		{region.StateDeleting, region.StateNormal},
	}
	for _, tc := range forbidden {
		if region.CanTransit(tc.from, tc.to) {
			t.Fatalf("%s -> %s should be forbidden", tc.from, tc.to)
		}
	}
}

func TestRegionCloneIsDeep(t *testing.T) {
	r := region.New(region.Definition{
		ID:    7,
		Range: region.KeyRange{Start: []byte("a"), End: []byte("z")},
		Peers: []region.Peer{{StoreID: 1}},
		IndexParameter: region.IndexParameter{
			HNSW: &region.HNSWParameter{MaxElements: 100},
		},
	})

	clone := r.Clone()
	clone.Definition.Range.Start[0] = 'b'
	clone.Definition.Peers[0].StoreID = 9
	clone.Definition.IndexParameter.HNSW.MaxElements = 1

	if r.Range().Start[0] != 'a' {
		t.Fatalf("clone shares range bytes")
	}
	if r.Peers()[0].StoreID != 1 {
		t.Fatalf("clone shares peers")
	}
	if r.Definition.IndexParameter.HNSW.MaxElements != 100 {
		t.Fatalf("clone shares hnsw parameter")
	}
}

func TestNewDerivesRawRange(t *testing.T) {
	r := region.New(region.Definition{
		ID:    3,
		Range: region.KeyRange{Start: []byte{0x01}, End: []byte{0x10}},
	})
	if !r.RawRange().Valid() {
		t.Fatalf("raw range should default to the logical range")
	}
	if r.State != region.StateNew {
		t.Fatalf("fresh region should be NEW, got %s", r.State)
	}
}
