package heartbeat_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vexdb/internal/command"
	"vexdb/internal/heartbeat"
	"vexdb/internal/meta"
	"vexdb/internal/metastore"
	region "vexdb/internal/region"
)

type captureCoordinator struct {
	mu    sync.Mutex
	beats []heartbeat.StoreHeartbeat
}

func (c *captureCoordinator) HandleHeartbeat(hb heartbeat.StoreHeartbeat) {
	c.mu.Lock()
	c.beats = append(c.beats, hb)
	c.mu.Unlock()
}

func (c *captureCoordinator) last() (heartbeat.StoreHeartbeat, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.beats) == 0 {
		return heartbeat.StoreHeartbeat{}, false
	}
	return c.beats[len(c.beats)-1], true
}

type staticApplied struct{}

func (staticApplied) AppliedOf(uint64) (uint64, bool) { return 42, true }

func TestTriggerStoreHeartbeat(t *testing.T) {
	store, err := metastore.Open(t.TempDir())
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	regions := meta.NewStore(store)
	require.NoError(t, regions.Init())
	commands := command.NewLog(store)
	require.NoError(t, commands.Init())

	r := region.New(region.Definition{
		ID:    5,
		Range: region.KeyRange{Start: []byte{0x01}, End: []byte{0x10}},
	})
	require.NoError(t, regions.AddRegion(r))
	cmd := &command.RegionCmd{ID: 1, RegionID: 5, Type: command.TypeCreate, Status: command.StatusDone}
	require.NoError(t, commands.Add(cmd))

	coordinator := &captureCoordinator{}
	hb := heartbeat.New(7, "127.0.0.1:20001", regions, commands, coordinator, staticApplied{}, time.Hour)
	hb.Start()
	defer hb.Stop()

	hb.TriggerStoreHeartbeat(5)

	require.Eventually(t, func() bool {
		_, ok := coordinator.last()
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	beat, _ := coordinator.last()
	require.Equal(t, uint64(7), beat.StoreID)
	require.Len(t, beat.Regions, 1)
	require.Equal(t, region.ID(5), beat.Regions[0].Region.ID())
	require.Equal(t, uint64(42), beat.Regions[0].AppliedIndex)
	require.True(t, beat.Regions[0].IsLeader)
	require.Len(t, beat.Commands, 1)
	require.Equal(t, command.StatusDone, beat.Commands[0].Status)
}

func TestTriggerNeverBlocks(t *testing.T) {
	store, err := metastore.Open(t.TempDir())
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	regions := meta.NewStore(store)
	require.NoError(t, regions.Init())
	commands := command.NewLog(store)
	require.NoError(t, commands.Init())

	// Not started: triggers must still return immediately.
	hb := heartbeat.New(1, "", regions, commands, nil, nil, time.Hour)
	for i := 0; i < 1000; i++ {
		hb.TriggerStoreHeartbeat(uint64(i))
	}
}
