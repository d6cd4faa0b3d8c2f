package command

import (
	"encoding/binary"
	"sync"

	"github.com/google/btree"

	logpkg "vexdb/internal/log"
	"vexdb/internal/metastore"
)

// Log is the durable, ordered log of accepted region control commands.
// Commands are persisted before they are enqueued anywhere; the in-memory
// btree mirrors the bolt bucket and keeps ascending id order.
type Log struct {
	mu    sync.Mutex
	store *metastore.Store
	tree  *btree.BTreeG[*RegionCmd]
	log   *logpkg.Logger
}

// NewLog builds a command log over the node-local metastore.
func NewLog(store *metastore.Store) *Log {
	return &Log{
		store: store,
		tree:  btree.NewG(8, func(a, b *RegionCmd) bool { return a.ID < b.ID }),
		log:   logpkg.New("commandlog"),
	}
}

func commandKey(id uint64) []byte {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], id)
	return key[:]
}

// Init hydrates the in-memory index from the durable bucket.
func (l *Log) Init() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.Scan(metastore.BucketCommand, func(_, value []byte) error {
		cmd, err := Unmarshal(value)
		if err != nil {
			return err
		}
		l.tree.ReplaceOrInsert(cmd)
		return nil
	})
}

// IsExist reports whether a command with the given id was ever accepted.
func (l *Log) IsExist(id uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.tree.Get(&RegionCmd{ID: id})
	return ok
}

// Add persists a command with its current status. Duplicate ids are a no-op
// with a warning.
func (l *Log) Add(cmd *RegionCmd) error {
	l.mu.Lock()
	if _, ok := l.tree.Get(&RegionCmd{ID: cmd.ID}); ok {
		l.mu.Unlock()
		l.log.Warnf("region control command %d already exist", cmd.ID)
		return nil
	}
	l.tree.ReplaceOrInsert(cmd)
	l.mu.Unlock()

	return l.persist(cmd)
}

// UpdateStatus sets the command's final status and persists it.
func (l *Log) UpdateStatus(cmd *RegionCmd, status Status) error {
	l.mu.Lock()
	cmd.Status = status
	l.tree.ReplaceOrInsert(cmd)
	l.mu.Unlock()

	return l.persist(cmd)
}

// UpdateStatusByID looks the command up first; unknown ids are ignored.
func (l *Log) UpdateStatusByID(id uint64, status Status) error {
	cmd := l.Get(id)
	if cmd == nil {
		return nil
	}
	return l.UpdateStatus(cmd, status)
}

// Get returns the command with the given id, or nil.
func (l *Log) Get(id uint64) *RegionCmd {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cmd, ok := l.tree.Get(&RegionCmd{ID: id}); ok {
		return cmd
	}
	return nil
}

// GetByStatus returns all commands with the given status, ascending by id.
func (l *Log) GetByStatus(status Status) []*RegionCmd {
	l.mu.Lock()
	defer l.mu.Unlock()
	commands := make([]*RegionCmd, 0)
	l.tree.Ascend(func(cmd *RegionCmd) bool {
		if cmd.Status == status {
			commands = append(commands, cmd)
		}
		return true
	})
	return commands
}

// GetByRegion returns all commands targeting a region, ascending by id.
func (l *Log) GetByRegion(regionID uint64) []*RegionCmd {
	l.mu.Lock()
	defer l.mu.Unlock()
	commands := make([]*RegionCmd, 0)
	l.tree.Ascend(func(cmd *RegionCmd) bool {
		if cmd.RegionID == regionID {
			commands = append(commands, cmd)
		}
		return true
	})
	return commands
}

// All returns every logged command, ascending by id.
func (l *Log) All() []*RegionCmd {
	l.mu.Lock()
	defer l.mu.Unlock()
	commands := make([]*RegionCmd, 0, l.tree.Len())
	l.tree.Ascend(func(cmd *RegionCmd) bool {
		commands = append(commands, cmd)
		return true
	})
	return commands
}

func (l *Log) persist(cmd *RegionCmd) error {
	data, err := cmd.Marshal()
	if err != nil {
		return err
	}
	return l.store.Put(metastore.BucketCommand, commandKey(cmd.ID), data)
}
