package raftstore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/gogo/protobuf/proto"
	"go.etcd.io/etcd/raft/v3"
	"go.etcd.io/etcd/raft/v3/raftpb"
)

const (
	stateFileName   = "state.bin"
	entriesFileName = "entries.bin"
)

// LogStorage implements raft.Storage for one region. Control-plane region
// logs are short and compacted aggressively, so the whole log lives in
// memory and persistence rewrites whole files atomically. Hard state, conf
// state, snapshot and truncation marker go to state.bin; the entry tail goes
// to entries.bin, so the frequent hard-state updates don't rewrite entries
// and appends don't rewrite the snapshot payload.
//
// Bookkeeping follows the truncated-state model: truncatedIndex/Term mark
// the last entry dropped by compaction or snapshot, and entries are kept
// contiguous from truncatedIndex+1.
type LogStorage struct {
	mu  sync.RWMutex
	dir string

	hardState raftpb.HardState
	confState raftpb.ConfState
	snapshot  raftpb.Snapshot

	truncatedIndex uint64
	truncatedTerm  uint64
	entries        []raftpb.Entry // contiguous, entries[0].Index == truncatedIndex+1
}

// NewLogStorage opens (or creates) the log storage rooted at dir.
func NewLogStorage(dir string) (*LogStorage, error) {
	if dir == "" {
		return nil, fmt.Errorf("raft log storage dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	s := &LogStorage{dir: dir}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Destroy removes the storage directory entirely. Used when a region is
// deleted; destroying absent storage is a no-op.
func (s *LogStorage) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	return os.RemoveAll(s.dir)
}

// InitialState returns the persisted HardState and ConfState.
func (s *LogStorage) InitialState() (raftpb.HardState, raftpb.ConfState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hardState, s.confState, nil
}

// SetHardState persists the HardState.
func (s *LogStorage) SetHardState(hs raftpb.HardState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hardState = hs
	return s.saveStateLocked()
}

// SetConfState persists the ConfState.
func (s *LogStorage) SetConfState(cs *raftpb.ConfState) error {
	if cs == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confState = *cs
	return s.saveStateLocked()
}

// FirstIndex returns the index of the first entry still in the log.
func (s *LogStorage) FirstIndex() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.truncatedIndex + 1, nil
}

// LastIndex returns the index of the last entry, which is the truncation
// point when the log is empty.
func (s *LogStorage) LastIndex() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastLocked(), nil
}

func (s *LogStorage) lastLocked() uint64 {
	return s.truncatedIndex + uint64(len(s.entries))
}

// Term returns the term of entry i. The truncation point keeps answering
// with its recorded term so raft can match against the compacted prefix.
func (s *LogStorage) Term(i uint64) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.termLocked(i)
}

func (s *LogStorage) termLocked(i uint64) (uint64, error) {
	switch {
	case i < s.truncatedIndex:
		return 0, raft.ErrCompacted
	case i == s.truncatedIndex:
		return s.truncatedTerm, nil
	case i > s.lastLocked():
		return 0, raft.ErrUnavailable
	}
	return s.entries[i-s.truncatedIndex-1].Term, nil
}

// Entries returns log entries in [lo, hi), bounded by maxSize bytes; the
// first entry is always returned even when it alone exceeds the bound.
func (s *LogStorage) Entries(lo, hi, maxSize uint64) ([]raftpb.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if lo <= s.truncatedIndex {
		return nil, raft.ErrCompacted
	}
	if hi > s.lastLocked()+1 {
		return nil, raft.ErrUnavailable
	}
	if lo >= hi {
		return nil, nil
	}

	out := copyEntries(s.entries[lo-s.truncatedIndex-1 : hi-s.truncatedIndex-1])
	if maxSize > 0 {
		var total uint64
		for i := range out {
			total += uint64(out[i].Size())
			if total > maxSize && i > 0 {
				out = out[:i]
				break
			}
		}
	}
	return out, nil
}

// Snapshot returns the latest persisted snapshot.
func (s *LogStorage) Snapshot() (raftpb.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.snapshot
	snap.Data = append([]byte(nil), s.snapshot.Data...)
	return snap, nil
}

// Append persists new entries. Overlapping entries overwrite the tail; a gap
// between the log and the new entries is an error, raft never produces one.
func (s *LogStorage) Append(ents []raftpb.Entry) error {
	if len(ents) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	first := s.truncatedIndex + 1
	if ents[len(ents)-1].Index < first {
		// Entire batch is behind the truncation point.
		return nil
	}
	if ents[0].Index < first {
		ents = ents[first-ents[0].Index:]
	}

	next := s.lastLocked() + 1
	switch {
	case ents[0].Index > next:
		return fmt.Errorf("raft log storage: append gap, have last %d, got first %d", next-1, ents[0].Index)
	case ents[0].Index < next:
		// Conflicting tail loses.
		s.entries = s.entries[:ents[0].Index-first]
	}
	s.entries = append(s.entries, copyEntries(ents)...)
	return s.saveEntriesLocked()
}

// ApplySnapshot installs an incoming snapshot and resets the log behind it.
func (s *LogStorage) ApplySnapshot(snap raftpb.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.Metadata.Index <= s.snapshot.Metadata.Index {
		return raft.ErrSnapOutOfDate
	}

	s.snapshot = snap
	s.snapshot.Data = append([]byte(nil), snap.Data...)
	s.confState = snap.Metadata.ConfState
	s.truncatedIndex = snap.Metadata.Index
	s.truncatedTerm = snap.Metadata.Term

	// Keep any tail beyond the snapshot, drop everything else.
	var tail []raftpb.Entry
	for i := range s.entries {
		if s.entries[i].Index == snap.Metadata.Index+1 {
			tail = copyEntries(s.entries[i:])
			break
		}
	}
	s.entries = tail

	if err := s.saveEntriesLocked(); err != nil {
		return err
	}
	return s.saveStateLocked()
}

// CreateSnapshot records a snapshot at index with the provided payload and
// returns it. Entries stay put until a separate Compact call.
func (s *LogStorage) CreateSnapshot(index uint64, data []byte, cs *raftpb.ConfState) (*raftpb.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < s.snapshot.Metadata.Index {
		return nil, raft.ErrSnapOutOfDate
	}
	if index > s.lastLocked() {
		return nil, raft.ErrUnavailable
	}
	term, err := s.termLocked(index)
	if err != nil {
		return nil, err
	}

	if cs != nil {
		s.confState = *cs
	}
	s.snapshot = raftpb.Snapshot{
		Data: append([]byte(nil), data...),
		Metadata: raftpb.SnapshotMetadata{
			Index:     index,
			Term:      term,
			ConfState: s.confState,
		},
	}
	if err := s.saveStateLocked(); err != nil {
		return nil, err
	}
	snap := s.snapshot
	snap.Data = append([]byte(nil), s.snapshot.Data...)
	return &snap, nil
}

// Compact drops entries up to and including index, moving the truncation
// point forward.
func (s *LogStorage) Compact(index uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index <= s.truncatedIndex {
		return raft.ErrCompacted
	}
	if index > s.lastLocked() {
		return raft.ErrUnavailable
	}
	term, err := s.termLocked(index)
	if err != nil {
		return err
	}

	s.entries = copyEntries(s.entries[index-s.truncatedIndex:])
	s.truncatedIndex = index
	s.truncatedTerm = term

	if err := s.saveEntriesLocked(); err != nil {
		return err
	}
	return s.saveStateLocked()
}

// Persistence. Each file is a sequence of uvarint-length-prefixed proto
// frames, built in memory and swapped in with tmp+rename.

func (s *LogStorage) saveStateLocked() error {
	var buf bytes.Buffer
	var scratch [binary.MaxVarintLen64]byte
	for _, v := range []uint64{s.truncatedIndex, s.truncatedTerm} {
		buf.Write(scratch[:binary.PutUvarint(scratch[:], v)])
	}
	for _, msg := range []proto.Message{&s.hardState, &s.confState, &s.snapshot} {
		if err := appendFrame(&buf, msg); err != nil {
			return err
		}
	}
	return writeFileAtomic(filepath.Join(s.dir, stateFileName), buf.Bytes())
}

func (s *LogStorage) saveEntriesLocked() error {
	var buf bytes.Buffer
	var scratch [binary.MaxVarintLen64]byte
	buf.Write(scratch[:binary.PutUvarint(scratch[:], uint64(len(s.entries)))])
	for i := range s.entries {
		if err := appendFrame(&buf, &s.entries[i]); err != nil {
			return err
		}
	}
	return writeFileAtomic(filepath.Join(s.dir, entriesFileName), buf.Bytes())
}

func (s *LogStorage) load() error {
	if data, err := os.ReadFile(filepath.Join(s.dir, stateFileName)); err == nil {
		r := bytes.NewReader(data)
		if s.truncatedIndex, err = binary.ReadUvarint(r); err != nil {
			return err
		}
		if s.truncatedTerm, err = binary.ReadUvarint(r); err != nil {
			return err
		}
		for _, msg := range []proto.Message{&s.hardState, &s.confState, &s.snapshot} {
			if err := readFrame(r, msg); err != nil {
				return err
			}
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	if data, err := os.ReadFile(filepath.Join(s.dir, entriesFileName)); err == nil {
		r := bytes.NewReader(data)
		count, err := binary.ReadUvarint(r)
		if err != nil {
			return err
		}
		s.entries = make([]raftpb.Entry, count)
		for i := range s.entries {
			if err := readFrame(r, &s.entries[i]); err != nil {
				return err
			}
		}
	} else if !os.IsNotExist(err) {
		return err
	}
	return nil
}

func appendFrame(buf *bytes.Buffer, msg proto.Message) error {
	data, err := proto.Marshal(msg)
	if err != nil {
		return err
	}
	var scratch [binary.MaxVarintLen64]byte
	buf.Write(scratch[:binary.PutUvarint(scratch[:], uint64(len(data)))])
	buf.Write(data)
	return nil
}

func readFrame(r *bytes.Reader, msg proto.Message) error {
	size, err := binary.ReadUvarint(r)
	if err != nil {
		return err
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return err
	}
	return proto.Unmarshal(data, msg)
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func copyEntries(ents []raftpb.Entry) []raftpb.Entry {
	if len(ents) == 0 {
		return nil
	}
	out := make([]raftpb.Entry, len(ents))
	copy(out, ents)
	for i := range out {
		out[i].Data = append([]byte(nil), ents[i].Data...)
	}
	return out
}
