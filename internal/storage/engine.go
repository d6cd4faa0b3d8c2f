package storage

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	region "vexdb/internal/region"
)

// Column families for the raw store. Pebble has a single keyspace, so
// families are modeled as key prefixes.
const (
	DataCF = "default"
	MetaCF = "meta"
)

// ErrKeyNotFound is returned by reads of absent keys.
var ErrKeyNotFound = errors.New("storage: key not found")

// Engine is the raw storage engine holding region user data.
type Engine struct {
	db *pebble.DB
}

// Open opens the raw engine rooted at dir.
func Open(dir string) (*Engine, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage directory is empty")
	}
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Engine{db: db}, nil
}

// Close flushes and closes the engine.
func (e *Engine) Close() error {
	return e.db.Close()
}

// NewWriter returns a writer bound to a column family.
func (e *Engine) NewWriter(cf string) *Writer {
	return &Writer{db: e.db, cf: cf}
}

// NewReader returns a reader bound to a column family.
func (e *Engine) NewReader(cf string) *Reader {
	return &Reader{db: e.db, cf: cf}
}

func cfKey(cf string, key []byte) []byte {
	out := make([]byte, 0, len(cf)+1+len(key))
	out = append(out, cf...)
	out = append(out, '/')
	return append(out, key...)
}

// Writer mutates one column family.
type Writer struct {
	db *pebble.DB
	cf string
}

// KvPut stores a single key/value pair.
func (w *Writer) KvPut(key, value []byte) error {
	return w.db.Set(cfKey(w.cf, key), value, pebble.Sync)
}

// KvDelete removes a single key.
func (w *Writer) KvDelete(key []byte) error {
	return w.db.Delete(cfKey(w.cf, key), pebble.Sync)
}

// KvBatchDeleteRange removes every key in the half-open raw range.
// Re-deleting an already-empty range is a no-op.
func (w *Writer) KvBatchDeleteRange(r region.KeyRange) error {
	batch := w.db.NewBatch()
	defer batch.Close()
	if err := batch.DeleteRange(cfKey(w.cf, r.Start), cfKey(w.cf, r.End), nil); err != nil {
		return err
	}
	return w.db.Apply(batch, pebble.Sync)
}

// Reader reads one column family.
type Reader struct {
	db *pebble.DB
	cf string
}

// KvGet fetches a single value.
func (r *Reader) KvGet(key []byte) ([]byte, error) {
	value, closer, err := r.db.Get(cfKey(r.cf, key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	out := append([]byte(nil), value...)
	if err := closer.Close(); err != nil {
		return nil, err
	}
	return out, nil
}
