package metastore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	bolt "go.etcd.io/bbolt"
)

// Bucket names for the node-local metadata store.
const (
	BucketRegion   = "region"
	BucketCommand  = "command"
	BucketRaftMeta = "raftmeta"
)

const (
	metaFileName = "store.meta"
	lockFileName = "flock"
)

// Store is the node-local durable KV backing region metadata, the command log
// and raft meta records. A single process owns the directory via flock.
type Store struct {
	db   *bolt.DB
	lock *flock.Flock
}

// Open creates or opens the metadata store under dir.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("metastore directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	lock := flock.New(filepath.Join(dir, lockFileName))
	held, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !held {
		return nil, fmt.Errorf("metastore directory %s is used by another process", dir)
	}

	db, err := bolt.Open(filepath.Join(dir, metaFileName), 0o600, &bolt.Options{Timeout: 0})
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range []string{BucketRegion, BucketCommand, BucketRaftMeta} {
			if _, err := tx.CreateBucketIfNotExists([]byte(bucket)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, err
	}
	return &Store{db: db, lock: lock}, nil
}

// Put stores value under key in bucket.
func (s *Store) Put(bucket string, key, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket %s missing", bucket)
		}
		return b.Put(key, value)
	})
}

// Get returns the value under key, or nil if absent.
func (s *Store) Get(bucket string, key []byte) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket %s missing", bucket)
		}
		if data := b.Get(key); data != nil {
			value = append([]byte(nil), data...)
		}
		return nil
	})
	return value, err
}

// Delete removes key from bucket; absent keys are a no-op.
func (s *Store) Delete(bucket string, key []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket %s missing", bucket)
		}
		return b.Delete(key)
	})
}

// Scan visits every key/value pair of bucket in key order.
func (s *Store) Scan(bucket string, fn func(key, value []byte) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		return b.ForEach(fn)
	})
}

// Close releases the bolt database and the directory lock.
func (s *Store) Close() error {
	err := s.db.Close()
	if e := s.lock.Unlock(); err == nil {
		err = e
	}
	return err
}
