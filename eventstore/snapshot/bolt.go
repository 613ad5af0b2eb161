package snapshot

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/servicecrm/backend/eventstore"
)

// BoltStore keeps snapshots in an embedded BoltDB file, one bucket per stream
// kind.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt initializes the BoltDB file and ensures the per-kind buckets exist.
func OpenBolt(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		for _, kind := range []eventstore.Kind{eventstore.KindCustomer, eventstore.KindProduct} {
			if _, err := tx.CreateBucketIfNotExists([]byte(kind)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Load(ctx context.Context, kind eventstore.Kind, id string) (*Snapshot, error) {
	if s == nil || s.db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}

	var snap *Snapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(kind))
		if bucket == nil {
			return nil
		}
		value := bucket.Get([]byte(id))
		if value == nil {
			return nil
		}
		var decoded Snapshot
		if err := json.Unmarshal(value, &decoded); err != nil {
			// A corrupt snapshot is not fatal; the caller replays from zero.
			return nil
		}
		snap = &decoded
		return nil
	})
	return snap, err
}

func (s *BoltStore) Save(ctx context.Context, snap Snapshot) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	if snap.TakenAt.IsZero() {
		snap.TakenAt = time.Now().UTC()
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(snap.Kind))
		if err != nil {
			return err
		}
		return bucket.Put([]byte(snap.StreamID), payload)
	})
}

// Count returns the number of stored snapshots, for health reporting.
func (s *BoltStore) Count() (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(_ []byte, bucket *bolt.Bucket) error {
			count += bucket.Stats().KeyN
			return nil
		})
	})
	return count, err
}

func (s *BoltStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var _ Store = (*BoltStore)(nil)
