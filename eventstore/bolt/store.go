// Package bolt is the embedded event store adapter for single-binary
// deployments and tests. Streams are nested buckets: one bucket per kind,
// one sub-bucket per stream, records keyed by zero-padded sequence so bolt's
// key order is replay order.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/servicecrm/backend/domain"
	"github.com/servicecrm/backend/eventstore"
)

// FoldFunc projects the flattened batch. It runs inside Commit before any
// record is written, so a failing fold leaves the log untouched.
type FoldFunc func(ctx context.Context, records []eventstore.Record) error

type Store struct {
	db   *bbolt.DB
	fold FoldFunc
}

type row struct {
	Name       string          `json:"name"`
	Payload    json.RawMessage `json:"payload"`
	Actor      string          `json:"actor"`
	OccurredAt time.Time       `json:"occurred_at"`
}

var kinds = []eventstore.Kind{eventstore.KindCustomer, eventstore.KindProduct}

// Open initializes the bolt file and ensures the per-kind buckets exist.
func Open(path string, fold FoldFunc) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, kind := range kinds {
			if _, err := tx.CreateBucketIfNotExists([]byte(kind)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, fold: fold}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Load(ctx context.Context, kind eventstore.Kind, id string) ([]eventstore.Record, error) {
	return s.LoadFrom(ctx, kind, id, 0)
}

func (s *Store) LoadFrom(_ context.Context, kind eventstore.Kind, id string, afterSeq int64) ([]eventstore.Record, error) {
	var records []eventstore.Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		stream := tx.Bucket([]byte(kind)).Bucket([]byte(id))
		if stream == nil {
			return nil
		}
		c := stream.Cursor()
		for k, v := c.Seek(seqKey(afterSeq + 1)); k != nil; k, v = c.Next() {
			var stored row
			if err := json.Unmarshal(v, &stored); err != nil {
				return domain.WrapError(domain.ErrCodeInternal, fmt.Sprintf("corrupt event row %s/%s/%s", kind, id, k), err)
			}
			records = append(records, eventstore.Record{
				Kind:       kind,
				StreamID:   id,
				Seq:        parseSeq(k),
				Name:       stored.Name,
				Payload:    stored.Payload,
				Actor:      stored.Actor,
				OccurredAt: stored.OccurredAt,
			})
		}
		return nil
	})
	return records, err
}

func (s *Store) Commit(ctx context.Context, batch eventstore.Batch) error {
	if batch.Empty() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return domain.WrapError(domain.ErrCodeConflict, "commit abandoned before starting", domain.ErrRequestAborted)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, stream := range batch.Streams {
			head := streamHead(tx, stream.Kind, stream.StreamID)
			if head != stream.Expected {
				return domain.WrapError(domain.ErrCodeConflict,
					fmt.Sprintf("%s %s is at version %d, expected %d", stream.Kind, stream.StreamID, head, stream.Expected),
					domain.ErrVersionConflict)
			}
		}

		if s.fold != nil {
			if err := s.fold(ctx, batch.Records); err != nil {
				return err
			}
		}

		for _, stream := range batch.Streams {
			bucket, err := tx.Bucket([]byte(stream.Kind)).CreateBucketIfNotExists([]byte(stream.StreamID))
			if err != nil {
				return err
			}
			for _, rec := range stream.Records {
				payload, err := json.Marshal(row{
					Name:       rec.Name,
					Payload:    rec.Payload,
					Actor:      rec.Actor,
					OccurredAt: rec.OccurredAt,
				})
				if err != nil {
					return err
				}
				if err := bucket.Put(seqKey(rec.Seq), payload); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (s *Store) Heads(_ context.Context) ([]eventstore.Head, error) {
	var heads []eventstore.Head
	err := s.db.View(func(tx *bbolt.Tx) error {
		for _, kind := range kinds {
			err := tx.Bucket([]byte(kind)).ForEachBucket(func(id []byte) error {
				stream := tx.Bucket([]byte(kind)).Bucket(id)
				last, _ := stream.Cursor().Last()
				if last == nil {
					return nil
				}
				heads = append(heads, eventstore.Head{
					Kind:     kind,
					StreamID: string(id),
					Seq:      parseSeq(last),
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return heads, err
}

func streamHead(tx *bbolt.Tx, kind eventstore.Kind, id string) int64 {
	stream := tx.Bucket([]byte(kind)).Bucket([]byte(id))
	if stream == nil {
		return 0
	}
	last, _ := stream.Cursor().Last()
	if last == nil {
		return 0
	}
	return parseSeq(last)
}

func seqKey(seq int64) []byte {
	return []byte(fmt.Sprintf("%020d", seq))
}

func parseSeq(key []byte) int64 {
	var seq int64
	fmt.Sscanf(string(key), "%d", &seq)
	return seq
}

var _ eventstore.Store = (*Store)(nil)
