// Package memory provides an in-process event store with the same commit
// semantics as the Postgres adapter. It backs tests and single-binary setups.
package memory

import (
	"context"
	"sync"

	"github.com/servicecrm/backend/domain"
	"github.com/servicecrm/backend/eventstore"
)

type streamKey struct {
	kind eventstore.Kind
	id   string
}

// FoldFunc mirrors the Postgres fold hook without a SQL transaction.
type FoldFunc func(ctx context.Context, records []eventstore.Record) error

type Store struct {
	mu      sync.RWMutex
	streams map[streamKey][]eventstore.Record
	fold    FoldFunc
}

func New(fold FoldFunc) *Store {
	return &Store{
		streams: make(map[streamKey][]eventstore.Record),
		fold:    fold,
	}
}

func (s *Store) Load(ctx context.Context, kind eventstore.Kind, id string) ([]eventstore.Record, error) {
	return s.LoadFrom(ctx, kind, id, 0)
}

func (s *Store) LoadFrom(ctx context.Context, kind eventstore.Kind, id string, afterSeq int64) ([]eventstore.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stream := s.streams[streamKey{kind: kind, id: id}]
	var out []eventstore.Record
	for _, rec := range stream {
		if rec.Seq > afterSeq {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *Store) Commit(ctx context.Context, batch eventstore.Batch) error {
	if batch.Empty() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return domain.WrapError(domain.ErrCodeConflict, "commit abandoned", domain.ErrRequestAborted)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate every stream before anything becomes visible.
	for _, stream := range batch.Streams {
		key := streamKey{kind: stream.Kind, id: stream.StreamID}
		var head int64
		if existing := s.streams[key]; len(existing) > 0 {
			head = existing[len(existing)-1].Seq
		}
		if head != stream.Expected {
			return domain.WrapError(domain.ErrCodeConflict, "stream moved past expected version", domain.ErrVersionConflict)
		}
	}

	// Fold first: a failing fold leaves the log untouched, matching the
	// transactional behavior of the SQL adapter.
	if s.fold != nil {
		if err := s.fold(ctx, batch.Records); err != nil {
			return err
		}
	}

	for _, stream := range batch.Streams {
		key := streamKey{kind: stream.Kind, id: stream.StreamID}
		s.streams[key] = append(s.streams[key], stream.Records...)
	}
	return nil
}

func (s *Store) Heads(ctx context.Context) ([]eventstore.Head, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var heads []eventstore.Head
	for key, stream := range s.streams {
		if len(stream) == 0 {
			continue
		}
		heads = append(heads, eventstore.Head{
			Kind:     key.kind,
			StreamID: key.id,
			Seq:      stream[len(stream)-1].Seq,
		})
	}
	return heads, nil
}

var _ eventstore.Store = (*Store)(nil)
