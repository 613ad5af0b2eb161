package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/servicecrm/backend/domain"
	"github.com/servicecrm/backend/eventstore"
)

// uniqueViolation is the Postgres error code backing the optimistic check.
const uniqueViolation = "23505"

// FoldFunc folds the committed batch into the read model inside the append
// transaction.
type FoldFunc func(ctx context.Context, tx pgx.Tx, records []eventstore.Record) error

// Store is the Postgres-backed event log.
type Store struct {
	pool   *pgxpool.Pool
	fold   FoldFunc
	logger *zap.Logger
}

// New creates a Postgres event store. fold may be nil when no inline
// projection is wanted (tooling, snapshotting).
func New(pool *pgxpool.Pool, fold FoldFunc, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{pool: pool, fold: fold, logger: logger}
}

func (s *Store) Load(ctx context.Context, kind eventstore.Kind, id string) ([]eventstore.Record, error) {
	return s.LoadFrom(ctx, kind, id, 0)
}

func (s *Store) LoadFrom(ctx context.Context, kind eventstore.Kind, id string, afterSeq int64) ([]eventstore.Record, error) {
	const query = `
	SELECT seq, event_name, payload, actor, occurred_at
	FROM events
	WHERE stream_kind = $1 AND stream_id = $2 AND seq > $3
	ORDER BY seq
	`
	rows, err := s.pool.Query(ctx, query, string(kind), id, afterSeq)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []eventstore.Record
	for rows.Next() {
		rec := eventstore.Record{Kind: kind, StreamID: id}
		if err := rows.Scan(&rec.Seq, &rec.Name, &rec.Payload, &rec.Actor, &rec.OccurredAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) Commit(ctx context.Context, batch eventstore.Batch) error {
	if batch.Empty() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return domain.WrapError(domain.ErrCodeConflict, "commit abandoned", domain.ErrRequestAborted)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, stream := range batch.Streams {
		if err := s.appendStream(ctx, tx, stream); err != nil {
			return err
		}
	}

	if s.fold != nil {
		if err := s.fold(ctx, tx, batch.Records); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return mapAppendError(err)
	}
	return nil
}

func (s *Store) appendStream(ctx context.Context, tx pgx.Tx, stream eventstore.StreamAppend) error {
	const headQuery = `
	SELECT COALESCE(MAX(seq), 0) FROM events WHERE stream_kind = $1 AND stream_id = $2
	`
	var head int64
	if err := tx.QueryRow(ctx, headQuery, string(stream.Kind), stream.StreamID).Scan(&head); err != nil {
		return err
	}
	if head != stream.Expected {
		return domain.WrapError(domain.ErrCodeConflict, "stream moved past expected version", domain.ErrVersionConflict)
	}

	const insertQuery = `
	INSERT INTO events (stream_kind, stream_id, seq, event_name, payload, actor, occurred_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, rec := range stream.Records {
		if _, err := tx.Exec(ctx, insertQuery,
			string(rec.Kind),
			rec.StreamID,
			rec.Seq,
			rec.Name,
			rec.Payload,
			rec.Actor,
			rec.OccurredAt,
		); err != nil {
			return mapAppendError(err)
		}
	}
	return nil
}

func (s *Store) Heads(ctx context.Context) ([]eventstore.Head, error) {
	const query = `
	SELECT stream_kind, stream_id, MAX(seq)
	FROM events
	GROUP BY stream_kind, stream_id
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var heads []eventstore.Head
	for rows.Next() {
		var h eventstore.Head
		var kind string
		if err := rows.Scan(&kind, &h.StreamID, &h.Seq); err != nil {
			return nil, err
		}
		h.Kind = eventstore.Kind(kind)
		heads = append(heads, h)
	}
	return heads, rows.Err()
}

// mapAppendError turns the unique (stream_kind, stream_id, seq) violation into
// the domain conflict a concurrent writer should see.
func mapAppendError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.WrapError(domain.ErrCodeConflict, "concurrent append detected", domain.ErrVersionConflict)
	}
	return err
}
