// Package eventstore defines the append-only log the aggregates live in.
package eventstore

import (
	"context"
	"time"
)

// Kind discriminates the per-aggregate stream families.
type Kind string

const (
	KindCustomer Kind = "customer"
	KindProduct  Kind = "product"
)

// Record is one persisted event row. Seq is the aggregate version after the
// event was applied, so the first record of a stream has Seq 1.
type Record struct {
	Kind       Kind
	StreamID   string
	Seq        int64
	Name       string
	Payload    []byte
	Actor      string
	OccurredAt time.Time
}

// StreamAppend is the pending tail of a single stream together with the
// version the caller observed before raising the events. A store rejects the
// append with a conflict when the persisted head has moved past Expected.
type StreamAppend struct {
	Kind     Kind
	StreamID string
	Expected int64
	Records  []Record
}

// Batch is one unit of work's worth of appends. Records repeats every record
// of the batch in emission order across streams; the projection fold consumes
// that flattened view inside the same storage transaction as the append.
type Batch struct {
	Streams []StreamAppend
	Records []Record
}

func (b Batch) Empty() bool { return len(b.Records) == 0 }

// Head identifies the current tip of one stream.
type Head struct {
	Kind     Kind
	StreamID string
	Seq      int64
}

// Store is the authoritative event log.
type Store interface {
	// Load returns the full stream in seq order; an unknown stream yields an
	// empty slice, not an error.
	Load(ctx context.Context, kind Kind, id string) ([]Record, error)

	// LoadFrom returns the records with Seq > afterSeq, in seq order.
	LoadFrom(ctx context.Context, kind Kind, id string, afterSeq int64) ([]Record, error)

	// Commit appends all streams of the batch and runs the inline projection
	// fold within one storage transaction. Version conflicts surface as
	// domain CONFLICT errors and nothing of the batch becomes visible.
	Commit(ctx context.Context, batch Batch) error

	// Heads lists the tip of every stream. Used by the snapshotter.
	Heads(ctx context.Context) ([]Head, error)
}
