package bolt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servicecrm/backend/domain"
	"github.com/servicecrm/backend/eventstore"
)

func openStore(t *testing.T, fold FoldFunc) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "events.db"), fold)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func record(kind eventstore.Kind, streamID string, seq int64, name string) eventstore.Record {
	return eventstore.Record{
		Kind:       kind,
		StreamID:   streamID,
		Seq:        seq,
		Name:       name,
		Payload:    []byte(`{}`),
		Actor:      "user-1",
		OccurredAt: time.Now().UTC(),
	}
}

func batchOf(records ...eventstore.Record) eventstore.Batch {
	byStream := make(map[string]*eventstore.StreamAppend)
	var order []string
	var batch eventstore.Batch
	for _, rec := range records {
		key := string(rec.Kind) + "/" + rec.StreamID
		stream, ok := byStream[key]
		if !ok {
			stream = &eventstore.StreamAppend{Kind: rec.Kind, StreamID: rec.StreamID, Expected: rec.Seq - 1}
			byStream[key] = stream
			order = append(order, key)
		}
		stream.Records = append(stream.Records, rec)
		batch.Records = append(batch.Records, rec)
	}
	for _, key := range order {
		batch.Streams = append(batch.Streams, *byStream[key])
	}
	return batch
}

func TestCommitAndLoad(t *testing.T) {
	store := openStore(t, nil)
	ctx := context.Background()

	err := store.Commit(ctx, batchOf(
		record(eventstore.KindCustomer, "cust-1", 1, domain.CustomerCreatedName),
		record(eventstore.KindCustomer, "cust-1", 2, domain.CustomerProductAddedName),
		record(eventstore.KindProduct, "prod-1", 1, domain.ProductCreatedName),
	))
	require.NoError(t, err)

	records, err := store.Load(ctx, eventstore.KindCustomer, "cust-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, int64(1), records[0].Seq)
	assert.Equal(t, domain.CustomerCreatedName, records[0].Name)
	assert.Equal(t, "user-1", records[0].Actor)

	tail, err := store.LoadFrom(ctx, eventstore.KindCustomer, "cust-1", 1)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, int64(2), tail[0].Seq)

	missing, err := store.Load(ctx, eventstore.KindCustomer, "missing")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestCommitVersionConflict(t *testing.T) {
	store := openStore(t, nil)
	ctx := context.Background()

	require.NoError(t, store.Commit(ctx, batchOf(
		record(eventstore.KindCustomer, "cust-1", 1, domain.CustomerCreatedName),
	)))

	// A second append from the same base must be rejected whole.
	err := store.Commit(ctx, batchOf(
		record(eventstore.KindCustomer, "cust-1", 1, domain.CustomerNameChangedName),
	))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrVersionConflict))

	records, err := store.Load(ctx, eventstore.KindCustomer, "cust-1")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestCommitFoldFailureLeavesLogUntouched(t *testing.T) {
	foldErr := domain.NewError(domain.ErrCodeInternal, "projection refused")
	store := openStore(t, func(ctx context.Context, records []eventstore.Record) error {
		return foldErr
	})

	err := store.Commit(context.Background(), batchOf(
		record(eventstore.KindCustomer, "cust-1", 1, domain.CustomerCreatedName),
	))
	require.Error(t, err)
	assert.True(t, errors.Is(err, foldErr))

	records, err := store.Load(context.Background(), eventstore.KindCustomer, "cust-1")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestHeads(t *testing.T) {
	store := openStore(t, nil)
	ctx := context.Background()

	require.NoError(t, store.Commit(ctx, batchOf(
		record(eventstore.KindCustomer, "cust-1", 1, domain.CustomerCreatedName),
		record(eventstore.KindCustomer, "cust-1", 2, domain.CustomerProductAddedName),
		record(eventstore.KindProduct, "prod-1", 1, domain.ProductCreatedName),
	)))

	heads, err := store.Heads(ctx)
	require.NoError(t, err)
	require.Len(t, heads, 2)

	bySeq := make(map[string]int64, len(heads))
	for _, head := range heads {
		bySeq[string(head.Kind)+"/"+head.StreamID] = head.Seq
	}
	assert.Equal(t, int64(2), bySeq["customer/cust-1"])
	assert.Equal(t, int64(1), bySeq["product/prod-1"])
}

func TestCommitAbortedContext(t *testing.T) {
	store := openStore(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Commit(ctx, batchOf(
		record(eventstore.KindCustomer, "cust-1", 1, domain.CustomerCreatedName),
	))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRequestAborted))
}
