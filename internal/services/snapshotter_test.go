package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servicecrm/backend/domain"
	"github.com/servicecrm/backend/eventstore"
	"github.com/servicecrm/backend/eventstore/memory"
	"github.com/servicecrm/backend/eventstore/snapshot"
	"github.com/servicecrm/backend/usecase"
)

type mapSnapshots struct {
	snaps map[string]snapshot.Snapshot
	saves int
}

func newMapSnapshots() *mapSnapshots {
	return &mapSnapshots{snaps: make(map[string]snapshot.Snapshot)}
}

func (m *mapSnapshots) Load(ctx context.Context, kind eventstore.Kind, id string) (*snapshot.Snapshot, error) {
	snap, ok := m.snaps[string(kind)+"/"+id]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (m *mapSnapshots) Save(ctx context.Context, snap snapshot.Snapshot) error {
	m.saves++
	m.snaps[string(snap.Kind)+"/"+snap.StreamID] = snap
	return nil
}

func seedCustomerStream(t *testing.T, store eventstore.Store, id domain.CustomerID, extraEvents int) {
	t.Helper()
	ctx := context.Background()
	session := usecase.NewSession(store, nil, nil)
	c, err := domain.NewCustomer("seed", domain.CustomerParams{ID: id, FirstName: "Nino", Role: domain.RoleOwner})
	require.NoError(t, err)
	session.AddCustomer(c)
	for i := 0; i < extraEvents; i++ {
		require.NoError(t, c.AddOrder("seed", domain.OrderID(fmt.Sprintf("order-%d", i))))
	}
	require.NoError(t, session.Commit(ctx))
}

func TestRunSnapshotsStreamsPastThreshold(t *testing.T) {
	store := memory.New(nil)
	snapshots := newMapSnapshots()
	ctx := context.Background()

	seedCustomerStream(t, store, "cust-long", 9)  // head 10
	seedCustomerStream(t, store, "cust-short", 1) // head 2

	snapshotter := NewSnapshotter(store, snapshots, nil, SnapshotterConfig{Threshold: 5})
	require.NoError(t, snapshotter.Run(ctx))

	assert.Equal(t, 1, snapshots.saves, "only the stream past the threshold is refreshed")

	snap, err := snapshots.Load(ctx, eventstore.KindCustomer, "cust-long")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, int64(10), snap.Version)

	var state domain.CustomerState
	require.NoError(t, json.Unmarshal(snap.State, &state))
	assert.Equal(t, domain.CustomerID("cust-long"), state.ID)
	assert.Equal(t, int64(10), state.Version)
	assert.Len(t, state.OrderIDs.Values(), 9)
}

func TestRunSkipsFreshSnapshots(t *testing.T) {
	store := memory.New(nil)
	snapshots := newMapSnapshots()
	ctx := context.Background()

	seedCustomerStream(t, store, "cust-1", 9)

	snapshotter := NewSnapshotter(store, snapshots, nil, SnapshotterConfig{Threshold: 5})
	require.NoError(t, snapshotter.Run(ctx))
	require.Equal(t, 1, snapshots.saves)

	// A second sweep with no new events leaves the snapshot alone.
	require.NoError(t, snapshotter.Run(ctx))
	assert.Equal(t, 1, snapshots.saves)
}

func TestSnapshotFeedsSessionReplay(t *testing.T) {
	store := memory.New(nil)
	snapshots := newMapSnapshots()
	ctx := context.Background()

	seedCustomerStream(t, store, "cust-1", 6)

	snapshotter := NewSnapshotter(store, snapshots, nil, SnapshotterConfig{Threshold: 1})
	require.NoError(t, snapshotter.Run(ctx))

	session := usecase.NewSession(store, snapshots, nil)
	c, err := session.GetCustomer(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), c.Version)
	assert.Equal(t, "Nino", c.FirstName)
}
