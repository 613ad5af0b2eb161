package product_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servicecrm/backend/domain"
	"github.com/servicecrm/backend/eventstore"
	esmemory "github.com/servicecrm/backend/eventstore/memory"
	"github.com/servicecrm/backend/projection"
	projmemory "github.com/servicecrm/backend/projection/memory"
	"github.com/servicecrm/backend/usecase/customer"
	"github.com/servicecrm/backend/usecase/product"
)

type fixture struct {
	proj      *projmemory.Store
	customers *customer.UseCase
	products  *product.UseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	proj := projmemory.New()
	engine := projection.NewEngine(nil, nil)
	store := esmemory.New(func(ctx context.Context, records []eventstore.Record) error {
		return engine.Fold(ctx, proj, records)
	})
	return &fixture{
		proj:      proj,
		customers: customer.New(store, nil, nil, nil),
		products:  product.New(store, nil, nil, nil),
	}
}

func TestCreateAttachesDeclaredCustomers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.customers.Create(ctx, "user-1", domain.CustomerParams{ID: "cust-1", FirstName: "Nino", Role: domain.RoleOwner})
	require.NoError(t, err)

	state, err := f.products.Create(ctx, "user-1", domain.ProductParams{
		ID: "prod-1", Brand: "Bosch", Model: "WAN28280", OwnerID: "cust-1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), state.Version)

	row, ok := f.proj.CustomerRow("cust-1")
	require.True(t, ok)
	assert.True(t, row.ProductIDs.Has("prod-1"))
	assert.True(t, f.proj.HasCustomerProduct("cust-1", "prod-1"))
}

func TestCreateDanglingOwnerAborts(t *testing.T) {
	f := newFixture(t)

	_, err := f.products.Create(context.Background(), "user-1", domain.ProductParams{
		ID: "prod-1", Brand: "Bosch", Model: "WAN28280", OwnerID: "no-such-customer",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCustomerNotFound))

	_, ok := f.proj.ProductRow("prod-1")
	assert.False(t, ok)
}

func TestUpdateOwnerMovesMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.customers.Create(ctx, "user-1", domain.CustomerParams{ID: "cust-1", FirstName: "Nino", Role: domain.RoleOwner})
	require.NoError(t, err)
	_, err = f.customers.Create(ctx, "user-1", domain.CustomerParams{ID: "cust-2", FirstName: "Dato", Role: domain.RoleOwner})
	require.NoError(t, err)
	_, err = f.products.Create(ctx, "user-1", domain.ProductParams{ID: "prod-1", Brand: "Bosch", Model: "WAN28280", OwnerID: "cust-1"})
	require.NoError(t, err)

	state, err := f.products.UpdateOwner(ctx, "user-2", "prod-1", 0, "cust-2")
	require.NoError(t, err)
	assert.Equal(t, domain.CustomerID("cust-2"), state.OwnerID)

	previous, _ := f.proj.CustomerRow("cust-1")
	next, _ := f.proj.CustomerRow("cust-2")
	assert.False(t, previous.ProductIDs.Has("prod-1"))
	assert.True(t, next.ProductIDs.Has("prod-1"))
	assert.Equal(t, 1, f.proj.CustomerProductCount("prod-1"))
}

func TestUpdateDealerRoleSwap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.customers.Create(ctx, "user-1", domain.CustomerParams{ID: "cust-1", FirstName: "Nino", Role: domain.RoleOwner})
	require.NoError(t, err)
	_, err = f.products.Create(ctx, "user-1", domain.ProductParams{ID: "prod-1", Brand: "Bosch", Model: "WAN28280", OwnerID: "cust-1"})
	require.NoError(t, err)
	before, _ := f.proj.CustomerRow("cust-1")

	state, err := f.products.UpdateDealer(ctx, "user-2", "prod-1", 0, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, domain.CustomerID("cust-1"), state.DealerID)
	assert.True(t, state.OwnerID.IsZero())

	// The swap is contained to the product: the customer keeps its version,
	// its membership, and the single link row.
	after, _ := f.proj.CustomerRow("cust-1")
	assert.Equal(t, before.Version, after.Version)
	assert.True(t, after.ProductIDs.Has("prod-1"))
	assert.Equal(t, 1, f.proj.CustomerProductCount("prod-1"))
}

func TestUpdateOwnerRoleSwapReleasesFormerOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.customers.Create(ctx, "user-1", domain.CustomerParams{ID: "cust-1", FirstName: "Nino", Role: domain.RoleOwner})
	require.NoError(t, err)
	_, err = f.customers.Create(ctx, "user-1", domain.CustomerParams{ID: "cust-2", FirstName: "Rina", Role: domain.RoleDealer})
	require.NoError(t, err)
	_, err = f.products.Create(ctx, "user-1", domain.ProductParams{
		ID: "prod-1", Brand: "Bosch", Model: "WAN28280",
		OwnerID: "cust-1", DealerID: "cust-2",
	})
	require.NoError(t, err)

	state, err := f.products.UpdateOwner(ctx, "user-2", "prod-1", 0, "cust-2")
	require.NoError(t, err)
	assert.Equal(t, domain.CustomerID("cust-2"), state.OwnerID)
	assert.True(t, state.DealerID.IsZero())

	// The former owner holds neither slot after the swap, so its membership
	// and its link row must both be gone, and the replayed aggregate must
	// agree with the read model.
	former, err := f.customers.ByID(ctx, "cust-1")
	require.NoError(t, err)
	assert.False(t, former.ProductIDs.Has("prod-1"))
	row, _ := f.proj.CustomerRow("cust-1")
	assert.False(t, row.ProductIDs.Has("prod-1"))
	assert.False(t, f.proj.HasCustomerProduct("cust-1", "prod-1"))

	promoted, err := f.customers.ByID(ctx, "cust-2")
	require.NoError(t, err)
	assert.True(t, promoted.ProductIDs.Has("prod-1"))
	assert.True(t, f.proj.HasCustomerProduct("cust-2", "prod-1"))
	assert.Equal(t, 1, f.proj.CustomerProductCount("prod-1"))
}

func TestMarkUnrepairableConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	state, err := f.products.Create(ctx, "user-1", domain.ProductParams{ID: "prod-1", Brand: "Bosch", Model: "WAN28280"})
	require.NoError(t, err)

	_, err = f.products.MarkUnrepairable(ctx, "user-2", "prod-1", state.Version+5, "water damage")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrVersionConflict))

	marked, err := f.products.MarkUnrepairable(ctx, "user-2", "prod-1", state.Version, "water damage")
	require.NoError(t, err)
	assert.True(t, marked.Unrepairable)
	assert.Equal(t, "water damage", marked.UnrepairableReason)
}

func TestUpsertManyMixedCreateAndUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	existing, err := f.products.Create(ctx, "user-1", domain.ProductParams{ID: "prod-1", Brand: "Bosch", Model: "WAN28280"})
	require.NoError(t, err)

	purchase := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	results, err := f.products.UpsertMany(ctx, "user-2", []product.UpsertItem{
		{Params: domain.ProductParams{ID: "prod-1", Brand: "Bosch", Model: "WAN28281", PurchaseDate: &purchase}, Expected: existing.Version},
		{Params: domain.ProductParams{Brand: "Miele", Model: "W1"}},
		{Params: domain.ProductParams{ID: "prod-3", Brand: "Beko", Model: "B100"}},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	require.NoError(t, results[0].Err)
	assert.Equal(t, "WAN28281", results[0].State.Model)
	require.NotNil(t, results[0].State.PurchaseDate)

	require.NoError(t, results[1].Err)
	assert.False(t, results[1].State.ID.IsZero(), "missing id means create with a generated id")

	// A set but unknown id also creates, keeping the caller's id.
	require.NoError(t, results[2].Err)
	assert.Equal(t, domain.ProductID("prod-3"), results[2].State.ID)

	row, ok := f.proj.ProductRow("prod-3")
	require.True(t, ok)
	assert.Equal(t, "Beko", row.Brand)
}

func TestUpsertManyPerItemErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	results, err := f.products.UpsertMany(ctx, "user-1", []product.UpsertItem{
		{Params: domain.ProductParams{ID: "prod-ok", Brand: "Bosch", Model: "WAN28280"}},
		{Params: domain.ProductParams{ID: "prod-bad", Brand: "", Model: ""}},
	})
	require.Error(t, err, "the group surfaces the first failure")
	require.Len(t, results, 2)

	require.NoError(t, results[0].Err)
	assert.NotNil(t, results[0].State)

	require.Error(t, results[1].Err)
	assert.True(t, domain.IsDomainError(results[1].Err, domain.ErrCodeInvalid))

	// The failing sibling did not undo the good one.
	_, ok := f.proj.ProductRow("prod-ok")
	assert.True(t, ok)
}
