package customer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servicecrm/backend/domain"
	"github.com/servicecrm/backend/eventstore"
	esmemory "github.com/servicecrm/backend/eventstore/memory"
	"github.com/servicecrm/backend/pkg/pagination"
	"github.com/servicecrm/backend/projection"
	projmemory "github.com/servicecrm/backend/projection/memory"
	"github.com/servicecrm/backend/repository"
	"github.com/servicecrm/backend/usecase/customer"
	"github.com/servicecrm/backend/usecase/product"
)

// fixture wires the memory event store to the projection fold, the same shape
// the Postgres adapter runs in production.
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

func TestCreateClaimsDeclaredProducts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.products.Create(ctx, "user-1", domain.ProductParams{ID: "prod-1", Brand: "Bosch", Model: "WAN28280"})
	require.NoError(t, err)

	state, err := f.customers.Create(ctx, "user-1", domain.CustomerParams{
		ID: "cust-1", FirstName: "Nino", Role: domain.RoleOwner,
		ProductIDs: []domain.ProductID{"prod-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), state.Version)
	assert.True(t, state.ProductIDs.Has("prod-1"))

	// Both sides of the link are visible in the same read model state.
	productRow, ok := f.proj.ProductRow("prod-1")
	require.True(t, ok)
	assert.Equal(t, domain.CustomerID("cust-1"), productRow.OwnerID)
	assert.True(t, f.proj.HasCustomerProduct("cust-1", "prod-1"))
	assert.Equal(t, 1, f.proj.CustomerProductCount("prod-1"))

	// The authoritative replay agrees with the returned state.
	replayed, err := f.customers.ByID(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, *state, *replayed)
}

func TestCreateDanglingProductAborts(t *testing.T) {
	f := newFixture(t)

	_, err := f.customers.Create(context.Background(), "user-1", domain.CustomerParams{
		ID: "cust-1", FirstName: "Nino", Role: domain.RoleOwner,
		ProductIDs: []domain.ProductID{"no-such-product"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrProductNotFound))

	_, ok := f.proj.CustomerRow("cust-1")
	assert.False(t, ok)
}

func TestUpdateOptimisticConcurrency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	state, err := f.customers.Create(ctx, "user-1", domain.CustomerParams{ID: "cust-1", FirstName: "Nino", Role: domain.RoleOwner})
	require.NoError(t, err)

	first := "Natia"
	_, err = f.customers.Update(ctx, "user-2", "cust-1", state.Version+1, customer.UpdateParams{FirstName: &first})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrVersionConflict))

	updated, err := f.customers.Update(ctx, "user-2", "cust-1", state.Version, customer.UpdateParams{FirstName: &first})
	require.NoError(t, err)
	assert.Equal(t, "Natia", updated.FirstName)
	assert.Equal(t, int64(2), updated.Version)
}

func TestUpdatePreservesPairedFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.customers.Create(ctx, "user-1", domain.CustomerParams{
		ID: "cust-1", FirstName: "Nino", LastName: "Beridze",
		CityID: "tbilisi", Address: "Rustaveli 12", Role: domain.RoleOwner,
	})
	require.NoError(t, err)

	address := "Chavchavadze 5"
	updated, err := f.customers.Update(ctx, "user-2", "cust-1", 0, customer.UpdateParams{Address: &address})
	require.NoError(t, err)
	assert.Equal(t, "tbilisi", updated.CityID, "unset pair half keeps its value")
	assert.Equal(t, "Chavchavadze 5", updated.Address)
	assert.Equal(t, "Nino", updated.FirstName)
	assert.Equal(t, "Beridze", updated.LastName)
}

func TestAddProductPointsProductBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.products.Create(ctx, "user-1", domain.ProductParams{ID: "prod-1", Brand: "Bosch", Model: "WAN28280"})
	require.NoError(t, err)
	_, err = f.customers.Create(ctx, "user-1", domain.CustomerParams{ID: "cust-1", FirstName: "Nino", Role: domain.RoleDealer})
	require.NoError(t, err)

	state, err := f.customers.AddProduct(ctx, "user-2", "cust-1", 0, "prod-1")
	require.NoError(t, err)
	assert.True(t, state.ProductIDs.Has("prod-1"))

	productRow, ok := f.proj.ProductRow("prod-1")
	require.True(t, ok)
	assert.Equal(t, domain.CustomerID("cust-1"), productRow.DealerID, "a dealer customer claims the dealer slot")
	assert.True(t, f.proj.HasCustomerProduct("cust-1", "prod-1"))
}

func TestRemoveProductReleasesSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.products.Create(ctx, "user-1", domain.ProductParams{ID: "prod-1", Brand: "Bosch", Model: "WAN28280"})
	require.NoError(t, err)
	_, err = f.customers.Create(ctx, "user-1", domain.CustomerParams{
		ID: "cust-1", FirstName: "Nino", Role: domain.RoleOwner,
		ProductIDs: []domain.ProductID{"prod-1"},
	})
	require.NoError(t, err)

	state, err := f.customers.RemoveProduct(ctx, "user-2", "cust-1", 0, "prod-1")
	require.NoError(t, err)
	assert.False(t, state.ProductIDs.Has("prod-1"))

	productRow, ok := f.proj.ProductRow("prod-1")
	require.True(t, ok)
	assert.True(t, productRow.OwnerID.IsZero())
	assert.False(t, f.proj.HasCustomerProduct("cust-1", "prod-1"))
}

func TestDeleteAndRestore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.customers.Create(ctx, "user-1", domain.CustomerParams{ID: "cust-1", FirstName: "Nino", Role: domain.RoleOwner})
	require.NoError(t, err)

	require.NoError(t, f.customers.Delete(ctx, "user-2", "cust-1", 0))
	row, ok := f.proj.CustomerRow("cust-1")
	require.True(t, ok)
	assert.True(t, row.IsDeleted)
	assert.False(t, row.IsActive)

	// Activating a deleted customer is rejected; restoring brings it back.
	_, err = f.customers.Activate(ctx, "user-2", "cust-1", 0)
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))

	restored, err := f.customers.Restore(ctx, "user-2", "cust-1", 0)
	require.NoError(t, err)
	assert.False(t, restored.IsDeleted)
	assert.True(t, restored.IsActive)
}

// stubReader satisfies the query surface for Detail passthrough tests.
type stubReader struct {
	state *domain.CustomerState
}

func (s *stubReader) List(ctx context.Context, filter repository.CustomerFilter) ([]domain.CustomerState, error) {
	return nil, nil
}

func (s *stubReader) Page(ctx context.Context, filter repository.CustomerFilter, p pagination.Pagination) (pagination.Result[domain.CustomerState], error) {
	return pagination.Result[domain.CustomerState]{}, nil
}

func (s *stubReader) Keyset(ctx context.Context, filter repository.CustomerFilter, cursor pagination.Cursor) (pagination.KeysetResult[domain.CustomerState], error) {
	return pagination.KeysetResult[domain.CustomerState]{}, nil
}

func (s *stubReader) Detail(ctx context.Context, id domain.CustomerID) (*domain.CustomerState, error) {
	return s.state, nil
}

func TestDetailMissingRow(t *testing.T) {
	uc := customer.New(esmemory.New(nil), nil, &stubReader{}, nil)

	_, err := uc.Detail(context.Background(), "cust-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCustomerNotFound))

	want := &domain.CustomerState{ID: "cust-1", FirstName: "Nino"}
	uc = customer.New(esmemory.New(nil), nil, &stubReader{state: want}, nil)
	got, err := uc.Detail(context.Background(), "cust-1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
