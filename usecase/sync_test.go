package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servicecrm/backend/domain"
	"github.com/servicecrm/backend/eventstore"
	"github.com/servicecrm/backend/eventstore/memory"
	"github.com/servicecrm/backend/usecase"
)

func seedProduct(t *testing.T, store eventstore.Store, params domain.ProductParams) {
	t.Helper()
	session := usecase.NewSession(store, nil, nil)
	p, err := domain.NewProduct("seed", params)
	require.NoError(t, err)
	session.AddProduct(p)
	require.NoError(t, session.Commit(context.Background()))
}

func seedCustomer(t *testing.T, store eventstore.Store, params domain.CustomerParams) {
	t.Helper()
	session := usecase.NewSession(store, nil, nil)
	c, err := domain.NewCustomer("seed", params)
	require.NoError(t, err)
	session.AddCustomer(c)
	require.NoError(t, session.Commit(context.Background()))
}

func loadCustomer(t *testing.T, store eventstore.Store, id domain.CustomerID) domain.CustomerState {
	t.Helper()
	session := usecase.NewSession(store, nil, nil)
	c, err := session.GetCustomer(context.Background(), id)
	require.NoError(t, err)
	return c.State()
}

func loadProduct(t *testing.T, store eventstore.Store, id domain.ProductID) domain.ProductState {
	t.Helper()
	session := usecase.NewSession(store, nil, nil)
	p, err := session.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.State()
}

func TestLinkerCustomerCreationClaimsProducts(t *testing.T) {
	store := memory.New(nil)
	ctx := context.Background()
	seedProduct(t, store, domain.ProductParams{ID: "prod-1", Brand: "Bosch", Model: "WAN28280"})

	session := usecase.NewSession(store, nil, nil)
	linker := usecase.NewLinker(session, nil)

	c, err := domain.NewCustomer("user-1", domain.CustomerParams{
		ID: "cust-1", FirstName: "Nino", Role: domain.RoleOwner,
		ProductIDs: []domain.ProductID{"prod-1"},
	})
	require.NoError(t, err)
	require.NoError(t, linker.TrackNewCustomer(ctx, c))
	require.NoError(t, session.Commit(ctx))

	product := loadProduct(t, store, "prod-1")
	assert.Equal(t, domain.CustomerID("cust-1"), product.OwnerID)
	assert.Equal(t, int64(2), product.Version)
}

func TestLinkerDealerCreationClaimsDealerSlot(t *testing.T) {
	store := memory.New(nil)
	ctx := context.Background()
	seedProduct(t, store, domain.ProductParams{ID: "prod-1", Brand: "Bosch", Model: "WAN28280"})

	session := usecase.NewSession(store, nil, nil)
	linker := usecase.NewLinker(session, nil)

	c, err := domain.NewCustomer("user-1", domain.CustomerParams{
		ID: "cust-1", FirstName: "Nino", Role: domain.RoleDealer,
		ProductIDs: []domain.ProductID{"prod-1"},
	})
	require.NoError(t, err)
	require.NoError(t, linker.TrackNewCustomer(ctx, c))
	require.NoError(t, session.Commit(ctx))

	product := loadProduct(t, store, "prod-1")
	assert.Equal(t, domain.CustomerID("cust-1"), product.DealerID)
	assert.True(t, product.OwnerID.IsZero())
}

func TestLinkerDanglingProductAbortsCreation(t *testing.T) {
	store := memory.New(nil)
	ctx := context.Background()

	session := usecase.NewSession(store, nil, nil)
	linker := usecase.NewLinker(session, nil)

	c, err := domain.NewCustomer("user-1", domain.CustomerParams{
		ID: "cust-1", FirstName: "Nino", Role: domain.RoleOwner,
		ProductIDs: []domain.ProductID{"no-such-product"},
	})
	require.NoError(t, err)

	err = linker.TrackNewCustomer(ctx, c)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrProductNotFound))

	// Nothing was committed: the customer stream does not exist.
	records, loadErr := store.Load(ctx, eventstore.KindCustomer, "cust-1")
	require.NoError(t, loadErr)
	assert.Empty(t, records)
}

func TestLinkerProductCreationAttachesCustomers(t *testing.T) {
	store := memory.New(nil)
	ctx := context.Background()
	seedCustomer(t, store, domain.CustomerParams{ID: "cust-owner", FirstName: "Nino", Role: domain.RoleOwner})
	seedCustomer(t, store, domain.CustomerParams{ID: "cust-dealer", FirstName: "Dato", Role: domain.RoleDealer})

	session := usecase.NewSession(store, nil, nil)
	linker := usecase.NewLinker(session, nil)

	p, err := domain.NewProduct("user-1", domain.ProductParams{
		ID: "prod-1", Brand: "Bosch", Model: "WAN28280",
		OwnerID: "cust-owner", DealerID: "cust-dealer",
	})
	require.NoError(t, err)
	require.NoError(t, linker.TrackNewProduct(ctx, p))
	require.NoError(t, session.Commit(ctx))

	owner := loadCustomer(t, store, "cust-owner")
	dealer := loadCustomer(t, store, "cust-dealer")
	assert.True(t, owner.ProductIDs.Has("prod-1"))
	assert.True(t, dealer.ProductIDs.Has("prod-1"))
}

func TestLinkerReassignMovesMembership(t *testing.T) {
	store := memory.New(nil)
	ctx := context.Background()
	seedCustomer(t, store, domain.CustomerParams{ID: "cust-1", FirstName: "Nino", Role: domain.RoleOwner})
	seedCustomer(t, store, domain.CustomerParams{ID: "cust-2", FirstName: "Dato", Role: domain.RoleOwner})

	{
		session := usecase.NewSession(store, nil, nil)
		linker := usecase.NewLinker(session, nil)
		p, err := domain.NewProduct("user-1", domain.ProductParams{ID: "prod-1", Brand: "Bosch", Model: "WAN28280", OwnerID: "cust-1"})
		require.NoError(t, err)
		require.NoError(t, linker.TrackNewProduct(ctx, p))
		require.NoError(t, session.Commit(ctx))
	}

	session := usecase.NewSession(store, nil, nil)
	linker := usecase.NewLinker(session, nil)
	p, err := session.GetProduct(ctx, "prod-1")
	require.NoError(t, err)
	linker.WatchProduct(ctx, p)
	require.NoError(t, p.UpdateOwner("user-2", "cust-2"))
	require.NoError(t, session.Commit(ctx))

	previous := loadCustomer(t, store, "cust-1")
	next := loadCustomer(t, store, "cust-2")
	assert.False(t, previous.ProductIDs.Has("prod-1"), "former owner must lose the product")
	assert.True(t, next.ProductIDs.Has("prod-1"))
	assert.Equal(t, domain.CustomerID("cust-2"), loadProduct(t, store, "prod-1").OwnerID)
}

func TestLinkerCustomerRemovalReleasesSlot(t *testing.T) {
	store := memory.New(nil)
	ctx := context.Background()
	seedCustomer(t, store, domain.CustomerParams{ID: "cust-1", FirstName: "Nino", Role: domain.RoleOwner})

	{
		session := usecase.NewSession(store, nil, nil)
		linker := usecase.NewLinker(session, nil)
		p, err := domain.NewProduct("user-1", domain.ProductParams{ID: "prod-1", Brand: "Bosch", Model: "WAN28280", OwnerID: "cust-1"})
		require.NoError(t, err)
		require.NoError(t, linker.TrackNewProduct(ctx, p))
		require.NoError(t, session.Commit(ctx))
	}

	session := usecase.NewSession(store, nil, nil)
	linker := usecase.NewLinker(session, nil)
	c, err := session.GetCustomer(ctx, "cust-1")
	require.NoError(t, err)
	linker.WatchCustomer(ctx, c)
	require.NoError(t, c.RemoveProduct("user-2", "prod-1"))
	require.NoError(t, session.Commit(ctx))

	product := loadProduct(t, store, "prod-1")
	assert.True(t, product.OwnerID.IsZero())
	assert.False(t, loadCustomer(t, store, "cust-1").ProductIDs.Has("prod-1"))
}

func TestLinkerRoleSwapDoesNotPropagate(t *testing.T) {
	store := memory.New(nil)
	ctx := context.Background()
	seedCustomer(t, store, domain.CustomerParams{ID: "cust-1", FirstName: "Nino", Role: domain.RoleOwner})

	{
		session := usecase.NewSession(store, nil, nil)
		linker := usecase.NewLinker(session, nil)
		p, err := domain.NewProduct("user-1", domain.ProductParams{ID: "prod-1", Brand: "Bosch", Model: "WAN28280", OwnerID: "cust-1"})
		require.NoError(t, err)
		require.NoError(t, linker.TrackNewProduct(ctx, p))
		require.NoError(t, session.Commit(ctx))
	}
	customerHeadBefore := loadCustomer(t, store, "cust-1").Version

	// Moving the owner into the dealer slot swaps roles on the product; the
	// flagged events stay on the product stream and touch no customer.
	session := usecase.NewSession(store, nil, nil)
	linker := usecase.NewLinker(session, nil)
	p, err := session.GetProduct(ctx, "prod-1")
	require.NoError(t, err)
	linker.WatchProduct(ctx, p)
	require.NoError(t, p.UpdateDealer("user-2", "cust-1"))
	require.NoError(t, session.Commit(ctx))

	product := loadProduct(t, store, "prod-1")
	assert.Equal(t, domain.CustomerID("cust-1"), product.DealerID)
	assert.True(t, product.OwnerID.IsZero())

	customer := loadCustomer(t, store, "cust-1")
	assert.Equal(t, customerHeadBefore, customer.Version, "the swap must not emit customer events")
	assert.True(t, customer.ProductIDs.Has("prod-1"))
}

func TestLinkerRoleSwapReleasesDisplacedHolder(t *testing.T) {
	store := memory.New(nil)
	ctx := context.Background()
	seedCustomer(t, store, domain.CustomerParams{ID: "cust-1", FirstName: "Nino", Role: domain.RoleOwner})
	seedCustomer(t, store, domain.CustomerParams{ID: "cust-2", FirstName: "Rina", Role: domain.RoleDealer})

	{
		session := usecase.NewSession(store, nil, nil)
		linker := usecase.NewLinker(session, nil)
		p, err := domain.NewProduct("user-1", domain.ProductParams{
			ID: "prod-1", Brand: "Bosch", Model: "WAN28280",
			OwnerID: "cust-1", DealerID: "cust-2",
		})
		require.NoError(t, err)
		require.NoError(t, linker.TrackNewProduct(ctx, p))
		require.NoError(t, session.Commit(ctx))
	}
	dealerHeadBefore := loadCustomer(t, store, "cust-2").Version

	// Promoting the dealer over a different owner is still a role swap, but
	// the displaced owner ends up holding neither slot and must lose the
	// product from its membership set.
	session := usecase.NewSession(store, nil, nil)
	linker := usecase.NewLinker(session, nil)
	p, err := session.GetProduct(ctx, "prod-1")
	require.NoError(t, err)
	linker.WatchProduct(ctx, p)
	require.NoError(t, p.UpdateOwner("user-2", "cust-2"))
	require.NoError(t, session.Commit(ctx))

	product := loadProduct(t, store, "prod-1")
	assert.Equal(t, domain.CustomerID("cust-2"), product.OwnerID)
	assert.True(t, product.DealerID.IsZero())

	displaced := loadCustomer(t, store, "cust-1")
	assert.False(t, displaced.ProductIDs.Has("prod-1"), "displaced owner must release the product")

	promoted := loadCustomer(t, store, "cust-2")
	assert.Equal(t, dealerHeadBefore, promoted.Version, "the customer switching slots must not emit events")
	assert.True(t, promoted.ProductIDs.Has("prod-1"))
}
