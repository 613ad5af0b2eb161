package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProduct(t *testing.T) {
	p, err := NewProduct("user-1", ProductParams{
		Brand:   "Bosch",
		Model:   "WAN28280",
		OwnerID: "cust-1",
	})
	require.NoError(t, err)

	assert.False(t, p.ID.IsZero())
	assert.Equal(t, int64(1), p.Version)
	assert.Equal(t, CustomerID("cust-1"), p.OwnerID)
	assert.True(t, p.IsActive)
	require.Len(t, p.Pending(), 1)
}

func TestNewProductValidation(t *testing.T) {
	_, err := NewProduct("user-1", ProductParams{Brand: "Bosch"})
	require.Error(t, err)
	assert.True(t, IsDomainError(err, ErrCodeInvalid))

	_, err = NewProduct("user-1", ProductParams{
		Brand:    "Bosch",
		Model:    "WAN28280",
		OwnerID:  "cust-1",
		DealerID: "cust-1",
	})
	require.Error(t, err)
	assert.True(t, IsDomainError(err, ErrCodeInvalid))
}

func TestUpdateOwnerReassign(t *testing.T) {
	p, err := NewProduct("user-1", ProductParams{ID: "prod-1", Brand: "Bosch", Model: "WAN28280", OwnerID: "cust-1"})
	require.NoError(t, err)
	p.ClearPending()

	require.NoError(t, p.UpdateOwner("user-2", "cust-2"))

	require.Len(t, p.Pending(), 1)
	changed, ok := p.Pending()[0].(*ProductOwnerChanged)
	require.True(t, ok)
	assert.Equal(t, CustomerID("cust-1"), changed.Previous)
	assert.Equal(t, CustomerID("cust-2"), changed.Next)
	assert.False(t, changed.IsChangingRole)
	assert.Equal(t, CustomerID("cust-2"), p.OwnerID)
	assert.Equal(t, int64(2), p.Version)
}

func TestUpdateOwnerNoOp(t *testing.T) {
	p, err := NewProduct("user-1", ProductParams{ID: "prod-1", Brand: "Bosch", Model: "WAN28280", OwnerID: "cust-1"})
	require.NoError(t, err)
	p.ClearPending()

	require.NoError(t, p.UpdateOwner("user-2", "cust-1"))
	assert.Empty(t, p.Pending())
	assert.Equal(t, int64(1), p.Version)
}

func TestUpdateOwnerRoleSwap(t *testing.T) {
	p, err := NewProduct("user-1", ProductParams{
		ID: "prod-1", Brand: "Bosch", Model: "WAN28280",
		OwnerID: "cust-owner", DealerID: "cust-dealer",
	})
	require.NoError(t, err)
	p.ClearPending()

	// Promoting the current dealer to owner swaps roles: the dealer slot is
	// cleared by a second auto-generated event, both flagged.
	require.NoError(t, p.UpdateOwner("user-2", "cust-dealer"))

	require.Len(t, p.Pending(), 2)
	ownerChanged, ok := p.Pending()[0].(*ProductOwnerChanged)
	require.True(t, ok)
	assert.Equal(t, CustomerID("cust-owner"), ownerChanged.Previous)
	assert.Equal(t, CustomerID("cust-dealer"), ownerChanged.Next)
	assert.True(t, ownerChanged.IsChangingRole)

	dealerChanged, ok := p.Pending()[1].(*ProductDealerChanged)
	require.True(t, ok)
	assert.Equal(t, CustomerID("cust-dealer"), dealerChanged.Previous)
	assert.Equal(t, CustomerID(""), dealerChanged.Next)
	assert.True(t, dealerChanged.IsChangingRole)

	assert.Equal(t, CustomerID("cust-dealer"), p.OwnerID)
	assert.True(t, p.DealerID.IsZero())
	assert.Equal(t, int64(3), p.Version)
}

func TestUpdateDealerRoleSwap(t *testing.T) {
	p, err := NewProduct("user-1", ProductParams{
		ID: "prod-1", Brand: "Bosch", Model: "WAN28280",
		OwnerID: "cust-owner", DealerID: "cust-dealer",
	})
	require.NoError(t, err)
	p.ClearPending()

	require.NoError(t, p.UpdateDealer("user-2", "cust-owner"))

	require.Len(t, p.Pending(), 2)
	dealerChanged, ok := p.Pending()[0].(*ProductDealerChanged)
	require.True(t, ok)
	assert.True(t, dealerChanged.IsChangingRole)
	ownerChanged, ok := p.Pending()[1].(*ProductOwnerChanged)
	require.True(t, ok)
	assert.True(t, ownerChanged.IsChangingRole)
	assert.Equal(t, CustomerID(""), ownerChanged.Next)

	assert.Equal(t, CustomerID("cust-owner"), p.DealerID)
	assert.True(t, p.OwnerID.IsZero())
}

func TestChangePurchase(t *testing.T) {
	purchase := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	warranty := purchase.AddDate(2, 0, 0)

	p, err := NewProduct("user-1", ProductParams{
		ID: "prod-1", Brand: "Bosch", Model: "WAN28280",
		PurchaseDate: &purchase, WarrantyUntil: &warranty,
	})
	require.NoError(t, err)
	p.ClearPending()

	samePurchase := purchase
	sameWarranty := warranty
	require.NoError(t, p.ChangePurchase("user-2", &samePurchase, &sameWarranty))
	assert.Empty(t, p.Pending(), "equal dates must not emit")

	later := warranty.AddDate(1, 0, 0)
	require.NoError(t, p.ChangePurchase("user-2", &purchase, &later))
	require.Len(t, p.Pending(), 1)
	assert.True(t, p.WarrantyUntil.Equal(later))
}

func TestMarkUnrepairable(t *testing.T) {
	p, err := NewProduct("user-1", ProductParams{ID: "prod-1", Brand: "Bosch", Model: "WAN28280"})
	require.NoError(t, err)
	p.ClearPending()

	err = p.MarkUnrepairable("user-2", "")
	require.Error(t, err)
	assert.True(t, IsDomainError(err, ErrCodeInvalid))

	require.NoError(t, p.MarkUnrepairable("user-2", "water damage"))
	assert.True(t, p.Unrepairable)
	assert.Equal(t, "water damage", p.UnrepairableReason)
	require.NotNil(t, p.UnrepairableAt)

	require.NoError(t, p.MarkUnrepairable("user-2", "water damage"))
	assert.Len(t, p.Pending(), 1, "repeating the same reason must not emit")
}

func TestReconstructProduct(t *testing.T) {
	p, err := NewProduct("user-1", ProductParams{ID: "prod-1", Brand: "Bosch", Model: "WAN28280", OwnerID: "cust-1"})
	require.NoError(t, err)
	require.NoError(t, p.UpdateOwner("user-2", "cust-2"))
	require.NoError(t, p.AddOrder("user-2", "order-1"))
	require.NoError(t, p.Deactivate("user-2"))

	events := p.Pending()
	created, ok := events[0].(*ProductCreated)
	require.True(t, ok)

	replayed, err := ReconstructProduct(created, events[1:])
	require.NoError(t, err)
	assert.Equal(t, p.State(), replayed.State())
}
