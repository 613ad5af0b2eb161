package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCustomer(t *testing.T) {
	c, err := NewCustomer("user-1", CustomerParams{
		FirstName:  "Nino",
		LastName:   "Beridze",
		Role:       RoleOwner,
		ProductIDs: []ProductID{"prod-1"},
	})
	require.NoError(t, err)

	assert.False(t, c.ID.IsZero(), "id must be generated when absent")
	assert.Equal(t, int64(1), c.Version)
	assert.True(t, c.IsActive)
	assert.False(t, c.IsDeleted)
	assert.True(t, c.ProductIDs.Has("prod-1"))
	assert.Equal(t, AppUserID("user-1"), c.CreatedBy)

	require.Len(t, c.Pending(), 1)
	created, ok := c.Pending()[0].(*CustomerCreated)
	require.True(t, ok)
	assert.Equal(t, "Nino", created.FirstName)
}

func TestNewCustomerValidation(t *testing.T) {
	_, err := NewCustomer("user-1", CustomerParams{Role: RoleOwner})
	require.Error(t, err)
	assert.True(t, IsDomainError(err, ErrCodeInvalid))

	_, err = NewCustomer("user-1", CustomerParams{FirstName: "Nino", Role: "reseller"})
	require.Error(t, err)
	assert.True(t, IsDomainError(err, ErrCodeInvalid))
}

func TestCustomerCommandsAreIdempotent(t *testing.T) {
	c, err := NewCustomer("user-1", CustomerParams{FirstName: "Nino", LastName: "Beridze", Role: RoleOwner})
	require.NoError(t, err)
	c.ClearPending()

	require.NoError(t, c.ChangeName("user-2", "Nino", "Beridze"))
	require.NoError(t, c.ChangePhone("user-2", c.Phone))
	require.NoError(t, c.ChangeRole("user-2", RoleOwner))
	require.NoError(t, c.RemoveProduct("user-2", "never-attached"))
	require.NoError(t, c.Activate("user-2"))

	assert.Empty(t, c.Pending(), "matching commands must not emit events")
	assert.Equal(t, int64(1), c.Version)
	assert.Equal(t, AppUserID("user-1"), c.LastModifiedBy)
}

func TestCustomerEffectiveCommands(t *testing.T) {
	c, err := NewCustomer("user-1", CustomerParams{FirstName: "Nino", Role: RoleOwner})
	require.NoError(t, err)
	c.ClearPending()

	require.NoError(t, c.AddProduct("user-2", "prod-1"))
	require.NoError(t, c.AddOrder("user-2", "order-1"))
	require.NoError(t, c.ChangeRole("user-2", RoleDealer))

	assert.Equal(t, int64(4), c.Version)
	assert.Len(t, c.Pending(), 3)
	assert.Equal(t, RoleDealer, c.Role)
	assert.True(t, c.ProductIDs.Has("prod-1"))
	assert.True(t, c.OrderIDs.Has("order-1"))
	assert.Equal(t, AppUserID("user-2"), c.LastModifiedBy)
}

func TestCustomerActivateDeleted(t *testing.T) {
	c, err := NewCustomer("user-1", CustomerParams{FirstName: "Nino", Role: RoleOwner})
	require.NoError(t, err)

	require.NoError(t, c.Delete("user-1"))
	assert.True(t, c.IsDeleted)
	assert.False(t, c.IsActive)

	err = c.Activate("user-1")
	require.Error(t, err)
	assert.True(t, IsDomainError(err, ErrCodeInvalid))

	require.NoError(t, c.Restore("user-1"))
	assert.False(t, c.IsDeleted)
	assert.True(t, c.IsActive)
}

func TestReconstructCustomer(t *testing.T) {
	c, err := NewCustomer("user-1", CustomerParams{ID: "cust-1", FirstName: "Nino", Role: RoleOwner})
	require.NoError(t, err)
	require.NoError(t, c.AddProduct("user-1", "prod-1"))
	require.NoError(t, c.ChangeName("user-2", "Nino", "Kvaratskhelia"))
	require.NoError(t, c.Deactivate("user-2"))

	events := c.Pending()
	created, ok := events[0].(*CustomerCreated)
	require.True(t, ok)

	replayed, err := ReconstructCustomer(created, events[1:])
	require.NoError(t, err)
	assert.Equal(t, c.State(), replayed.State())

	_, err = ReconstructCustomer(nil, nil)
	require.Error(t, err)
	assert.True(t, IsDomainError(err, ErrCodeInternal))
}

func TestRehydrateCustomer(t *testing.T) {
	c, err := NewCustomer("user-1", CustomerParams{ID: "cust-1", FirstName: "Nino", Role: RoleOwner})
	require.NoError(t, err)
	snapshot := c.State()

	require.NoError(t, c.AddProduct("user-1", "prod-1"))
	tail := c.Pending()[1:]

	resumed, err := RehydrateCustomer(snapshot, tail)
	require.NoError(t, err)
	assert.Equal(t, c.State(), resumed.State())
}

func TestCustomerObserve(t *testing.T) {
	c, err := NewCustomer("user-1", CustomerParams{FirstName: "Nino", Role: RoleOwner})
	require.NoError(t, err)

	var seen []string
	unsubscribe := c.Observe(func(e CustomerEvent) error {
		seen = append(seen, e.EventName())
		return nil
	})

	require.NoError(t, c.AddProduct("user-1", "prod-1"))
	require.NoError(t, c.AddOrder("user-1", "order-1"))
	assert.Equal(t, []string{CustomerProductAddedName, CustomerOrderAddedName}, seen)

	unsubscribe()
	require.NoError(t, c.AddOrder("user-1", "order-2"))
	assert.Len(t, seen, 2, "unsubscribed observer must not fire")
}
