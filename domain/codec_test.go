package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustomerEventRoundTrip(t *testing.T) {
	c, err := NewCustomer("user-1", CustomerParams{
		ID:         "cust-1",
		FirstName:  "Nino",
		Phone:      "+995599123456",
		Role:       RoleOwner,
		ProductIDs: []ProductID{"prod-2", "prod-1"},
		CentreID:   "centre-1",
	})
	require.NoError(t, err)

	name, payload, err := EncodeCustomerEvent(c.Pending()[0])
	require.NoError(t, err)
	assert.Equal(t, CustomerCreatedName, name)

	decoded, err := DecodeCustomerEvent(name, payload)
	require.NoError(t, err)
	created, ok := decoded.(*CustomerCreated)
	require.True(t, ok)
	assert.Equal(t, CustomerID("cust-1"), created.CustomerID())
	assert.Equal(t, "Nino", created.FirstName)
	assert.Equal(t, AppUserID("user-1"), created.Actor())
	assert.Equal(t, []ProductID{"prod-1", "prod-2"}, created.ProductIDs.Values())
}

func TestProductEventRoundTrip(t *testing.T) {
	p, err := NewProduct("user-1", ProductParams{ID: "prod-1", Brand: "Bosch", Model: "WAN28280", OwnerID: "cust-1", DealerID: "cust-2"})
	require.NoError(t, err)
	p.ClearPending()
	require.NoError(t, p.UpdateOwner("user-2", "cust-2"))

	name, payload, err := EncodeProductEvent(p.Pending()[0])
	require.NoError(t, err)
	assert.Equal(t, ProductOwnerChangedName, name)

	decoded, err := DecodeProductEvent(name, payload)
	require.NoError(t, err)
	changed, ok := decoded.(*ProductOwnerChanged)
	require.True(t, ok)
	assert.Equal(t, CustomerID("cust-1"), changed.Previous)
	assert.Equal(t, CustomerID("cust-2"), changed.Next)
	assert.True(t, changed.IsChangingRole)
}

func TestDecodeUnknownEvent(t *testing.T) {
	_, err := DecodeCustomerEvent("customer.telepathy_enabled", []byte(`{}`))
	require.Error(t, err)
	assert.True(t, IsDomainError(err, ErrCodeInternal))
	assert.True(t, errors.Is(err, ErrUnknownEvent))

	_, err = DecodeProductEvent("product.telepathy_enabled", []byte(`{}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownEvent))
}

func TestDecodeCorruptPayload(t *testing.T) {
	_, err := DecodeCustomerEvent(CustomerCreatedName, []byte(`{`))
	require.Error(t, err)
	assert.True(t, IsDomainError(err, ErrCodeInternal))
}
