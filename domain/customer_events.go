package domain

// Customer event names as persisted in the event log.
const (
	CustomerCreatedName        = "customer.created"
	CustomerNameChangedName    = "customer.name_changed"
	CustomerPhoneChangedName   = "customer.phone_changed"
	CustomerAddressChangedName = "customer.address_changed"
	CustomerRoleChangedName    = "customer.role_changed"
	CustomerProductAddedName   = "customer.product_added"
	CustomerProductRemovedName = "customer.product_removed"
	CustomerOrderAddedName     = "customer.order_added"
	CustomerOrderRemovedName   = "customer.order_removed"
	CustomerActivatedName      = "customer.activated"
	CustomerDeactivatedName    = "customer.deactivated"
	CustomerDeletedName        = "customer.deleted"
	CustomerRestoredName       = "customer.restored"
)

// CustomerEvent is the closed union of facts a customer stream can contain.
// The unexported marker keeps the union sealed to this package.
type CustomerEvent interface {
	Event
	CustomerID() CustomerID
	isCustomerEvent()
}

type customerEvent struct {
	EventMeta
	ID CustomerID `json:"customer_id"`
}

func newCustomerEvent(id CustomerID, by AppUserID) customerEvent {
	return customerEvent{EventMeta: NewEventMeta(by), ID: id}
}

func (e customerEvent) CustomerID() CustomerID { return e.ID }
func (customerEvent) isCustomerEvent()         {}

type CustomerCreated struct {
	customerEvent
	FirstName  string           `json:"first_name"`
	LastName   string           `json:"last_name,omitempty"`
	Phone      PhoneNumber      `json:"phone,omitempty"`
	CityID     string           `json:"city_id,omitempty"`
	Address    string           `json:"address,omitempty"`
	Role       Role             `json:"role"`
	ProductIDs IDSet[ProductID] `json:"product_ids,omitempty"`
	OrderIDs   IDSet[OrderID]   `json:"order_ids,omitempty"`
	CentreID   CentreID         `json:"centre_id,omitempty"`
}

func (*CustomerCreated) EventName() string { return CustomerCreatedName }

type CustomerNameChanged struct {
	customerEvent
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
}

func (*CustomerNameChanged) EventName() string { return CustomerNameChangedName }

type CustomerPhoneChanged struct {
	customerEvent
	Phone PhoneNumber `json:"phone"`
}

func (*CustomerPhoneChanged) EventName() string { return CustomerPhoneChangedName }

type CustomerAddressChanged struct {
	customerEvent
	CityID  string `json:"city_id,omitempty"`
	Address string `json:"address,omitempty"`
}

func (*CustomerAddressChanged) EventName() string { return CustomerAddressChangedName }

type CustomerRoleChanged struct {
	customerEvent
	Role Role `json:"role"`
}

func (*CustomerRoleChanged) EventName() string { return CustomerRoleChangedName }

type CustomerProductAdded struct {
	customerEvent
	ProductID ProductID `json:"product_id"`
}

func (*CustomerProductAdded) EventName() string { return CustomerProductAddedName }

type CustomerProductRemoved struct {
	customerEvent
	ProductID ProductID `json:"product_id"`
}

func (*CustomerProductRemoved) EventName() string { return CustomerProductRemovedName }

type CustomerOrderAdded struct {
	customerEvent
	OrderID OrderID `json:"order_id"`
}

func (*CustomerOrderAdded) EventName() string { return CustomerOrderAddedName }

type CustomerOrderRemoved struct {
	customerEvent
	OrderID OrderID `json:"order_id"`
}

func (*CustomerOrderRemoved) EventName() string { return CustomerOrderRemovedName }

type CustomerActivated struct{ customerEvent }

func (*CustomerActivated) EventName() string { return CustomerActivatedName }

type CustomerDeactivated struct{ customerEvent }

func (*CustomerDeactivated) EventName() string { return CustomerDeactivatedName }

type CustomerDeleted struct{ customerEvent }

func (*CustomerDeleted) EventName() string { return CustomerDeletedName }

type CustomerRestored struct{ customerEvent }

func (*CustomerRestored) EventName() string { return CustomerRestoredName }
