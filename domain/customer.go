package domain

import (
	"fmt"
	"time"
)

// Role of a customer relative to the products attached to it.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleDealer Role = "dealer"
)

func (r Role) Valid() bool { return r == RoleOwner || r == RoleDealer }

// CustomerState is the replay-derived state of a customer aggregate. The same
// transition function drives both in-memory reconstruction and the projection
// fold, so the read model can never apply an event differently.
type CustomerState struct {
	ID             CustomerID       `json:"id"`
	FirstName      string           `json:"first_name"`
	LastName       string           `json:"last_name,omitempty"`
	Phone          PhoneNumber      `json:"phone,omitempty"`
	CityID         string           `json:"city_id,omitempty"`
	Address        string           `json:"address,omitempty"`
	Role           Role             `json:"role"`
	ProductIDs     IDSet[ProductID] `json:"product_ids"`
	OrderIDs       IDSet[OrderID]   `json:"order_ids"`
	CentreID       CentreID         `json:"centre_id,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	CreatedBy      AppUserID        `json:"created_by,omitempty"`
	LastModifiedAt time.Time        `json:"last_modified_at"`
	LastModifiedBy AppUserID        `json:"last_modified_by,omitempty"`
	Version        int64            `json:"version"`
	IsActive       bool             `json:"is_active"`
	IsDeleted      bool             `json:"is_deleted"`
}

func (s *CustomerState) ensureSets() {
	if s.ProductIDs == nil {
		s.ProductIDs = NewIDSet[ProductID]()
	}
	if s.OrderIDs == nil {
		s.OrderIDs = NewIDSet[OrderID]()
	}
}

// Apply transitions the state by one event. Every member of the event union
// must have a case here; anything else is a replay corruption.
func (s *CustomerState) Apply(event CustomerEvent) error {
	s.ensureSets()

	switch e := event.(type) {
	case *CustomerCreated:
		s.ID = e.ID
		s.FirstName = e.FirstName
		s.LastName = e.LastName
		s.Phone = e.Phone
		s.CityID = e.CityID
		s.Address = e.Address
		s.Role = e.Role
		s.ProductIDs = e.ProductIDs.Clone()
		s.OrderIDs = e.OrderIDs.Clone()
		s.CentreID = e.CentreID
		s.CreatedAt = e.OccurredAt()
		s.CreatedBy = e.Actor()
		s.IsActive = true
		s.IsDeleted = false
	case *CustomerNameChanged:
		s.FirstName = e.FirstName
		s.LastName = e.LastName
	case *CustomerPhoneChanged:
		s.Phone = e.Phone
	case *CustomerAddressChanged:
		s.CityID = e.CityID
		s.Address = e.Address
	case *CustomerRoleChanged:
		s.Role = e.Role
	case *CustomerProductAdded:
		s.ProductIDs.Add(e.ProductID)
	case *CustomerProductRemoved:
		s.ProductIDs.Remove(e.ProductID)
	case *CustomerOrderAdded:
		s.OrderIDs.Add(e.OrderID)
	case *CustomerOrderRemoved:
		s.OrderIDs.Remove(e.OrderID)
	case *CustomerActivated:
		s.IsActive = true
	case *CustomerDeactivated:
		s.IsActive = false
	case *CustomerDeleted:
		s.IsDeleted = true
		s.IsActive = false
	case *CustomerRestored:
		s.IsDeleted = false
		s.IsActive = true
	default:
		return WrapError(ErrCodeInternal, fmt.Sprintf("customer state cannot apply %T", event), ErrUnknownEvent)
	}

	s.Version++
	s.LastModifiedAt = event.OccurredAt()
	s.LastModifiedBy = event.Actor()
	return nil
}

// Customer is the event-sourced customer aggregate. Commands are silent
// no-ops when the requested change matches current state; effective commands
// apply exactly one event (Version +1 each) and notify observers.
type Customer struct {
	CustomerState
	pending   []CustomerEvent
	observers []func(CustomerEvent) error
}

// CustomerParams are the creation attributes for a new customer.
type CustomerParams struct {
	ID         CustomerID
	FirstName  string
	LastName   string
	Phone      PhoneNumber
	CityID     string
	Address    string
	Role       Role
	ProductIDs []ProductID
	OrderIDs   []OrderID
	CentreID   CentreID
}

// NewCustomer births an aggregate with its creation event pending.
func NewCustomer(by AppUserID, p CustomerParams) (*Customer, error) {
	if p.FirstName == "" {
		return nil, WrapError(ErrCodeInvalid, "customer first name is required", ErrInvalidCommand)
	}
	if !p.Role.Valid() {
		return nil, WrapError(ErrCodeInvalid, fmt.Sprintf("invalid customer role %q", p.Role), ErrInvalidCommand)
	}
	if p.ID.IsZero() {
		p.ID = NewCustomerID()
	}

	c := &Customer{}
	err := c.raise(&CustomerCreated{
		customerEvent: newCustomerEvent(p.ID, by),
		FirstName:     p.FirstName,
		LastName:      p.LastName,
		Phone:         p.Phone,
		CityID:        p.CityID,
		Address:       p.Address,
		Role:          p.Role,
		ProductIDs:    NewIDSet(p.ProductIDs...),
		OrderIDs:      NewIDSet(p.OrderIDs...),
		CentreID:      p.CentreID,
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ReconstructCustomer replays a full stream: the creation event followed by
// every later event in order. Replay is deterministic and total.
func ReconstructCustomer(created *CustomerCreated, rest []CustomerEvent) (*Customer, error) {
	if created == nil {
		return nil, WrapError(ErrCodeInternal, "customer stream has no creation event", ErrUnknownEvent)
	}
	c := &Customer{}
	if err := c.Apply(created); err != nil {
		return nil, err
	}
	for _, event := range rest {
		if err := c.Apply(event); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// RehydrateCustomer resumes from a snapshot state and replays the tail.
func RehydrateCustomer(state CustomerState, rest []CustomerEvent) (*Customer, error) {
	c := &Customer{CustomerState: state}
	c.ensureSets()
	for _, event := range rest {
		if err := c.Apply(event); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Observe registers a callback invoked for every event the aggregate emits.
// The returned function unsubscribes.
func (c *Customer) Observe(fn func(CustomerEvent) error) func() {
	c.observers = append(c.observers, fn)
	idx := len(c.observers) - 1
	return func() { c.observers[idx] = nil }
}

// Pending returns the events raised since the last clear, in emission order.
func (c *Customer) Pending() []CustomerEvent { return c.pending }

func (c *Customer) ClearPending() { c.pending = nil }

// State returns a defensive copy of the current state.
func (c *Customer) State() CustomerState {
	s := c.CustomerState
	s.ProductIDs = c.ProductIDs.Clone()
	s.OrderIDs = c.OrderIDs.Clone()
	return s
}

func (c *Customer) raise(event CustomerEvent) error {
	if err := c.Apply(event); err != nil {
		return err
	}
	c.pending = append(c.pending, event)
	for _, fn := range c.observers {
		if fn == nil {
			continue
		}
		if err := fn(event); err != nil {
			return err
		}
	}
	return nil
}

func (c *Customer) ChangeName(by AppUserID, first, last string) error {
	if first == "" {
		return WrapError(ErrCodeInvalid, "customer first name is required", ErrInvalidCommand)
	}
	if c.FirstName == first && c.LastName == last {
		return nil
	}
	return c.raise(&CustomerNameChanged{customerEvent: newCustomerEvent(c.ID, by), FirstName: first, LastName: last})
}

func (c *Customer) ChangePhone(by AppUserID, phone PhoneNumber) error {
	if c.Phone == phone {
		return nil
	}
	return c.raise(&CustomerPhoneChanged{customerEvent: newCustomerEvent(c.ID, by), Phone: phone})
}

func (c *Customer) ChangeAddress(by AppUserID, cityID, address string) error {
	if c.CityID == cityID && c.Address == address {
		return nil
	}
	return c.raise(&CustomerAddressChanged{customerEvent: newCustomerEvent(c.ID, by), CityID: cityID, Address: address})
}

func (c *Customer) ChangeRole(by AppUserID, role Role) error {
	if !role.Valid() {
		return WrapError(ErrCodeInvalid, fmt.Sprintf("invalid customer role %q", role), ErrInvalidCommand)
	}
	if c.Role == role {
		return nil
	}
	return c.raise(&CustomerRoleChanged{customerEvent: newCustomerEvent(c.ID, by), Role: role})
}

func (c *Customer) AddProduct(by AppUserID, id ProductID) error {
	if id.IsZero() {
		return WrapError(ErrCodeInvalid, "product id is required", ErrInvalidCommand)
	}
	if c.ProductIDs.Has(id) {
		return nil
	}
	return c.raise(&CustomerProductAdded{customerEvent: newCustomerEvent(c.ID, by), ProductID: id})
}

func (c *Customer) RemoveProduct(by AppUserID, id ProductID) error {
	if !c.ProductIDs.Has(id) {
		return nil
	}
	return c.raise(&CustomerProductRemoved{customerEvent: newCustomerEvent(c.ID, by), ProductID: id})
}

func (c *Customer) AddOrder(by AppUserID, id OrderID) error {
	if id.IsZero() {
		return WrapError(ErrCodeInvalid, "order id is required", ErrInvalidCommand)
	}
	if c.OrderIDs.Has(id) {
		return nil
	}
	return c.raise(&CustomerOrderAdded{customerEvent: newCustomerEvent(c.ID, by), OrderID: id})
}

func (c *Customer) RemoveOrder(by AppUserID, id OrderID) error {
	if !c.OrderIDs.Has(id) {
		return nil
	}
	return c.raise(&CustomerOrderRemoved{customerEvent: newCustomerEvent(c.ID, by), OrderID: id})
}

func (c *Customer) Activate(by AppUserID) error {
	if c.IsDeleted {
		return WrapError(ErrCodeInvalid, "cannot activate a deleted customer", ErrInvalidCommand)
	}
	if c.IsActive {
		return nil
	}
	return c.raise(&CustomerActivated{newCustomerEvent(c.ID, by)})
}

func (c *Customer) Deactivate(by AppUserID) error {
	if !c.IsActive {
		return nil
	}
	return c.raise(&CustomerDeactivated{newCustomerEvent(c.ID, by)})
}

func (c *Customer) Delete(by AppUserID) error {
	if c.IsDeleted {
		return nil
	}
	return c.raise(&CustomerDeleted{newCustomerEvent(c.ID, by)})
}

func (c *Customer) Restore(by AppUserID) error {
	if !c.IsDeleted {
		return nil
	}
	return c.raise(&CustomerRestored{newCustomerEvent(c.ID, by)})
}
