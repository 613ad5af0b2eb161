package domain

import (
	"fmt"
	"time"
)

// ProductState is the replay-derived state of a product aggregate.
type ProductState struct {
	ID                 ProductID      `json:"id"`
	Brand              string         `json:"brand"`
	Model              string         `json:"model"`
	SerialID           string         `json:"serial_id,omitempty"`
	OwnerID            CustomerID     `json:"owner_id,omitempty"`
	DealerID           CustomerID     `json:"dealer_id,omitempty"`
	OrderIDs           IDSet[OrderID] `json:"order_ids"`
	PurchaseDate       *time.Time     `json:"purchase_date,omitempty"`
	WarrantyUntil      *time.Time     `json:"warranty_until,omitempty"`
	Unrepairable       bool           `json:"unrepairable"`
	UnrepairableReason string         `json:"unrepairable_reason,omitempty"`
	UnrepairableAt     *time.Time     `json:"unrepairable_at,omitempty"`
	CentreID           CentreID       `json:"centre_id,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	CreatedBy          AppUserID      `json:"created_by,omitempty"`
	LastModifiedAt     time.Time      `json:"last_modified_at"`
	LastModifiedBy     AppUserID      `json:"last_modified_by,omitempty"`
	Version            int64          `json:"version"`
	IsActive           bool           `json:"is_active"`
	IsDeleted          bool           `json:"is_deleted"`
}

func (s *ProductState) ensureSets() {
	if s.OrderIDs == nil {
		s.OrderIDs = NewIDSet[OrderID]()
	}
}

// Apply transitions the state by one event.
func (s *ProductState) Apply(event ProductEvent) error {
	s.ensureSets()

	switch e := event.(type) {
	case *ProductCreated:
		s.ID = e.ID
		s.Brand = e.Brand
		s.Model = e.Model
		s.SerialID = e.SerialID
		s.OwnerID = e.OwnerID
		s.DealerID = e.DealerID
		s.OrderIDs = e.OrderIDs.Clone()
		s.PurchaseDate = e.PurchaseDate
		s.WarrantyUntil = e.WarrantyUntil
		s.CentreID = e.CentreID
		s.CreatedAt = e.OccurredAt()
		s.CreatedBy = e.Actor()
		s.IsActive = true
		s.IsDeleted = false
	case *ProductDetailsChanged:
		s.Brand = e.Brand
		s.Model = e.Model
		s.SerialID = e.SerialID
	case *ProductOwnerChanged:
		s.OwnerID = e.Next
	case *ProductDealerChanged:
		s.DealerID = e.Next
	case *ProductOrderAdded:
		s.OrderIDs.Add(e.OrderID)
	case *ProductOrderRemoved:
		s.OrderIDs.Remove(e.OrderID)
	case *ProductPurchaseChanged:
		s.PurchaseDate = e.PurchaseDate
		s.WarrantyUntil = e.WarrantyUntil
	case *ProductMarkedUnrepairable:
		at := e.OccurredAt()
		s.Unrepairable = true
		s.UnrepairableReason = e.Reason
		s.UnrepairableAt = &at
	case *ProductActivated:
		s.IsActive = true
	case *ProductDeactivated:
		s.IsActive = false
	case *ProductDeleted:
		s.IsDeleted = true
		s.IsActive = false
	case *ProductRestored:
		s.IsDeleted = false
		s.IsActive = true
	default:
		return WrapError(ErrCodeInternal, fmt.Sprintf("product state cannot apply %T", event), ErrUnknownEvent)
	}

	s.Version++
	s.LastModifiedAt = event.OccurredAt()
	s.LastModifiedBy = event.Actor()
	return nil
}

// Product is the event-sourced product aggregate.
type Product struct {
	ProductState
	pending   []ProductEvent
	observers []func(ProductEvent) error
}

// ProductParams are the creation attributes for a new product.
type ProductParams struct {
	ID            ProductID
	Brand         string
	Model         string
	SerialID      string
	OwnerID       CustomerID
	DealerID      CustomerID
	OrderIDs      []OrderID
	PurchaseDate  *time.Time
	WarrantyUntil *time.Time
	CentreID      CentreID
}

// NewProduct births an aggregate with its creation event pending.
func NewProduct(by AppUserID, p ProductParams) (*Product, error) {
	if p.Brand == "" || p.Model == "" {
		return nil, WrapError(ErrCodeInvalid, "product brand and model are required", ErrInvalidCommand)
	}
	if !p.OwnerID.IsZero() && p.OwnerID == p.DealerID {
		return nil, WrapError(ErrCodeInvalid, "owner and dealer cannot be the same customer", ErrInvalidCommand)
	}
	if p.ID.IsZero() {
		p.ID = NewProductID()
	}

	prod := &Product{}
	err := prod.raise(&ProductCreated{
		productEvent:  newProductEvent(p.ID, by),
		Brand:         p.Brand,
		Model:         p.Model,
		SerialID:      p.SerialID,
		OwnerID:       p.OwnerID,
		DealerID:      p.DealerID,
		OrderIDs:      NewIDSet(p.OrderIDs...),
		PurchaseDate:  p.PurchaseDate,
		WarrantyUntil: p.WarrantyUntil,
		CentreID:      p.CentreID,
	})
	if err != nil {
		return nil, err
	}
	return prod, nil
}

// ReconstructProduct replays a full stream.
func ReconstructProduct(created *ProductCreated, rest []ProductEvent) (*Product, error) {
	if created == nil {
		return nil, WrapError(ErrCodeInternal, "product stream has no creation event", ErrUnknownEvent)
	}
	p := &Product{}
	if err := p.Apply(created); err != nil {
		return nil, err
	}
	for _, event := range rest {
		if err := p.Apply(event); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// RehydrateProduct resumes from a snapshot state and replays the tail.
func RehydrateProduct(state ProductState, rest []ProductEvent) (*Product, error) {
	p := &Product{ProductState: state}
	p.ensureSets()
	for _, event := range rest {
		if err := p.Apply(event); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Observe registers a callback invoked for every event the aggregate emits.
func (p *Product) Observe(fn func(ProductEvent) error) func() {
	p.observers = append(p.observers, fn)
	idx := len(p.observers) - 1
	return func() { p.observers[idx] = nil }
}

// Pending returns the events raised since the last clear, in emission order.
func (p *Product) Pending() []ProductEvent { return p.pending }

func (p *Product) ClearPending() { p.pending = nil }

// State returns a defensive copy of the current state.
func (p *Product) State() ProductState {
	s := p.ProductState
	s.OrderIDs = p.OrderIDs.Clone()
	return s
}

func (p *Product) raise(event ProductEvent) error {
	if err := p.Apply(event); err != nil {
		return err
	}
	p.pending = append(p.pending, event)
	for _, fn := range p.observers {
		if fn == nil {
			continue
		}
		if err := fn(event); err != nil {
			return err
		}
	}
	return nil
}

func (p *Product) ChangeDetails(by AppUserID, brand, model, serialID string) error {
	if brand == "" || model == "" {
		return WrapError(ErrCodeInvalid, "product brand and model are required", ErrInvalidCommand)
	}
	if p.Brand == brand && p.Model == model && p.SerialID == serialID {
		return nil
	}
	return p.raise(&ProductDetailsChanged{productEvent: newProductEvent(p.ID, by), Brand: brand, Model: model, SerialID: serialID})
}

// UpdateOwner reassigns the owning customer. Assigning the current dealer is
// a role swap: the primary change and the auto-generated dealer clear are both
// tagged IsChangingRole.
func (p *Product) UpdateOwner(by AppUserID, next CustomerID) error {
	if p.OwnerID == next {
		return nil
	}
	swap := !next.IsZero() && next == p.DealerID
	err := p.raise(&ProductOwnerChanged{
		productEvent:   newProductEvent(p.ID, by),
		Previous:       p.OwnerID,
		Next:           next,
		IsChangingRole: swap,
	})
	if err != nil {
		return err
	}
	if swap {
		return p.raise(&ProductDealerChanged{
			productEvent:   newProductEvent(p.ID, by),
			Previous:       p.DealerID,
			Next:           "",
			IsChangingRole: true,
		})
	}
	return nil
}

// UpdateDealer mirrors UpdateOwner for the dealer role.
func (p *Product) UpdateDealer(by AppUserID, next CustomerID) error {
	if p.DealerID == next {
		return nil
	}
	swap := !next.IsZero() && next == p.OwnerID
	err := p.raise(&ProductDealerChanged{
		productEvent:   newProductEvent(p.ID, by),
		Previous:       p.DealerID,
		Next:           next,
		IsChangingRole: swap,
	})
	if err != nil {
		return err
	}
	if swap {
		return p.raise(&ProductOwnerChanged{
			productEvent:   newProductEvent(p.ID, by),
			Previous:       p.OwnerID,
			Next:           "",
			IsChangingRole: true,
		})
	}
	return nil
}

func (p *Product) AddOrder(by AppUserID, id OrderID) error {
	if id.IsZero() {
		return WrapError(ErrCodeInvalid, "order id is required", ErrInvalidCommand)
	}
	if p.OrderIDs.Has(id) {
		return nil
	}
	return p.raise(&ProductOrderAdded{productEvent: newProductEvent(p.ID, by), OrderID: id})
}

func (p *Product) RemoveOrder(by AppUserID, id OrderID) error {
	if !p.OrderIDs.Has(id) {
		return nil
	}
	return p.raise(&ProductOrderRemoved{productEvent: newProductEvent(p.ID, by), OrderID: id})
}

func (p *Product) ChangePurchase(by AppUserID, purchaseDate, warrantyUntil *time.Time) error {
	if equalTimePtr(p.PurchaseDate, purchaseDate) && equalTimePtr(p.WarrantyUntil, warrantyUntil) {
		return nil
	}
	return p.raise(&ProductPurchaseChanged{productEvent: newProductEvent(p.ID, by), PurchaseDate: purchaseDate, WarrantyUntil: warrantyUntil})
}

func (p *Product) MarkUnrepairable(by AppUserID, reason string) error {
	if reason == "" {
		return WrapError(ErrCodeInvalid, "unrepairable reason is required", ErrInvalidCommand)
	}
	if p.Unrepairable && p.UnrepairableReason == reason {
		return nil
	}
	return p.raise(&ProductMarkedUnrepairable{productEvent: newProductEvent(p.ID, by), Reason: reason})
}

func (p *Product) Activate(by AppUserID) error {
	if p.IsDeleted {
		return WrapError(ErrCodeInvalid, "cannot activate a deleted product", ErrInvalidCommand)
	}
	if p.IsActive {
		return nil
	}
	return p.raise(&ProductActivated{newProductEvent(p.ID, by)})
}

func (p *Product) Deactivate(by AppUserID) error {
	if !p.IsActive {
		return nil
	}
	return p.raise(&ProductDeactivated{newProductEvent(p.ID, by)})
}

func (p *Product) Delete(by AppUserID) error {
	if p.IsDeleted {
		return nil
	}
	return p.raise(&ProductDeleted{newProductEvent(p.ID, by)})
}

func (p *Product) Restore(by AppUserID) error {
	if !p.IsDeleted {
		return nil
	}
	return p.raise(&ProductRestored{newProductEvent(p.ID, by)})
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
