package domain

import "time"

// Product event names as persisted in the event log.
const (
	ProductCreatedName         = "product.created"
	ProductDetailsChangedName  = "product.details_changed"
	ProductOwnerChangedName    = "product.owner_changed"
	ProductDealerChangedName   = "product.dealer_changed"
	ProductOrderAddedName      = "product.order_added"
	ProductOrderRemovedName    = "product.order_removed"
	ProductPurchaseChangedName = "product.purchase_changed"
	ProductUnrepairableName    = "product.marked_unrepairable"
	ProductActivatedName       = "product.activated"
	ProductDeactivatedName     = "product.deactivated"
	ProductDeletedName         = "product.deleted"
	ProductRestoredName        = "product.restored"
)

// ProductEvent is the closed union of facts a product stream can contain.
type ProductEvent interface {
	Event
	ProductID() ProductID
	isProductEvent()
}

type productEvent struct {
	EventMeta
	ID ProductID `json:"product_id"`
}

func newProductEvent(id ProductID, by AppUserID) productEvent {
	return productEvent{EventMeta: NewEventMeta(by), ID: id}
}

func (e productEvent) ProductID() ProductID { return e.ID }
func (productEvent) isProductEvent()        {}

type ProductCreated struct {
	productEvent
	Brand         string         `json:"brand"`
	Model         string         `json:"model"`
	SerialID      string         `json:"serial_id,omitempty"`
	OwnerID       CustomerID     `json:"owner_id,omitempty"`
	DealerID      CustomerID     `json:"dealer_id,omitempty"`
	OrderIDs      IDSet[OrderID] `json:"order_ids,omitempty"`
	PurchaseDate  *time.Time     `json:"purchase_date,omitempty"`
	WarrantyUntil *time.Time     `json:"warranty_until,omitempty"`
	CentreID      CentreID       `json:"centre_id,omitempty"`
}

func (*ProductCreated) EventName() string { return ProductCreatedName }

type ProductDetailsChanged struct {
	productEvent
	Brand    string `json:"brand"`
	Model    string `json:"model"`
	SerialID string `json:"serial_id,omitempty"`
}

func (*ProductDetailsChanged) EventName() string { return ProductDetailsChangedName }

// ProductOwnerChanged reassigns (or clears) the owning customer.
// IsChangingRole marks the event as part of a role swap; the reactive layer
// never propagates flagged events, which is what terminates the
// owner ↔ product-set ↔ dealer cycle.
type ProductOwnerChanged struct {
	productEvent
	Previous       CustomerID `json:"previous,omitempty"`
	Next           CustomerID `json:"next,omitempty"`
	IsChangingRole bool       `json:"is_changing_role,omitempty"`
}

func (*ProductOwnerChanged) EventName() string { return ProductOwnerChangedName }

type ProductDealerChanged struct {
	productEvent
	Previous       CustomerID `json:"previous,omitempty"`
	Next           CustomerID `json:"next,omitempty"`
	IsChangingRole bool       `json:"is_changing_role,omitempty"`
}

func (*ProductDealerChanged) EventName() string { return ProductDealerChangedName }

type ProductOrderAdded struct {
	productEvent
	OrderID OrderID `json:"order_id"`
}

func (*ProductOrderAdded) EventName() string { return ProductOrderAddedName }

type ProductOrderRemoved struct {
	productEvent
	OrderID OrderID `json:"order_id"`
}

func (*ProductOrderRemoved) EventName() string { return ProductOrderRemovedName }

type ProductPurchaseChanged struct {
	productEvent
	PurchaseDate  *time.Time `json:"purchase_date,omitempty"`
	WarrantyUntil *time.Time `json:"warranty_until,omitempty"`
}

func (*ProductPurchaseChanged) EventName() string { return ProductPurchaseChangedName }

type ProductMarkedUnrepairable struct {
	productEvent
	Reason string `json:"reason"`
}

func (*ProductMarkedUnrepairable) EventName() string { return ProductUnrepairableName }

type ProductActivated struct{ productEvent }

func (*ProductActivated) EventName() string { return ProductActivatedName }

type ProductDeactivated struct{ productEvent }

func (*ProductDeactivated) EventName() string { return ProductDeactivatedName }

type ProductDeleted struct{ productEvent }

func (*ProductDeleted) EventName() string { return ProductDeletedName }

type ProductRestored struct{ productEvent }

func (*ProductRestored) EventName() string { return ProductRestoredName }
