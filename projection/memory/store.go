// Package memory is an in-process read model used by tests and single-binary
// setups. Link writes are idempotent by construction.
package memory

import (
	"context"
	"sync"

	"github.com/servicecrm/backend/domain"
	"github.com/servicecrm/backend/projection"
)

type link [2]string

type Store struct {
	mu sync.RWMutex

	customers map[domain.CustomerID]domain.CustomerState
	products  map[domain.ProductID]domain.ProductState

	customerProduct map[link]struct{}
	customerOrder   map[link]struct{}
	productOrder    map[link]struct{}
}

func New() *Store {
	return &Store{
		customers:       make(map[domain.CustomerID]domain.CustomerState),
		products:        make(map[domain.ProductID]domain.ProductState),
		customerProduct: make(map[link]struct{}),
		customerOrder:   make(map[link]struct{}),
		productOrder:    make(map[link]struct{}),
	}
}

func (s *Store) GetCustomer(ctx context.Context, id domain.CustomerID) (*domain.CustomerState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.customers[id]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

func (s *Store) UpsertCustomer(ctx context.Context, state *domain.CustomerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[state.ID] = *state
	return nil
}

func (s *Store) GetProduct(ctx context.Context, id domain.ProductID) (*domain.ProductState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.products[id]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

func (s *Store) UpsertProduct(ctx context.Context, state *domain.ProductState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[state.ID] = *state
	return nil
}

func (s *Store) AddCustomerProduct(ctx context.Context, customerID domain.CustomerID, productID domain.ProductID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customerProduct[link{customerID.String(), productID.String()}] = struct{}{}
	return nil
}

func (s *Store) RemoveCustomerProduct(ctx context.Context, customerID domain.CustomerID, productID domain.ProductID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.customerProduct, link{customerID.String(), productID.String()})
	return nil
}

func (s *Store) AddCustomerOrder(ctx context.Context, customerID domain.CustomerID, orderID domain.OrderID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customerOrder[link{customerID.String(), orderID.String()}] = struct{}{}
	return nil
}

func (s *Store) RemoveCustomerOrder(ctx context.Context, customerID domain.CustomerID, orderID domain.OrderID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.customerOrder, link{customerID.String(), orderID.String()})
	return nil
}

func (s *Store) AddProductOrder(ctx context.Context, productID domain.ProductID, orderID domain.OrderID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.productOrder[link{productID.String(), orderID.String()}] = struct{}{}
	return nil
}

func (s *Store) RemoveProductOrder(ctx context.Context, productID domain.ProductID, orderID domain.OrderID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.productOrder, link{productID.String(), orderID.String()})
	return nil
}

// Read helpers for tests and the in-process query path.

// Customers returns copies of every customer row, in no particular order.
func (s *Store) Customers() []domain.CustomerState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.CustomerState, 0, len(s.customers))
	for _, state := range s.customers {
		out = append(out, state)
	}
	return out
}

// Products returns copies of every product row, in no particular order.
func (s *Store) Products() []domain.ProductState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ProductState, 0, len(s.products))
	for _, state := range s.products {
		out = append(out, state)
	}
	return out
}

func (s *Store) CustomerRow(id domain.CustomerID) (domain.CustomerState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.customers[id]
	return state, ok
}

func (s *Store) ProductRow(id domain.ProductID) (domain.ProductState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.products[id]
	return state, ok
}

func (s *Store) HasCustomerProduct(customerID domain.CustomerID, productID domain.ProductID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.customerProduct[link{customerID.String(), productID.String()}]
	return ok
}

// CustomerProductCount reports the number of link rows for one product.
func (s *Store) CustomerProductCount(productID domain.ProductID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for l := range s.customerProduct {
		if l[1] == productID.String() {
			count++
		}
	}
	return count
}

var _ projection.Store = (*Store)(nil)
