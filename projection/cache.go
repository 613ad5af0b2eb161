package projection

import (
	"context"

	"github.com/servicecrm/backend/domain"
)

// batchCache is the arena for one fold: rows touched by the batch are fetched
// once, mutated in memory, and flushed at batch end. It is discarded with the
// Fold call and never shared across batches.
type batchCache struct {
	store Store

	customers map[domain.CustomerID]*domain.CustomerState
	products  map[domain.ProductID]*domain.ProductState

	dirtyCustomers []domain.CustomerID
	dirtyProducts  []domain.ProductID
	customerDirty  map[domain.CustomerID]bool
	productDirty   map[domain.ProductID]bool
}

func newBatchCache(store Store) *batchCache {
	return &batchCache{
		store:         store,
		customers:     make(map[domain.CustomerID]*domain.CustomerState),
		products:      make(map[domain.ProductID]*domain.ProductState),
		customerDirty: make(map[domain.CustomerID]bool),
		productDirty:  make(map[domain.ProductID]bool),
	}
}

func (c *batchCache) customer(ctx context.Context, id domain.CustomerID) (*domain.CustomerState, error) {
	if state, ok := c.customers[id]; ok {
		return state, nil
	}
	state, err := c.store.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	if state != nil {
		c.customers[id] = state
	}
	return state, nil
}

func (c *batchCache) resetCustomer(id domain.CustomerID) *domain.CustomerState {
	state := &domain.CustomerState{}
	c.customers[id] = state
	return state
}

func (c *batchCache) markCustomer(id domain.CustomerID) {
	if !c.customerDirty[id] {
		c.customerDirty[id] = true
		c.dirtyCustomers = append(c.dirtyCustomers, id)
	}
}

func (c *batchCache) product(ctx context.Context, id domain.ProductID) (*domain.ProductState, error) {
	if state, ok := c.products[id]; ok {
		return state, nil
	}
	state, err := c.store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if state != nil {
		c.products[id] = state
	}
	return state, nil
}

func (c *batchCache) resetProduct(id domain.ProductID) *domain.ProductState {
	state := &domain.ProductState{}
	c.products[id] = state
	return state
}

func (c *batchCache) markProduct(id domain.ProductID) {
	if !c.productDirty[id] {
		c.productDirty[id] = true
		c.dirtyProducts = append(c.dirtyProducts, id)
	}
}

func (c *batchCache) flush(ctx context.Context, store Store) error {
	for _, id := range c.dirtyProducts {
		if err := store.UpsertProduct(ctx, c.products[id]); err != nil {
			return err
		}
	}
	for _, id := range c.dirtyCustomers {
		if err := store.UpsertCustomer(ctx, c.customers[id]); err != nil {
			return err
		}
	}
	return nil
}
