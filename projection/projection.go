// Package projection folds committed events into the denormalized read model.
// The fold runs inline, inside the same storage transaction as the append, so
// a read-model row is never older than its stream's latest committed event.
package projection

import (
	"context"

	"go.uber.org/zap"

	"github.com/servicecrm/backend/domain"
	"github.com/servicecrm/backend/eventstore"
)

// Store is the mutable surface of the read model: one row per aggregate plus
// the three link tables. Link writes must be idempotent in both directions:
// "already exists" and "already absent" count as success.
type Store interface {
	// GetCustomer returns (nil, nil) when the row does not exist yet.
	GetCustomer(ctx context.Context, id domain.CustomerID) (*domain.CustomerState, error)
	UpsertCustomer(ctx context.Context, state *domain.CustomerState) error

	GetProduct(ctx context.Context, id domain.ProductID) (*domain.ProductState, error)
	UpsertProduct(ctx context.Context, state *domain.ProductState) error

	AddCustomerProduct(ctx context.Context, customerID domain.CustomerID, productID domain.ProductID) error
	RemoveCustomerProduct(ctx context.Context, customerID domain.CustomerID, productID domain.ProductID) error
	AddCustomerOrder(ctx context.Context, customerID domain.CustomerID, orderID domain.OrderID) error
	RemoveCustomerOrder(ctx context.Context, customerID domain.CustomerID, orderID domain.OrderID) error
	AddProductOrder(ctx context.Context, productID domain.ProductID, orderID domain.OrderID) error
	RemoveProductOrder(ctx context.Context, productID domain.ProductID, orderID domain.OrderID) error
}

// Invalidator evicts cached detail reads for aggregates touched by a batch.
type Invalidator interface {
	Invalidate(ctx context.Context, kind eventstore.Kind, id string)
}

// Engine folds event batches. It is stateless between batches; all in-flight
// rows live in a cache scoped to one Fold call.
type Engine struct {
	logger      *zap.Logger
	invalidator Invalidator
}

func NewEngine(logger *zap.Logger, invalidator Invalidator) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger, invalidator: invalidator}
}

// Fold applies a committed batch to the read model. Batch order: product
// creations first, then customer creations, then everything else, because
// customer creations may reference product rows and non-creation events
// assume their parent row exists. An event the engine cannot decode halts the fold.
func (e *Engine) Fold(ctx context.Context, store Store, records []eventstore.Record) error {
	cache := newBatchCache(store)

	for _, rec := range orderBatch(records) {
		if err := e.foldOne(ctx, cache, store, rec); err != nil {
			e.logger.Error("projection fold halted",
				zap.String("stream_kind", string(rec.Kind)),
				zap.String("stream_id", rec.StreamID),
				zap.String("event", rec.Name),
				zap.Error(err))
			return err
		}
	}

	if err := cache.flush(ctx, store); err != nil {
		return err
	}

	if e.invalidator != nil {
		for _, touched := range touchedStreams(records) {
			e.invalidator.Invalidate(ctx, touched.Kind, touched.StreamID)
		}
	}
	return nil
}

func (e *Engine) foldOne(ctx context.Context, cache *batchCache, store Store, rec eventstore.Record) error {
	switch rec.Kind {
	case eventstore.KindCustomer:
		event, err := domain.DecodeCustomerEvent(rec.Name, rec.Payload)
		if err != nil {
			return err
		}
		return e.foldCustomer(ctx, cache, store, event)
	case eventstore.KindProduct:
		event, err := domain.DecodeProductEvent(rec.Name, rec.Payload)
		if err != nil {
			return err
		}
		return e.foldProduct(ctx, cache, store, event)
	default:
		return domain.WrapError(domain.ErrCodeInternal, "unknown stream kind "+string(rec.Kind), domain.ErrUnknownEvent)
	}
}

func (e *Engine) foldCustomer(ctx context.Context, cache *batchCache, store Store, event domain.CustomerEvent) error {
	var state *domain.CustomerState
	var err error
	if _, ok := event.(*domain.CustomerCreated); ok {
		// A refolded creation overwrites the row instead of stacking on it.
		state = cache.resetCustomer(event.CustomerID())
	} else {
		state, err = cache.customer(ctx, event.CustomerID())
		if err != nil {
			return err
		}
		if state == nil {
			return domain.WrapError(domain.ErrCodeInternal, "customer row missing for "+event.CustomerID().String(), domain.ErrUnknownEvent)
		}
	}

	if err := state.Apply(event); err != nil {
		return err
	}
	cache.markCustomer(event.CustomerID())

	switch evt := event.(type) {
	case *domain.CustomerCreated:
		for _, pid := range evt.ProductIDs.Values() {
			if err := store.AddCustomerProduct(ctx, evt.CustomerID(), pid); err != nil {
				return err
			}
		}
		for _, oid := range evt.OrderIDs.Values() {
			if err := store.AddCustomerOrder(ctx, evt.CustomerID(), oid); err != nil {
				return err
			}
		}
	case *domain.CustomerProductAdded:
		return store.AddCustomerProduct(ctx, evt.CustomerID(), evt.ProductID)
	case *domain.CustomerProductRemoved:
		return store.RemoveCustomerProduct(ctx, evt.CustomerID(), evt.ProductID)
	case *domain.CustomerOrderAdded:
		return store.AddCustomerOrder(ctx, evt.CustomerID(), evt.OrderID)
	case *domain.CustomerOrderRemoved:
		return store.RemoveCustomerOrder(ctx, evt.CustomerID(), evt.OrderID)
	}
	return nil
}

func (e *Engine) foldProduct(ctx context.Context, cache *batchCache, store Store, event domain.ProductEvent) error {
	var state *domain.ProductState
	var err error
	if _, ok := event.(*domain.ProductCreated); ok {
		state = cache.resetProduct(event.ProductID())
	} else {
		state, err = cache.product(ctx, event.ProductID())
		if err != nil {
			return err
		}
		if state == nil {
			return domain.WrapError(domain.ErrCodeInternal, "product row missing for "+event.ProductID().String(), domain.ErrUnknownEvent)
		}
	}

	if err := state.Apply(event); err != nil {
		return err
	}
	cache.markProduct(event.ProductID())

	switch evt := event.(type) {
	case *domain.ProductCreated:
		if !evt.OwnerID.IsZero() {
			if err := store.AddCustomerProduct(ctx, evt.OwnerID, evt.ProductID()); err != nil {
				return err
			}
		}
		if !evt.DealerID.IsZero() {
			if err := store.AddCustomerProduct(ctx, evt.DealerID, evt.ProductID()); err != nil {
				return err
			}
		}
		for _, oid := range evt.OrderIDs.Values() {
			if err := store.AddProductOrder(ctx, evt.ProductID(), oid); err != nil {
				return err
			}
		}
	case *domain.ProductOwnerChanged:
		// In a role swap the former owner still holds the dealer role
		// and keeps its link.
		if !evt.Previous.IsZero() && state.DealerID != evt.Previous {
			if err := store.RemoveCustomerProduct(ctx, evt.Previous, evt.ProductID()); err != nil {
				return err
			}
		}
		if !evt.Next.IsZero() {
			return store.AddCustomerProduct(ctx, evt.Next, evt.ProductID())
		}
	case *domain.ProductDealerChanged:
		if !evt.Previous.IsZero() && state.OwnerID != evt.Previous {
			if err := store.RemoveCustomerProduct(ctx, evt.Previous, evt.ProductID()); err != nil {
				return err
			}
		}
		if !evt.Next.IsZero() {
			return store.AddCustomerProduct(ctx, evt.Next, evt.ProductID())
		}
	case *domain.ProductOrderAdded:
		return store.AddProductOrder(ctx, evt.ProductID(), evt.OrderID)
	case *domain.ProductOrderRemoved:
		return store.RemoveProductOrder(ctx, evt.ProductID(), evt.OrderID)
	}
	return nil
}

// orderBatch partitions a batch into the fold order without disturbing the
// relative order inside each partition.
func orderBatch(records []eventstore.Record) []eventstore.Record {
	ordered := make([]eventstore.Record, 0, len(records))
	for _, rec := range records {
		if rec.Kind == eventstore.KindProduct && rec.Name == domain.ProductCreatedName {
			ordered = append(ordered, rec)
		}
	}
	for _, rec := range records {
		if rec.Kind == eventstore.KindCustomer && rec.Name == domain.CustomerCreatedName {
			ordered = append(ordered, rec)
		}
	}
	for _, rec := range records {
		if rec.Name == domain.ProductCreatedName || rec.Name == domain.CustomerCreatedName {
			continue
		}
		ordered = append(ordered, rec)
	}
	return ordered
}

func touchedStreams(records []eventstore.Record) []eventstore.Head {
	seen := make(map[eventstore.Head]struct{}, len(records))
	var out []eventstore.Head
	for _, rec := range records {
		key := eventstore.Head{Kind: rec.Kind, StreamID: rec.StreamID}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}
