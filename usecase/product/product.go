// Package product holds the command and query handlers for the product
// aggregate.
package product

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/servicecrm/backend/domain"
	"github.com/servicecrm/backend/eventstore"
	"github.com/servicecrm/backend/eventstore/snapshot"
	"github.com/servicecrm/backend/pkg/pagination"
	"github.com/servicecrm/backend/repository"
	"github.com/servicecrm/backend/usecase"
)

type UseCase struct {
	store     eventstore.Store
	snapshots snapshot.Store
	reader    repository.ProductReader
	logger    *zap.Logger
}

func New(store eventstore.Store, snapshots snapshot.Store, reader repository.ProductReader, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		store:     store,
		snapshots: snapshots,
		reader:    reader,
		logger:    logger,
	}
}

// UpdateParams carries the mutable detail fields. Nil means "leave as is".
type UpdateParams struct {
	Brand         *string
	Model         *string
	SerialID      *string
	PurchaseDate  *time.Time
	WarrantyUntil *time.Time
}

// Create births a product. A declared owner or dealer are linked reactively:
// the referenced customers gain the product in their ProductIDs within the
// same commit, and a dangling customer id fails the whole creation.
func (uc *UseCase) Create(ctx context.Context, by domain.AppUserID, params domain.ProductParams) (*domain.ProductState, error) {
	session := usecase.NewSession(uc.store, uc.snapshots, uc.logger)
	linker := usecase.NewLinker(session, uc.logger)

	p, err := domain.NewProduct(by, params)
	if err != nil {
		return nil, err
	}
	if err := linker.TrackNewProduct(ctx, p); err != nil {
		return nil, err
	}
	if err := session.Commit(ctx); err != nil {
		return nil, err
	}

	state := p.State()
	uc.logger.Info("product created",
		zap.String("product_id", state.ID.String()),
		zap.String("brand", state.Brand), zap.String("model", state.Model))
	return &state, nil
}

func (uc *UseCase) Update(ctx context.Context, by domain.AppUserID, id domain.ProductID, expected int64, params UpdateParams) (*domain.ProductState, error) {
	return uc.mutate(ctx, id, expected, func(p *domain.Product) error {
		if params.Brand != nil || params.Model != nil || params.SerialID != nil {
			brand, model, serialID := p.Brand, p.Model, p.SerialID
			if params.Brand != nil {
				brand = *params.Brand
			}
			if params.Model != nil {
				model = *params.Model
			}
			if params.SerialID != nil {
				serialID = *params.SerialID
			}
			if err := p.ChangeDetails(by, brand, model, serialID); err != nil {
				return err
			}
		}
		if params.PurchaseDate != nil || params.WarrantyUntil != nil {
			purchase, warranty := p.PurchaseDate, p.WarrantyUntil
			if params.PurchaseDate != nil {
				purchase = params.PurchaseDate
			}
			if params.WarrantyUntil != nil {
				warranty = params.WarrantyUntil
			}
			if err := p.ChangePurchase(by, purchase, warranty); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateOwner reassigns ownership. Reassigning to the current dealer swaps
// the customer's role on the product instead of duplicating it.
func (uc *UseCase) UpdateOwner(ctx context.Context, by domain.AppUserID, id domain.ProductID, expected int64, next domain.CustomerID) (*domain.ProductState, error) {
	return uc.mutate(ctx, id, expected, func(p *domain.Product) error {
		return p.UpdateOwner(by, next)
	})
}

func (uc *UseCase) UpdateDealer(ctx context.Context, by domain.AppUserID, id domain.ProductID, expected int64, next domain.CustomerID) (*domain.ProductState, error) {
	return uc.mutate(ctx, id, expected, func(p *domain.Product) error {
		return p.UpdateDealer(by, next)
	})
}

func (uc *UseCase) AddOrder(ctx context.Context, by domain.AppUserID, id domain.ProductID, expected int64, orderID domain.OrderID) (*domain.ProductState, error) {
	return uc.mutate(ctx, id, expected, func(p *domain.Product) error {
		return p.AddOrder(by, orderID)
	})
}

func (uc *UseCase) RemoveOrder(ctx context.Context, by domain.AppUserID, id domain.ProductID, expected int64, orderID domain.OrderID) (*domain.ProductState, error) {
	return uc.mutate(ctx, id, expected, func(p *domain.Product) error {
		return p.RemoveOrder(by, orderID)
	})
}

func (uc *UseCase) MarkUnrepairable(ctx context.Context, by domain.AppUserID, id domain.ProductID, expected int64, reason string) (*domain.ProductState, error) {
	return uc.mutate(ctx, id, expected, func(p *domain.Product) error {
		return p.MarkUnrepairable(by, reason)
	})
}

func (uc *UseCase) Activate(ctx context.Context, by domain.AppUserID, id domain.ProductID, expected int64) (*domain.ProductState, error) {
	return uc.mutate(ctx, id, expected, func(p *domain.Product) error {
		return p.Activate(by)
	})
}

func (uc *UseCase) Deactivate(ctx context.Context, by domain.AppUserID, id domain.ProductID, expected int64) (*domain.ProductState, error) {
	return uc.mutate(ctx, id, expected, func(p *domain.Product) error {
		return p.Deactivate(by)
	})
}

func (uc *UseCase) Delete(ctx context.Context, by domain.AppUserID, id domain.ProductID, expected int64) error {
	_, err := uc.mutate(ctx, id, expected, func(p *domain.Product) error {
		return p.Delete(by)
	})
	return err
}

func (uc *UseCase) Restore(ctx context.Context, by domain.AppUserID, id domain.ProductID, expected int64) (*domain.ProductState, error) {
	return uc.mutate(ctx, id, expected, func(p *domain.Product) error {
		return p.Restore(by)
	})
}

// UpsertItem is one entry of a bulk upsert. A set ID targets the existing
// stream when one exists; an unknown or empty ID creates a product.
type UpsertItem struct {
	Params   domain.ProductParams
	Expected int64
}

// UpsertResult pairs each item with its outcome. Err is per-item: one bad
// item does not undo its siblings, which commit independently.
type UpsertResult struct {
	State *domain.ProductState
	Err   error
}

// UpsertMany fans the items out over a worker-bounded group. Each item runs
// its own unit of work, so cross-item ordering is unspecified.
func (uc *UseCase) UpsertMany(ctx context.Context, by domain.AppUserID, items []UpsertItem) ([]UpsertResult, error) {
	results := make([]UpsertResult, len(items))

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			state, err := uc.upsertOne(ctx, by, item)
			results[i] = UpsertResult{State: state, Err: err}
			return err
		})
	}

	err := g.Wait()
	return results, err
}

func (uc *UseCase) upsertOne(ctx context.Context, by domain.AppUserID, item UpsertItem) (*domain.ProductState, error) {
	if item.Params.ID.IsZero() {
		return uc.Create(ctx, by, item.Params)
	}

	state, err := uc.mutate(ctx, item.Params.ID, item.Expected, func(p *domain.Product) error {
		if err := p.ChangeDetails(by, item.Params.Brand, item.Params.Model, item.Params.SerialID); err != nil {
			return err
		}
		if err := p.ChangePurchase(by, item.Params.PurchaseDate, item.Params.WarrantyUntil); err != nil {
			return err
		}
		if err := p.UpdateOwner(by, item.Params.OwnerID); err != nil {
			return err
		}
		return p.UpdateDealer(by, item.Params.DealerID)
	})
	if domain.IsDomainError(err, domain.ErrCodeNotFound) {
		return uc.Create(ctx, by, item.Params)
	}
	return state, err
}

func (uc *UseCase) mutate(ctx context.Context, id domain.ProductID, expected int64, fn func(*domain.Product) error) (*domain.ProductState, error) {
	session := usecase.NewSession(uc.store, uc.snapshots, uc.logger)
	linker := usecase.NewLinker(session, uc.logger)

	p, err := session.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if expected > 0 && p.Version != expected {
		return nil, domain.WrapError(domain.ErrCodeConflict,
			fmt.Sprintf("product %s is at version %d, expected %d", id, p.Version, expected),
			domain.ErrVersionConflict)
	}

	linker.WatchProduct(ctx, p)
	if err := fn(p); err != nil {
		return nil, err
	}
	if err := session.Commit(ctx); err != nil {
		return nil, err
	}

	state := p.State()
	return &state, nil
}

// ByID replays the authoritative stream; it never reads the projection.
func (uc *UseCase) ByID(ctx context.Context, id domain.ProductID) (*domain.ProductState, error) {
	session := usecase.NewSession(uc.store, uc.snapshots, uc.logger)
	p, err := session.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	state := p.State()
	return &state, nil
}

func (uc *UseCase) List(ctx context.Context, filter repository.ProductFilter) ([]domain.ProductState, error) {
	return uc.reader.List(ctx, filter)
}

func (uc *UseCase) Page(ctx context.Context, filter repository.ProductFilter, p pagination.Pagination) (pagination.Result[domain.ProductState], error) {
	return uc.reader.Page(ctx, filter, p)
}

func (uc *UseCase) Keyset(ctx context.Context, filter repository.ProductFilter, cursor pagination.Cursor) (pagination.KeysetResult[domain.ProductState], error) {
	return uc.reader.Keyset(ctx, filter, cursor)
}

func (uc *UseCase) Detail(ctx context.Context, id domain.ProductID) (*domain.ProductState, error) {
	state, err := uc.reader.Detail(ctx, id)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, domain.ErrProductNotFound
	}
	return state, nil
}
