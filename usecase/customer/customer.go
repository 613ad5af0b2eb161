// Package customer holds the command and query handlers for the customer
// aggregate. Every command runs inside its own unit of work: load, mutate,
// commit; the reactive linker drags affected products into the same batch.
package customer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

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
	reader    repository.CustomerReader
	logger    *zap.Logger
}

func New(store eventstore.Store, snapshots snapshot.Store, reader repository.CustomerReader, logger *zap.Logger) *UseCase {
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

// UpdateParams carries the mutable profile fields. Nil means "leave as is";
// name and address fields travel in pairs because their events do.
type UpdateParams struct {
	FirstName *string
	LastName  *string
	Phone     *domain.PhoneNumber
	CityID    *string
	Address   *string
	Role      *domain.Role
}

// Create births a customer. Declared ProductIDs are claimed reactively, so
// the referenced products end up pointing back at the new customer within the
// same commit; a dangling product id fails the whole creation.
func (uc *UseCase) Create(ctx context.Context, by domain.AppUserID, params domain.CustomerParams) (*domain.CustomerState, error) {
	session := usecase.NewSession(uc.store, uc.snapshots, uc.logger)
	linker := usecase.NewLinker(session, uc.logger)

	c, err := domain.NewCustomer(by, params)
	if err != nil {
		return nil, err
	}
	if err := linker.TrackNewCustomer(ctx, c); err != nil {
		return nil, err
	}
	if err := session.Commit(ctx); err != nil {
		return nil, err
	}

	state := c.State()
	uc.logger.Info("customer created",
		zap.String("customer_id", state.ID.String()), zap.String("role", string(state.Role)))
	return &state, nil
}

func (uc *UseCase) Update(ctx context.Context, by domain.AppUserID, id domain.CustomerID, expected int64, params UpdateParams) (*domain.CustomerState, error) {
	return uc.mutate(ctx, id, expected, func(c *domain.Customer) error {
		if params.FirstName != nil || params.LastName != nil {
			first, last := c.FirstName, c.LastName
			if params.FirstName != nil {
				first = *params.FirstName
			}
			if params.LastName != nil {
				last = *params.LastName
			}
			if err := c.ChangeName(by, first, last); err != nil {
				return err
			}
		}
		if params.Phone != nil {
			if err := c.ChangePhone(by, *params.Phone); err != nil {
				return err
			}
		}
		if params.CityID != nil || params.Address != nil {
			cityID, address := c.CityID, c.Address
			if params.CityID != nil {
				cityID = *params.CityID
			}
			if params.Address != nil {
				address = *params.Address
			}
			if err := c.ChangeAddress(by, cityID, address); err != nil {
				return err
			}
		}
		if params.Role != nil {
			if err := c.ChangeRole(by, *params.Role); err != nil {
				return err
			}
		}
		return nil
	})
}

// AddProduct links a product into the customer's set; the reactive layer
// points the product's owner or dealer slot back at the customer.
func (uc *UseCase) AddProduct(ctx context.Context, by domain.AppUserID, id domain.CustomerID, expected int64, productID domain.ProductID) (*domain.CustomerState, error) {
	return uc.mutate(ctx, id, expected, func(c *domain.Customer) error {
		return c.AddProduct(by, productID)
	})
}

func (uc *UseCase) RemoveProduct(ctx context.Context, by domain.AppUserID, id domain.CustomerID, expected int64, productID domain.ProductID) (*domain.CustomerState, error) {
	return uc.mutate(ctx, id, expected, func(c *domain.Customer) error {
		return c.RemoveProduct(by, productID)
	})
}

func (uc *UseCase) AddOrder(ctx context.Context, by domain.AppUserID, id domain.CustomerID, expected int64, orderID domain.OrderID) (*domain.CustomerState, error) {
	return uc.mutate(ctx, id, expected, func(c *domain.Customer) error {
		return c.AddOrder(by, orderID)
	})
}

func (uc *UseCase) RemoveOrder(ctx context.Context, by domain.AppUserID, id domain.CustomerID, expected int64, orderID domain.OrderID) (*domain.CustomerState, error) {
	return uc.mutate(ctx, id, expected, func(c *domain.Customer) error {
		return c.RemoveOrder(by, orderID)
	})
}

func (uc *UseCase) Activate(ctx context.Context, by domain.AppUserID, id domain.CustomerID, expected int64) (*domain.CustomerState, error) {
	return uc.mutate(ctx, id, expected, func(c *domain.Customer) error {
		return c.Activate(by)
	})
}

func (uc *UseCase) Deactivate(ctx context.Context, by domain.AppUserID, id domain.CustomerID, expected int64) (*domain.CustomerState, error) {
	return uc.mutate(ctx, id, expected, func(c *domain.Customer) error {
		return c.Deactivate(by)
	})
}

func (uc *UseCase) Delete(ctx context.Context, by domain.AppUserID, id domain.CustomerID, expected int64) error {
	_, err := uc.mutate(ctx, id, expected, func(c *domain.Customer) error {
		return c.Delete(by)
	})
	return err
}

func (uc *UseCase) Restore(ctx context.Context, by domain.AppUserID, id domain.CustomerID, expected int64) (*domain.CustomerState, error) {
	return uc.mutate(ctx, id, expected, func(c *domain.Customer) error {
		return c.Restore(by)
	})
}

// mutate is the shared command skeleton: one session, optimistic version
// check against the replayed head, reactive linking, single commit.
func (uc *UseCase) mutate(ctx context.Context, id domain.CustomerID, expected int64, fn func(*domain.Customer) error) (*domain.CustomerState, error) {
	session := usecase.NewSession(uc.store, uc.snapshots, uc.logger)
	linker := usecase.NewLinker(session, uc.logger)

	c, err := session.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	if expected > 0 && c.Version != expected {
		return nil, domain.WrapError(domain.ErrCodeConflict,
			fmt.Sprintf("customer %s is at version %d, expected %d", id, c.Version, expected),
			domain.ErrVersionConflict)
	}

	linker.WatchCustomer(ctx, c)
	if err := fn(c); err != nil {
		return nil, err
	}
	if err := session.Commit(ctx); err != nil {
		return nil, err
	}

	state := c.State()
	return &state, nil
}

// ByID replays the authoritative stream; it never reads the projection.
func (uc *UseCase) ByID(ctx context.Context, id domain.CustomerID) (*domain.CustomerState, error) {
	session := usecase.NewSession(uc.store, uc.snapshots, uc.logger)
	c, err := session.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	state := c.State()
	return &state, nil
}

func (uc *UseCase) List(ctx context.Context, filter repository.CustomerFilter) ([]domain.CustomerState, error) {
	return uc.reader.List(ctx, filter)
}

func (uc *UseCase) Page(ctx context.Context, filter repository.CustomerFilter, p pagination.Pagination) (pagination.Result[domain.CustomerState], error) {
	return uc.reader.Page(ctx, filter, p)
}

func (uc *UseCase) Keyset(ctx context.Context, filter repository.CustomerFilter, cursor pagination.Cursor) (pagination.KeysetResult[domain.CustomerState], error) {
	return uc.reader.Keyset(ctx, filter, cursor)
}

func (uc *UseCase) Detail(ctx context.Context, id domain.CustomerID) (*domain.CustomerState, error) {
	state, err := uc.reader.Detail(ctx, id)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, domain.ErrCustomerNotFound
	}
	return state, nil
}
