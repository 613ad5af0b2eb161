// Package postgres writes the read model through whatever pgx querier it is
// handed: the append transaction during inline folds, or a pool for tooling.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/servicecrm/backend/domain"
	"github.com/servicecrm/backend/projection"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx alike.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db Querier
}

func New(db Querier) *Store {
	return &Store{db: db}
}

func (s *Store) GetCustomer(ctx context.Context, id domain.CustomerID) (*domain.CustomerState, error) {
	const query = `
	SELECT id, first_name, last_name, phone, city_id, address, role, centre_id,
	       created_at, created_by, last_modified_at, last_modified_by,
	       version, is_active, is_deleted
	FROM customers
	WHERE id = $1
	`
	var (
		state                                    domain.CustomerState
		rowID, phone, role, centreID, created, modified string
	)
	err := s.db.QueryRow(ctx, query, id.String()).Scan(
		&rowID,
		&state.FirstName,
		&state.LastName,
		&phone,
		&state.CityID,
		&state.Address,
		&role,
		&centreID,
		&state.CreatedAt,
		&created,
		&state.LastModifiedAt,
		&modified,
		&state.Version,
		&state.IsActive,
		&state.IsDeleted,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	state.ID = domain.CustomerID(rowID)
	state.Phone = domain.PhoneNumber(phone)
	state.Role = domain.Role(role)
	state.CentreID = domain.CentreID(centreID)
	state.CreatedBy = domain.AppUserID(created)
	state.LastModifiedBy = domain.AppUserID(modified)
	return &state, nil
}

func (s *Store) UpsertCustomer(ctx context.Context, state *domain.CustomerState) error {
	const query = `
	INSERT INTO customers (id, first_name, last_name, phone, city_id, address, role, centre_id,
	                       created_at, created_by, last_modified_at, last_modified_by,
	                       version, is_active, is_deleted)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	ON CONFLICT (id) DO UPDATE
	SET first_name = EXCLUDED.first_name,
	    last_name = EXCLUDED.last_name,
	    phone = EXCLUDED.phone,
	    city_id = EXCLUDED.city_id,
	    address = EXCLUDED.address,
	    role = EXCLUDED.role,
	    centre_id = EXCLUDED.centre_id,
	    last_modified_at = EXCLUDED.last_modified_at,
	    last_modified_by = EXCLUDED.last_modified_by,
	    version = EXCLUDED.version,
	    is_active = EXCLUDED.is_active,
	    is_deleted = EXCLUDED.is_deleted
	`
	_, err := s.db.Exec(ctx, query,
		state.ID.String(),
		state.FirstName,
		state.LastName,
		state.Phone.String(),
		state.CityID,
		state.Address,
		string(state.Role),
		state.CentreID.String(),
		state.CreatedAt,
		state.CreatedBy.String(),
		state.LastModifiedAt,
		state.LastModifiedBy.String(),
		state.Version,
		state.IsActive,
		state.IsDeleted,
	)
	return err
}

func (s *Store) GetProduct(ctx context.Context, id domain.ProductID) (*domain.ProductState, error) {
	const query = `
	SELECT id, brand, model, serial_id, owner_id, dealer_id,
	       purchase_date, warranty_until,
	       unrepairable, unrepairable_reason, unrepairable_at,
	       centre_id, created_at, created_by, last_modified_at, last_modified_by,
	       version, is_active, is_deleted
	FROM products
	WHERE id = $1
	`
	var (
		state                                           domain.ProductState
		rowID, ownerID, dealerID, centreID, created, modified string
	)
	err := s.db.QueryRow(ctx, query, id.String()).Scan(
		&rowID,
		&state.Brand,
		&state.Model,
		&state.SerialID,
		&ownerID,
		&dealerID,
		&state.PurchaseDate,
		&state.WarrantyUntil,
		&state.Unrepairable,
		&state.UnrepairableReason,
		&state.UnrepairableAt,
		&centreID,
		&state.CreatedAt,
		&created,
		&state.LastModifiedAt,
		&modified,
		&state.Version,
		&state.IsActive,
		&state.IsDeleted,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	state.ID = domain.ProductID(rowID)
	state.OwnerID = domain.CustomerID(ownerID)
	state.DealerID = domain.CustomerID(dealerID)
	state.CentreID = domain.CentreID(centreID)
	state.CreatedBy = domain.AppUserID(created)
	state.LastModifiedBy = domain.AppUserID(modified)
	return &state, nil
}

func (s *Store) UpsertProduct(ctx context.Context, state *domain.ProductState) error {
	const query = `
	INSERT INTO products (id, brand, model, serial_id, owner_id, dealer_id,
	                      purchase_date, warranty_until,
	                      unrepairable, unrepairable_reason, unrepairable_at,
	                      centre_id, created_at, created_by, last_modified_at, last_modified_by,
	                      version, is_active, is_deleted)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	ON CONFLICT (id) DO UPDATE
	SET brand = EXCLUDED.brand,
	    model = EXCLUDED.model,
	    serial_id = EXCLUDED.serial_id,
	    owner_id = EXCLUDED.owner_id,
	    dealer_id = EXCLUDED.dealer_id,
	    purchase_date = EXCLUDED.purchase_date,
	    warranty_until = EXCLUDED.warranty_until,
	    unrepairable = EXCLUDED.unrepairable,
	    unrepairable_reason = EXCLUDED.unrepairable_reason,
	    unrepairable_at = EXCLUDED.unrepairable_at,
	    centre_id = EXCLUDED.centre_id,
	    last_modified_at = EXCLUDED.last_modified_at,
	    last_modified_by = EXCLUDED.last_modified_by,
	    version = EXCLUDED.version,
	    is_active = EXCLUDED.is_active,
	    is_deleted = EXCLUDED.is_deleted
	`
	_, err := s.db.Exec(ctx, query,
		state.ID.String(),
		state.Brand,
		state.Model,
		state.SerialID,
		state.OwnerID.String(),
		state.DealerID.String(),
		state.PurchaseDate,
		state.WarrantyUntil,
		state.Unrepairable,
		state.UnrepairableReason,
		state.UnrepairableAt,
		state.CentreID.String(),
		state.CreatedAt,
		state.CreatedBy.String(),
		state.LastModifiedAt,
		state.LastModifiedBy.String(),
		state.Version,
		state.IsActive,
		state.IsDeleted,
	)
	return err
}

func (s *Store) AddCustomerProduct(ctx context.Context, customerID domain.CustomerID, productID domain.ProductID) error {
	const query = `
	INSERT INTO customer_product (customer_id, product_id)
	VALUES ($1, $2)
	ON CONFLICT DO NOTHING
	`
	_, err := s.db.Exec(ctx, query, customerID.String(), productID.String())
	return err
}

func (s *Store) RemoveCustomerProduct(ctx context.Context, customerID domain.CustomerID, productID domain.ProductID) error {
	const query = `
	DELETE FROM customer_product WHERE customer_id = $1 AND product_id = $2
	`
	_, err := s.db.Exec(ctx, query, customerID.String(), productID.String())
	return err
}

func (s *Store) AddCustomerOrder(ctx context.Context, customerID domain.CustomerID, orderID domain.OrderID) error {
	const query = `
	INSERT INTO customer_order (customer_id, order_id)
	VALUES ($1, $2)
	ON CONFLICT DO NOTHING
	`
	_, err := s.db.Exec(ctx, query, customerID.String(), orderID.String())
	return err
}

func (s *Store) RemoveCustomerOrder(ctx context.Context, customerID domain.CustomerID, orderID domain.OrderID) error {
	const query = `
	DELETE FROM customer_order WHERE customer_id = $1 AND order_id = $2
	`
	_, err := s.db.Exec(ctx, query, customerID.String(), orderID.String())
	return err
}

func (s *Store) AddProductOrder(ctx context.Context, productID domain.ProductID, orderID domain.OrderID) error {
	const query = `
	INSERT INTO product_order (product_id, order_id)
	VALUES ($1, $2)
	ON CONFLICT DO NOTHING
	`
	_, err := s.db.Exec(ctx, query, productID.String(), orderID.String())
	return err
}

func (s *Store) RemoveProductOrder(ctx context.Context, productID domain.ProductID, orderID domain.OrderID) error {
	const query = `
	DELETE FROM product_order WHERE product_id = $1 AND order_id = $2
	`
	_, err := s.db.Exec(ctx, query, productID.String(), orderID.String())
	return err
}

var _ projection.Store = (*Store)(nil)
