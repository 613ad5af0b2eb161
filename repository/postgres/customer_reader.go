package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/servicecrm/backend/domain"
	"github.com/servicecrm/backend/pkg/pagination"
	"github.com/servicecrm/backend/repository"
)

const customerColumns = `
	id, first_name, last_name, phone, city_id, address, role, centre_id,
	created_at, created_by, last_modified_at, last_modified_by,
	version, is_active, is_deleted
`

// customerFilterClause matches the filter with positional args $1..$3; extra
// predicates continue from $4.
const customerFilterClause = `
	($1 = '' OR centre_id = $1)
	AND ($2 = '' OR role = $2)
	AND ($3 OR NOT is_deleted)
`

type customerReader struct {
	pool *pgxpool.Pool
}

// NewCustomerReader creates the Postgres-backed projected customer reader.
func NewCustomerReader(pool *pgxpool.Pool) repository.CustomerReader {
	return &customerReader{pool: pool}
}

func (r *customerReader) List(ctx context.Context, filter repository.CustomerFilter) ([]domain.CustomerState, error) {
	const query = `
	SELECT ` + customerColumns + `
	FROM customers
	WHERE ` + customerFilterClause + `
	ORDER BY created_at DESC, last_modified_at DESC, id DESC
	`
	rows, err := r.pool.Query(ctx, query, filter.CentreID, filter.Role, filter.IncludeDeleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCustomers(rows)
}

func (r *customerReader) Page(ctx context.Context, filter repository.CustomerFilter, p pagination.Pagination) (pagination.Result[domain.CustomerState], error) {
	var zero pagination.Result[domain.CustomerState]

	total, err := r.total(ctx, filter)
	if err != nil {
		return zero, err
	}

	const query = `
	SELECT ` + customerColumns + `
	FROM customers
	WHERE ` + customerFilterClause + `
	ORDER BY created_at DESC, last_modified_at DESC, id DESC
	LIMIT $4 OFFSET $5
	`
	rows, err := r.pool.Query(ctx, query, filter.CentreID, filter.Role, filter.IncludeDeleted, p.Limit(), p.Offset())
	if err != nil {
		return zero, err
	}
	defer rows.Close()

	items, err := collectCustomers(rows)
	if err != nil {
		return zero, err
	}
	return pagination.NewResult(items, total, p), nil
}

func (r *customerReader) Keyset(ctx context.Context, filter repository.CustomerFilter, cursor pagination.Cursor) (pagination.KeysetResult[domain.CustomerState], error) {
	var zero pagination.KeysetResult[domain.CustomerState]

	total, err := r.total(ctx, filter)
	if err != nil {
		return zero, err
	}

	var rows pgx.Rows
	if cursor.AnchorID == "" {
		const query = `
		SELECT ` + customerColumns + `
		FROM customers
		WHERE ` + customerFilterClause + `
		ORDER BY created_at DESC, last_modified_at DESC, id DESC
		LIMIT $4
		`
		rows, err = r.pool.Query(ctx, query, filter.CentreID, filter.Role, filter.IncludeDeleted, cursor.PageSize)
	} else {
		anchor, anchorErr := r.anchor(ctx, cursor.AnchorID)
		if anchorErr != nil {
			return zero, anchorErr
		}
		if cursor.Backward {
			const query = `
			SELECT ` + customerColumns + `
			FROM customers
			WHERE ` + customerFilterClause + `
			  AND (created_at, last_modified_at, id) > ($4, $5, $6)
			ORDER BY created_at ASC, last_modified_at ASC, id ASC
			LIMIT $7
			`
			rows, err = r.pool.Query(ctx, query,
				filter.CentreID, filter.Role, filter.IncludeDeleted,
				anchor.createdAt, anchor.lastModifiedAt, cursor.AnchorID, cursor.PageSize)
		} else {
			const query = `
			SELECT ` + customerColumns + `
			FROM customers
			WHERE ` + customerFilterClause + `
			  AND (created_at, last_modified_at, id) < ($4, $5, $6)
			ORDER BY created_at DESC, last_modified_at DESC, id DESC
			LIMIT $7
			`
			rows, err = r.pool.Query(ctx, query,
				filter.CentreID, filter.Role, filter.IncludeDeleted,
				anchor.createdAt, anchor.lastModifiedAt, cursor.AnchorID, cursor.PageSize)
		}
	}
	if err != nil {
		return zero, err
	}
	defer rows.Close()

	items, err := collectCustomers(rows)
	if err != nil {
		return zero, err
	}
	if cursor.Backward {
		pagination.Reverse(items)
	}
	return pagination.KeysetResult[domain.CustomerState]{Items: items, Total: total}, nil
}

func (r *customerReader) Detail(ctx context.Context, id domain.CustomerID) (*domain.CustomerState, error) {
	const query = `
	SELECT ` + customerColumns + `
	FROM customers
	WHERE id = $1
	`
	rows, err := r.pool.Query(ctx, query, id.String())
	if err != nil {
		return nil, err
	}
	items, err := collectCustomers(rows)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, domain.ErrCustomerNotFound
	}
	state := items[0]

	state.ProductIDs, err = collectIDSet[domain.ProductID](ctx, r.pool,
		`SELECT product_id FROM customer_product WHERE customer_id = $1`, id.String())
	if err != nil {
		return nil, err
	}
	state.OrderIDs, err = collectIDSet[domain.OrderID](ctx, r.pool,
		`SELECT order_id FROM customer_order WHERE customer_id = $1`, id.String())
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *customerReader) total(ctx context.Context, filter repository.CustomerFilter) (int, error) {
	const query = `
	SELECT COUNT(*) FROM customers WHERE ` + customerFilterClause + `
	`
	var total int
	err := r.pool.QueryRow(ctx, query, filter.CentreID, filter.Role, filter.IncludeDeleted).Scan(&total)
	return total, err
}

func (r *customerReader) anchor(ctx context.Context, id string) (anchorRow, error) {
	const query = `
	SELECT created_at, last_modified_at FROM customers WHERE id = $1
	`
	var a anchorRow
	if err := r.pool.QueryRow(ctx, query, id).Scan(&a.createdAt, &a.lastModifiedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return a, domain.ErrCustomerNotFound
		}
		return a, err
	}
	return a, nil
}

func collectCustomers(rows pgx.Rows) ([]domain.CustomerState, error) {
	var items []domain.CustomerState
	for rows.Next() {
		var (
			state                                           domain.CustomerState
			rowID, phone, role, centreID, created, modified string
		)
		if err := rows.Scan(
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
		); err != nil {
			return nil, err
		}
		state.ID = domain.CustomerID(rowID)
		state.Phone = domain.PhoneNumber(phone)
		state.Role = domain.Role(role)
		state.CentreID = domain.CentreID(centreID)
		state.CreatedBy = domain.AppUserID(created)
		state.LastModifiedBy = domain.AppUserID(modified)
		items = append(items, state)
	}
	return items, rows.Err()
}
