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

const productColumns = `
	id, brand, model, serial_id, owner_id, dealer_id,
	purchase_date, warranty_until,
	unrepairable, unrepairable_reason, unrepairable_at,
	centre_id, created_at, created_by, last_modified_at, last_modified_by,
	version, is_active, is_deleted
`

const productFilterClause = `
	($1 = '' OR centre_id = $1)
	AND ($2 = '' OR owner_id = $2)
	AND ($3 = '' OR dealer_id = $3)
	AND ($4 OR NOT is_deleted)
`

type productReader struct {
	pool *pgxpool.Pool
}

// NewProductReader creates the Postgres-backed projected product reader.
func NewProductReader(pool *pgxpool.Pool) repository.ProductReader {
	return &productReader{pool: pool}
}

func (r *productReader) List(ctx context.Context, filter repository.ProductFilter) ([]domain.ProductState, error) {
	const query = `
	SELECT ` + productColumns + `
	FROM products
	WHERE ` + productFilterClause + `
	ORDER BY created_at DESC, last_modified_at DESC, id DESC
	`
	rows, err := r.pool.Query(ctx, query, filter.CentreID, filter.OwnerID, filter.DealerID, filter.IncludeDeleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProducts(rows)
}

func (r *productReader) Page(ctx context.Context, filter repository.ProductFilter, p pagination.Pagination) (pagination.Result[domain.ProductState], error) {
	var zero pagination.Result[domain.ProductState]

	total, err := r.total(ctx, filter)
	if err != nil {
		return zero, err
	}

	const query = `
	SELECT ` + productColumns + `
	FROM products
	WHERE ` + productFilterClause + `
	ORDER BY created_at DESC, last_modified_at DESC, id DESC
	LIMIT $5 OFFSET $6
	`
	rows, err := r.pool.Query(ctx, query,
		filter.CentreID, filter.OwnerID, filter.DealerID, filter.IncludeDeleted,
		p.Limit(), p.Offset())
	if err != nil {
		return zero, err
	}
	defer rows.Close()

	items, err := collectProducts(rows)
	if err != nil {
		return zero, err
	}
	return pagination.NewResult(items, total, p), nil
}

func (r *productReader) Keyset(ctx context.Context, filter repository.ProductFilter, cursor pagination.Cursor) (pagination.KeysetResult[domain.ProductState], error) {
	var zero pagination.KeysetResult[domain.ProductState]

	total, err := r.total(ctx, filter)
	if err != nil {
		return zero, err
	}

	var rows pgx.Rows
	if cursor.AnchorID == "" {
		const query = `
		SELECT ` + productColumns + `
		FROM products
		WHERE ` + productFilterClause + `
		ORDER BY created_at DESC, last_modified_at DESC, id DESC
		LIMIT $5
		`
		rows, err = r.pool.Query(ctx, query,
			filter.CentreID, filter.OwnerID, filter.DealerID, filter.IncludeDeleted, cursor.PageSize)
	} else {
		anchor, anchorErr := r.anchor(ctx, cursor.AnchorID)
		if anchorErr != nil {
			return zero, anchorErr
		}
		if cursor.Backward {
			const query = `
			SELECT ` + productColumns + `
			FROM products
			WHERE ` + productFilterClause + `
			  AND (created_at, last_modified_at, id) > ($5, $6, $7)
			ORDER BY created_at ASC, last_modified_at ASC, id ASC
			LIMIT $8
			`
			rows, err = r.pool.Query(ctx, query,
				filter.CentreID, filter.OwnerID, filter.DealerID, filter.IncludeDeleted,
				anchor.createdAt, anchor.lastModifiedAt, cursor.AnchorID, cursor.PageSize)
		} else {
			const query = `
			SELECT ` + productColumns + `
			FROM products
			WHERE ` + productFilterClause + `
			  AND (created_at, last_modified_at, id) < ($5, $6, $7)
			ORDER BY created_at DESC, last_modified_at DESC, id DESC
			LIMIT $8
			`
			rows, err = r.pool.Query(ctx, query,
				filter.CentreID, filter.OwnerID, filter.DealerID, filter.IncludeDeleted,
				anchor.createdAt, anchor.lastModifiedAt, cursor.AnchorID, cursor.PageSize)
		}
	}
	if err != nil {
		return zero, err
	}
	defer rows.Close()

	items, err := collectProducts(rows)
	if err != nil {
		return zero, err
	}
	if cursor.Backward {
		pagination.Reverse(items)
	}
	return pagination.KeysetResult[domain.ProductState]{Items: items, Total: total}, nil
}

func (r *productReader) Detail(ctx context.Context, id domain.ProductID) (*domain.ProductState, error) {
	const query = `
	SELECT ` + productColumns + `
	FROM products
	WHERE id = $1
	`
	rows, err := r.pool.Query(ctx, query, id.String())
	if err != nil {
		return nil, err
	}
	items, err := collectProducts(rows)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, domain.ErrProductNotFound
	}
	state := items[0]

	state.OrderIDs, err = collectIDSet[domain.OrderID](ctx, r.pool,
		`SELECT order_id FROM product_order WHERE product_id = $1`, id.String())
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *productReader) total(ctx context.Context, filter repository.ProductFilter) (int, error) {
	const query = `
	SELECT COUNT(*) FROM products WHERE ` + productFilterClause + `
	`
	var total int
	err := r.pool.QueryRow(ctx, query, filter.CentreID, filter.OwnerID, filter.DealerID, filter.IncludeDeleted).Scan(&total)
	return total, err
}

func (r *productReader) anchor(ctx context.Context, id string) (anchorRow, error) {
	const query = `
	SELECT created_at, last_modified_at FROM products WHERE id = $1
	`
	var a anchorRow
	if err := r.pool.QueryRow(ctx, query, id).Scan(&a.createdAt, &a.lastModifiedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return a, domain.ErrProductNotFound
		}
		return a, err
	}
	return a, nil
}

func collectProducts(rows pgx.Rows) ([]domain.ProductState, error) {
	var items []domain.ProductState
	for rows.Next() {
		var (
			state                                                 domain.ProductState
			rowID, ownerID, dealerID, centreID, created, modified string
		)
		if err := rows.Scan(
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
		); err != nil {
			return nil, err
		}
		state.ID = domain.ProductID(rowID)
		state.OwnerID = domain.CustomerID(ownerID)
		state.DealerID = domain.CustomerID(dealerID)
		state.CentreID = domain.CentreID(centreID)
		state.CreatedBy = domain.AppUserID(created)
		state.LastModifiedBy = domain.AppUserID(modified)
		items = append(items, state)
	}
	return items, rows.Err()
}
