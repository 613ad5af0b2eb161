package repository

import (
	"context"

	"github.com/servicecrm/backend/domain"
	"github.com/servicecrm/backend/pkg/pagination"
)

// ProductFilter narrows projected product reads.
type ProductFilter struct {
	CentreID       string
	OwnerID        string
	DealerID       string
	IncludeDeleted bool
}

// ProductReader serves the eventually consistent read path over the projected
// products table.
type ProductReader interface {
	List(ctx context.Context, filter ProductFilter) ([]domain.ProductState, error)
	Page(ctx context.Context, filter ProductFilter, p pagination.Pagination) (pagination.Result[domain.ProductState], error)
	Keyset(ctx context.Context, filter ProductFilter, cursor pagination.Cursor) (pagination.KeysetResult[domain.ProductState], error)

	// Detail returns the row with its order set resolved from the link table.
	Detail(ctx context.Context, id domain.ProductID) (*domain.ProductState, error)
}
