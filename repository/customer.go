package repository

import (
	"context"

	"github.com/servicecrm/backend/domain"
	"github.com/servicecrm/backend/pkg/pagination"
)

// CustomerFilter narrows projected customer reads. Empty fields match
// everything; soft-deleted rows are hidden unless asked for.
type CustomerFilter struct {
	CentreID       string
	Role           string
	IncludeDeleted bool
}

// CustomerReader serves the eventually consistent read path over the
// projected customers table. The authoritative path is a stream replay and
// lives with the command handlers, not here.
type CustomerReader interface {
	List(ctx context.Context, filter CustomerFilter) ([]domain.CustomerState, error)
	Page(ctx context.Context, filter CustomerFilter, p pagination.Pagination) (pagination.Result[domain.CustomerState], error)
	Keyset(ctx context.Context, filter CustomerFilter, cursor pagination.Cursor) (pagination.KeysetResult[domain.CustomerState], error)

	// Detail returns the row with its product and order sets resolved from
	// the link tables.
	Detail(ctx context.Context, id domain.CustomerID) (*domain.CustomerState, error)
}
