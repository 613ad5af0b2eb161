// Package memory serves the query surface straight from the in-process read
// model. It backs the embedded deployment mode and tests; the sort order and
// filter semantics mirror the Postgres readers.
package memory

import (
	"context"
	"sort"

	"github.com/servicecrm/backend/domain"
	"github.com/servicecrm/backend/pkg/pagination"
	projmemory "github.com/servicecrm/backend/projection/memory"
	"github.com/servicecrm/backend/repository"
)

type customerReader struct {
	store *projmemory.Store
}

// NewCustomerReader creates the in-process projected customer reader.
func NewCustomerReader(store *projmemory.Store) repository.CustomerReader {
	return &customerReader{store: store}
}

func (r *customerReader) rows(filter repository.CustomerFilter) []domain.CustomerState {
	var items []domain.CustomerState
	for _, state := range r.store.Customers() {
		if filter.CentreID != "" && state.CentreID.String() != filter.CentreID {
			continue
		}
		if filter.Role != "" && string(state.Role) != filter.Role {
			continue
		}
		if !filter.IncludeDeleted && state.IsDeleted {
			continue
		}
		items = append(items, state)
	}
	sort.Slice(items, func(i, j int) bool { return customerAfter(items[i], items[j]) })
	return items
}

// customerAfter reports whether a sorts before b in display order: newest
// created first, ties broken by last modification and then id descending.
func customerAfter(a, b domain.CustomerState) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	if !a.LastModifiedAt.Equal(b.LastModifiedAt) {
		return a.LastModifiedAt.After(b.LastModifiedAt)
	}
	return a.ID > b.ID
}

func (r *customerReader) List(ctx context.Context, filter repository.CustomerFilter) ([]domain.CustomerState, error) {
	return r.rows(filter), nil
}

func (r *customerReader) Page(ctx context.Context, filter repository.CustomerFilter, p pagination.Pagination) (pagination.Result[domain.CustomerState], error) {
	items := r.rows(filter)
	return pagination.NewResult(slicePage(items, p.Offset(), p.Limit()), len(items), p), nil
}

func (r *customerReader) Keyset(ctx context.Context, filter repository.CustomerFilter, cursor pagination.Cursor) (pagination.KeysetResult[domain.CustomerState], error) {
	items := r.rows(filter)
	page, err := keysetSlice(items, cursor, func(s domain.CustomerState) string { return s.ID.String() }, domain.ErrCustomerNotFound)
	if err != nil {
		return pagination.KeysetResult[domain.CustomerState]{}, err
	}
	return pagination.KeysetResult[domain.CustomerState]{Items: page, Total: len(items)}, nil
}

func (r *customerReader) Detail(ctx context.Context, id domain.CustomerID) (*domain.CustomerState, error) {
	state, ok := r.store.CustomerRow(id)
	if !ok {
		return nil, domain.ErrCustomerNotFound
	}
	return &state, nil
}

// slicePage clamps an offset window onto items.
func slicePage[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// keysetSlice cuts one keyset page out of items, which must already be in
// display order. An unknown anchor is the caller's NOT_FOUND.
func keysetSlice[T any](items []T, cursor pagination.Cursor, id func(T) string, notFound error) ([]T, error) {
	if cursor.AnchorID == "" {
		return slicePage(items, 0, cursor.PageSize), nil
	}

	anchor := -1
	for i, item := range items {
		if id(item) == cursor.AnchorID {
			anchor = i
			break
		}
	}
	if anchor < 0 {
		return nil, notFound
	}

	if cursor.Backward {
		start := anchor - cursor.PageSize
		if start < 0 {
			start = 0
		}
		return items[start:anchor], nil
	}
	return slicePage(items, anchor+1, cursor.PageSize), nil
}
