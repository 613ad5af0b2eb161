package memory

import (
	"context"
	"sort"

	"github.com/servicecrm/backend/domain"
	"github.com/servicecrm/backend/pkg/pagination"
	projmemory "github.com/servicecrm/backend/projection/memory"
	"github.com/servicecrm/backend/repository"
)

type productReader struct {
	store *projmemory.Store
}

// NewProductReader creates the in-process projected product reader.
func NewProductReader(store *projmemory.Store) repository.ProductReader {
	return &productReader{store: store}
}

func (r *productReader) rows(filter repository.ProductFilter) []domain.ProductState {
	var items []domain.ProductState
	for _, state := range r.store.Products() {
		if filter.CentreID != "" && state.CentreID.String() != filter.CentreID {
			continue
		}
		if filter.OwnerID != "" && state.OwnerID.String() != filter.OwnerID {
			continue
		}
		if filter.DealerID != "" && state.DealerID.String() != filter.DealerID {
			continue
		}
		if !filter.IncludeDeleted && state.IsDeleted {
			continue
		}
		items = append(items, state)
	}
	sort.Slice(items, func(i, j int) bool { return productAfter(items[i], items[j]) })
	return items
}

func productAfter(a, b domain.ProductState) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	if !a.LastModifiedAt.Equal(b.LastModifiedAt) {
		return a.LastModifiedAt.After(b.LastModifiedAt)
	}
	return a.ID > b.ID
}

func (r *productReader) List(ctx context.Context, filter repository.ProductFilter) ([]domain.ProductState, error) {
	return r.rows(filter), nil
}

func (r *productReader) Page(ctx context.Context, filter repository.ProductFilter, p pagination.Pagination) (pagination.Result[domain.ProductState], error) {
	items := r.rows(filter)
	return pagination.NewResult(slicePage(items, p.Offset(), p.Limit()), len(items), p), nil
}

func (r *productReader) Keyset(ctx context.Context, filter repository.ProductFilter, cursor pagination.Cursor) (pagination.KeysetResult[domain.ProductState], error) {
	items := r.rows(filter)
	page, err := keysetSlice(items, cursor, func(s domain.ProductState) string { return s.ID.String() }, domain.ErrProductNotFound)
	if err != nil {
		return pagination.KeysetResult[domain.ProductState]{}, err
	}
	return pagination.KeysetResult[domain.ProductState]{Items: page, Total: len(items)}, nil
}

func (r *productReader) Detail(ctx context.Context, id domain.ProductID) (*domain.ProductState, error) {
	state, ok := r.store.ProductRow(id)
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return &state, nil
}
