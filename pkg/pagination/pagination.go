// Package pagination carries the paging primitives shared by the query layer:
// offset pages over a stable sort order, and keyset cursors anchored on a row.
package pagination

const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Pagination is a normalized offset-paging request.
type Pagination struct {
	Page     int
	PageSize int
}

// New applies defaults and bounds to raw paging input.
func New(page, pageSize int) Pagination {
	p := Pagination{Page: page, PageSize: pageSize}
	p.normalize()
	return p
}

func (p *Pagination) normalize() {
	if p.Page <= 0 {
		p.Page = DefaultPage
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
}

// Offset is the number of rows skipped before the page starts.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func (p Pagination) Limit() int {
	return p.PageSize
}

// Result is one offset page plus the exact total of the filtered set.
type Result[T any] struct {
	Items    []T `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

func NewResult[T any](items []T, total int, p Pagination) Result[T] {
	return Result[T]{
		Items:    items,
		Total:    total,
		Page:     p.Page,
		PageSize: p.PageSize,
	}
}

func (r Result[T]) TotalPages() int {
	if r.Total == 0 || r.PageSize == 0 {
		return 0
	}
	pages := r.Total / r.PageSize
	if r.Total%r.PageSize > 0 {
		pages++
	}
	return pages
}

func (r Result[T]) HasNext() bool { return r.Page < r.TotalPages() }
func (r Result[T]) HasPrev() bool { return r.Page > 1 }

// Cursor is a keyset-paging request: rows strictly beyond the anchor in the
// stable order, either forward (older) or backward (newer). The caller always
// receives items in display order regardless of direction.
type Cursor struct {
	AnchorID string
	Backward bool
	PageSize int
}

// NewCursor bounds the page size the same way offset paging does.
func NewCursor(anchorID string, backward bool, pageSize int) Cursor {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Cursor{AnchorID: anchorID, Backward: backward, PageSize: pageSize}
}

// KeysetResult is one keyset page plus the exact total of the filtered set.
type KeysetResult[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

// Reverse flips items in place; used to restore display order after a
// backward scan.
func Reverse[T any](items []T) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}
