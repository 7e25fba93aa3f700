package kernel

// PaginationOptions selects one page of a listing. Page is 1-based.
type PaginationOptions struct {
	Page     int
	PageSize int
}

// Normalize clamps the options: page at least 1, size in [1, max] with
// fallback for anything out of range.
func (o PaginationOptions) Normalize(fallback, max int) PaginationOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.PageSize < 1 || o.PageSize > max {
		o.PageSize = fallback
	}
	return o
}

// Offset is the number of rows skipped before this page.
func (o PaginationOptions) Offset() int {
	return (o.Page - 1) * o.PageSize
}

type PageInfo struct {
	Number int `json:"page"`
	Size   int `json:"pageSize"`
	Total  int `json:"total"`
	Pages  int `json:"pages"`
}

// Paginated is one page of items plus the listing totals.
type Paginated[T any] struct {
	Items []T      `json:"items"`
	Page  PageInfo `json:"pagination"`
}

func NewPaginated[T any](items []T, opts PaginationOptions, total int) Paginated[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if opts.PageSize > 0 {
		pages = (total + opts.PageSize - 1) / opts.PageSize
	}
	return Paginated[T]{
		Items: items,
		Page:  PageInfo{Number: opts.Page, Size: opts.PageSize, Total: total, Pages: pages},
	}
}

func (p Paginated[T]) HasNext() bool { return p.Page.Number < p.Page.Pages }
