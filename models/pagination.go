package models

// Pagination is the shared metadata contract returned by every
// list-returning operation in the core.
type Pagination struct {
	CurrentPage int   `json:"current_page"`
	PageSize    int   `json:"page_size"`
	TotalItems  int64 `json:"total_items"`
	NextPage    *int  `json:"next_page"`
}

const DefaultPageSize = 20

// Paginate normalizes page/pageSize and derives NextPage from the
// total row count.
func Paginate(page, pageSize int, totalItems int64) Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	p := Pagination{CurrentPage: page, PageSize: pageSize, TotalItems: totalItems}
	if int64(page*pageSize) < totalItems {
		next := page + 1
		p.NextPage = &next
	}
	return p
}

// Offset returns the row offset for the current page.
func (p Pagination) Offset() int {
	return (p.CurrentPage - 1) * p.PageSize
}
