package operations

// Pagination carries cursor paging state across repository calls.
// Marketplaces page with opaque cursors, so there is no page number.
type Pagination struct {
	PageSize   int    `json:"page_size"`
	Cursor     string `json:"cursor,omitempty"`
	NextCursor string `json:"next_cursor,omitempty"`
	TotalItems int64  `json:"total_items"`
	HasNext    bool   `json:"has_next"`
	HasPrev    bool   `json:"has_prev"`
}

// NewPagination creates a pagination starting at cursor. An empty cursor is the first page.
func NewPagination(pageSize int, cursor string) *Pagination {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return &Pagination{
		PageSize: pageSize,
		Cursor:   cursor,
		HasPrev:  cursor != "",
	}
}

// SetNext records where the following page starts and the marketplace-reported total, when known
func (p *Pagination) SetNext(cursor string, total int) {
	p.NextCursor = cursor
	p.HasNext = cursor != ""
	if total > 0 {
		p.TotalItems = int64(total)
	}
}

// Next returns the pagination of the following page, or nil on the last page
func (p *Pagination) Next() *Pagination {
	if !p.HasNext {
		return nil
	}
	return NewPagination(p.PageSize, p.NextCursor)
}

// GetLimit returns the page size sent to the marketplace
func (p *Pagination) GetLimit() int {
	return p.PageSize
}
