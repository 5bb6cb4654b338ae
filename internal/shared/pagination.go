package shared

import "math"

const (
	defaultLimit = 20
	maxLimit     = 500
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = defaultLimit
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// Window is a skip/limit slice request.
type Window struct {
	Skip  int
	Limit int
}

// NewWindow clamps skip and limit, falling back to def when limit is unset.
func NewWindow(skip, limit, def int) Window {
	if skip < 0 {
		skip = 0
	}
	if def <= 0 {
		def = defaultLimit
	}
	if limit <= 0 {
		limit = def
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return Window{Skip: skip, Limit: limit}
}

// Paginate describes the window as a page of total rows. A skip that is not
// a multiple of the limit lands on the page holding its first row.
func (w Window) Paginate(total int) Pagination {
	if w.Limit <= 0 {
		return NewPagination(1, 0, total)
	}
	return NewPagination(w.Skip/w.Limit+1, w.Limit, total)
}
