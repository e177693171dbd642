package core

const maxPageLimit = 100

// Page is a 1-based page request.
type Page struct {
	Number int
	Limit  int
}

// NewPage clamps the requested page number and limit, applying defaultLimit when limit <= 0.
func NewPage(number, limit, defaultLimit int) Page {
	if number < 1 {
		number = 1
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return Page{Number: number, Limit: limit}
}

// Offset is the index of the first item of the page: (page-1)*limit.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Limit
}

type Pagination struct {
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
	TotalItems  int `json:"totalItems"`
}

// NewPagination computes totalPages = ceil(total/limit).
func NewPagination(p Page, total int) Pagination {
	pages := 0
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return Pagination{CurrentPage: p.Number, TotalPages: pages, TotalItems: total}
}
