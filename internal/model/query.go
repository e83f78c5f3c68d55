package model

// ListQuery carries pagination, search and ordering for list endpoints.
type ListQuery struct {
	Page         int
	Limit        int
	Search       string
	OrderBy      string
	OrderByField string
}

// Normalize fills defaults and clamps out-of-range values.
func (q ListQuery) Normalize() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.OrderBy != "DESC" {
		q.OrderBy = "ASC"
	}
	if q.OrderByField == "" {
		q.OrderByField = "name"
	}
	return q
}

// Offset returns the row offset for the normalized page.
func (q ListQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// PaginationFor builds the response pagination block for a total row count.
func (q ListQuery) PaginationFor(total int64) Pagination {
	pages := int((total + int64(q.Limit) - 1) / int64(q.Limit))
	return Pagination{Page: q.Page, Limit: q.Limit, Total: total, TotalPages: pages}
}
