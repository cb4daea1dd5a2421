package models

// Pagination contains pagination metadata returned in list responses.
// Every listing endpoint shares this contract.
type Pagination struct {
	Page        int  `json:"page"`
	PageSize    int  `json:"page_size"`
	TotalCount  int  `json:"total_count"`
	TotalPages  int  `json:"total_pages"`
	HasPrevious bool `json:"has_previous"`
	HasNext     bool `json:"has_next"`
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// NormalizePage clamps a requested page/size pair: page is at least 1,
// size falls back to the default when unset and is capped at 100.
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// NewPagination derives the full pagination block from a normalized
// page/size pair and the total row count.
func NewPagination(page, pageSize, totalCount int) *Pagination {
	page, pageSize = NormalizePage(page, pageSize)
	totalPages := 0
	if totalCount > 0 {
		totalPages = (totalCount + pageSize - 1) / pageSize
	}
	return &Pagination{
		Page:        page,
		PageSize:    pageSize,
		TotalCount:  totalCount,
		TotalPages:  totalPages,
		HasPrevious: page > 1,
		HasNext:     page < totalPages,
	}
}
