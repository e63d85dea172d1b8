package analytics

import "github.com/tuushin/crmsync/backend-go/internal/domain"

const (
	DefaultPageSize = 15
	MaxPageSize     = 200
)

// Paginate clamps page into [1, totalPages] and returns the envelope together
// with the slice bounds of that page.
func Paginate(total, page, pageSize int) (p domain.Pagination, start, end int) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	if total < 0 {
		total = 0
	}

	totalPages := (total + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start = (page - 1) * pageSize
	if start > total {
		start = total
	}
	end = start + pageSize
	if end > total {
		end = total
	}

	return domain.Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
	}, start, end
}
