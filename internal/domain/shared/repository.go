package shared

// Filter represents list query options
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// Normalized clamps paging values and fills missing ordering
func (f Filter) Normalized() Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	if f.OrderBy == "" {
		f.OrderBy = "created_at"
	}
	if f.OrderDir != "asc" {
		f.OrderDir = "desc"
	}
	return f
}

// Offset returns the number of rows skipped before the current page
func (f Filter) Offset() int {
	n := f.Normalized()
	return (n.Page - 1) * n.PageSize
}

// Paginated represents a paginated result
type Paginated[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginated creates a new paginated result
func NewPaginated[T any](items []T, total int64, page, pageSize int) Paginated[T] {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	return Paginated[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
