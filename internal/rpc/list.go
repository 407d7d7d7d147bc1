package rpc

import (
	"math"
	"strings"
)

// Sort orders accepted on list queries.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// ListParams is the shared input contract for paginated reads.
type ListParams struct {
	Page      int    `json:"page" validate:"omitempty,min=1"`
	PageSize  int    `json:"pageSize" validate:"omitempty,min=1"`
	Search    string `json:"search,omitempty"`
	SortBy    string `json:"sortBy,omitempty"`
	SortOrder string `json:"sortOrder,omitempty" validate:"omitempty,oneof=asc desc"`
}

// ListLimits bounds normalization for one procedure.
type ListLimits struct {
	DefaultPageSize int
	MaxPageSize     int
	DefaultSort     string
	// SortFields is the allow-list of sortable columns. Client-supplied
	// names outside it are rejected, never passed to a query builder.
	SortFields []string
}

// Normalize applies defaults and bounds, and rejects sort selections
// outside the allow-list.
func (p ListParams) Normalize(limits ListLimits) (ListParams, error) {
	out := p
	if out.Page <= 0 {
		out.Page = 1
	}
	if out.PageSize <= 0 {
		out.PageSize = limits.DefaultPageSize
	}
	if limits.MaxPageSize > 0 && out.PageSize > limits.MaxPageSize {
		return ListParams{}, Validation("pageSize must not exceed %d", limits.MaxPageSize)
	}
	if out.SortOrder == "" {
		out.SortOrder = SortDesc
	}
	if out.SortBy == "" {
		out.SortBy = limits.DefaultSort
	}
	if out.SortBy != "" && !contains(limits.SortFields, out.SortBy) {
		return ListParams{}, Validation("unsupported sort field %q", out.SortBy)
	}
	out.Search = strings.TrimSpace(out.Search)
	return out, nil
}

// Offset returns the zero-based row offset for the current page.
func (p ListParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// ListResult is the shared output contract for paginated reads.
type ListResult[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page" validate:"min=1"`
	PageSize   int `json:"pageSize" validate:"min=1"`
	TotalCount int `json:"totalCount" validate:"min=0"`
	TotalPages int `json:"totalPages" validate:"min=0"`
}

// NewListResult computes pagination metadata. TotalPages is zero
// exactly when TotalCount is zero.
func NewListResult[T any](items []T, params ListParams, total int) ListResult[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if total > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(params.PageSize)))
	}
	return ListResult[T]{
		Items:      items,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalCount: total,
		TotalPages: totalPages,
	}
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
