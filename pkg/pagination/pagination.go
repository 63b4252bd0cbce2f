// Package pagination slices sorted result sets into bounded pages.
package pagination

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPage indicates a page number below 1.
	ErrInvalidPage = errors.New("page number must be at least 1")

	// ErrInvalidPageSize indicates a page size below 1.
	ErrInvalidPageSize = errors.New("page size must be at least 1")
)

// Page is one bounded slice of a result set.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

// Paginate returns the requested slice of items, clipped to the bounds.
// Pages past the end yield an empty page, not an error: concatenating pages
// 1..TotalPages reconstructs items exactly once per element.
func Paginate[T any](items []T, page, pageSize int) (Page[T], error) {
	if page < 1 {
		return Page[T]{}, fmt.Errorf("%w: got %d", ErrInvalidPage, page)
	}

	if pageSize < 1 {
		return Page[T]{}, fmt.Errorf("%w: got %d", ErrInvalidPageSize, pageSize)
	}

	totalCount := len(items)
	totalPages := (totalCount + pageSize - 1) / pageSize

	start := (page - 1) * pageSize
	if start > totalCount {
		start = totalCount
	}

	end := start + pageSize
	if end > totalCount {
		end = totalCount
	}

	return Page[T]{
		Items:      items[start:end],
		Page:       page,
		PageSize:   pageSize,
		TotalCount: totalCount,
		TotalPages: totalPages,
	}, nil
}
