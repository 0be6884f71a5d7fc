// Package listing filters, sorts and paginates lists held in memory.
package listing

import (
	"slices"
	"sort"
	"strings"
)

const (
	DefaultPageSize = 10
	OrderAsc        = "asc"
	OrderDesc       = "desc"
)

// PageSizeOptions are the page sizes offered to users
var PageSizeOptions = []int{5, 10, 20, 50}

// Meta describes where a page sits in the full result set
type Meta struct {
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
	TotalItems  int `json:"totalItems"`
	PageSize    int `json:"pageSize"`
}

// Page is one page of items plus its metadata
type Page[T any] struct {
	Data []T `json:"data"`
	Meta Meta `json:"meta"`
}

// Filter returns the items for which keep returns true, preserving order
func Filter[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

// SortBy returns a stably sorted copy of items. less compares in ascending
// order; order "desc" reverses it.
func SortBy[T any](items []T, order string, less func(a, b T) bool) []T {
	out := make([]T, len(items))
	copy(out, items)
	desc := strings.EqualFold(order, OrderDesc)
	sort.SliceStable(out, func(i, j int) bool {
		if desc {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return out
}

// Paginate slices items into the requested page. Pages are 1-based; a page
// past the end yields no items but still reports the totals.
func Paginate[T any](items []T, page, pageSize int) Page[T] {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if page <= 0 {
		page = 1
	}

	total := len(items)
	totalPages := total / pageSize
	if total%pageSize != 0 {
		totalPages++
	}

	// Compare in page units so huge values cannot overflow
	start := total
	if page-1 < totalPages {
		start = (page - 1) * pageSize
	}
	end := total
	if total-start > pageSize {
		end = start + pageSize
	}

	data := make([]T, end-start)
	copy(data, items[start:end])

	return Page[T]{
		Data: data,
		Meta: Meta{
			CurrentPage: page,
			TotalPages:  totalPages,
			TotalItems:  total,
			PageSize:    pageSize,
		},
	}
}

// ValidPageSize reports whether size is one of PageSizeOptions
func ValidPageSize(size int) bool {
	return slices.Contains(PageSizeOptions, size)
}

// ContainsFold reports whether substr is within any of fields, ignoring case.
// An empty substr matches everything.
func ContainsFold(substr string, fields ...string) bool {
	if substr == "" {
		return true
	}
	needle := strings.ToLower(substr)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}
