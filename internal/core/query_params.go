// internal/core/query_params.go
package core

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Default and limit constants for pagination
const (
	DefaultLimit = 100
	MaxLimit     = 1000
	DefaultOrder = "asc"
)

// ReservedParams contains query parameter names reserved for pagination and sorting.
// These should not be treated as column filters.
var ReservedParams = map[string]bool{
	"skip":    true,
	"limit":   true,
	"sort_by": true,
	"order":   true,
}

// Filter is a single equality constraint taken from the query string.
type Filter struct {
	Column string
	Value  string
}

// ListQueryOptions holds parsed query parameters for list endpoints
type ListQueryOptions struct {
	// Pagination
	Skip  int
	Limit int

	// Sorting
	SortBy    string
	SortOrder string // "asc" or "desc"

	// Equality filters, ANDed. Keys are not checked against any schema here.
	Filters []Filter
}

// ParseListQueryOptions extracts pagination, sorting and filter options from query parameters.
// A limit above MaxLimit is clamped rather than rejected. sort_by is never an
// error; an unknown column is ignored at query time.
func ParseListQueryOptions(queryParams url.Values) (*ListQueryOptions, error) {
	opts := &ListQueryOptions{
		Skip:      0,
		Limit:     DefaultLimit,
		SortOrder: DefaultOrder,
	}

	// Parse limit
	if limitStr := queryParams.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, fmt.Errorf("invalid 'limit' parameter: must be an integer")
		}
		if limit < 1 {
			return nil, fmt.Errorf("invalid 'limit' parameter: must be at least 1")
		}
		opts.Limit = ClampLimit(limit)
	}

	// Parse skip
	if skipStr := queryParams.Get("skip"); skipStr != "" {
		skip, err := strconv.Atoi(skipStr)
		if err != nil {
			return nil, fmt.Errorf("invalid 'skip' parameter: must be an integer")
		}
		if skip < 0 {
			return nil, fmt.Errorf("invalid 'skip' parameter: must be non-negative")
		}
		opts.Skip = skip
	}

	// Sort column; callers drop it unless it names a column of the table.
	opts.SortBy = queryParams.Get("sort_by")

	// Parse sort order
	if order := queryParams.Get("order"); order != "" {
		lowerOrder := strings.ToLower(order)
		if lowerOrder != "asc" && lowerOrder != "desc" {
			return nil, fmt.Errorf("invalid 'order' parameter: must be 'asc' or 'desc'")
		}
		opts.SortOrder = lowerOrder
	}

	// Everything else is a candidate equality filter. Sorted for stable SQL.
	keys := make([]string, 0, len(queryParams))
	for key := range queryParams {
		if IsReservedParam(key) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		values := queryParams[key]
		if len(values) == 0 {
			continue
		}
		opts.Filters = append(opts.Filters, Filter{Column: key, Value: values[0]})
	}

	return opts, nil
}

// ClampLimit bounds a requested page size to [1, MaxLimit].
func ClampLimit(limit int) int {
	switch {
	case limit < 1:
		return 1
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// IsReservedParam checks if a query parameter name is reserved for pagination/sorting.
func IsReservedParam(key string) bool {
	return ReservedParams[strings.ToLower(key)]
}
