package pagination

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultLimit is used when the client omits limit.
	DefaultLimit = 10
	// DefaultMaxLimit caps limit so a single request cannot scan a collection.
	DefaultMaxLimit = 100
)

// Order describes a single sort clause.
type Order struct {
	Field string
	Desc  bool
}

// Params is a 1-based page window over a listing.
type Params struct {
	Page  int
	Limit int
	Sort  []Order
}

// Skip is the number of items before the window.
func (p Params) Skip() int {
	if p.Page <= 1 || p.Limit <= 0 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// Options control how Parse behaves for a given handler.
type Options struct {
	DefaultLimit      int
	MaxLimit          int
	AllowedSortFields []string
}

var (
	ErrInvalidPage  = errors.New("pagination: invalid page")
	ErrInvalidLimit = errors.New("pagination: invalid limit")
	ErrInvalidSort  = errors.New("pagination: invalid sort")
)

// FromRequest parses page, limit and sort from the query string.
func FromRequest(r *http.Request, opts Options) (Params, error) {
	if r == nil {
		return Params{}, errors.New("pagination: nil request")
	}
	return Parse(r.URL.Query(), opts)
}

// Parse normalises query values. Limits above the maximum are clamped rather than rejected.
func Parse(values url.Values, opts Options) (Params, error) {
	if values == nil {
		values = url.Values{}
	}
	defaultLimit := opts.DefaultLimit
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	maxLimit := opts.MaxLimit
	if maxLimit <= 0 {
		maxLimit = DefaultMaxLimit
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}

	page, err := positiveInt(values.Get("page"), 1)
	if err != nil {
		return Params{}, fmt.Errorf("%w: %v", ErrInvalidPage, err)
	}
	limit, err := positiveInt(values.Get("limit"), defaultLimit)
	if err != nil {
		return Params{}, fmt.Errorf("%w: %v", ErrInvalidLimit, err)
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	sort, err := parseSort(values.Get("sort"), opts.AllowedSortFields)
	if err != nil {
		return Params{}, err
	}
	return Params{Page: page, Limit: limit, Sort: sort}, nil
}

// Pages returns ceil(total/limit); an empty listing still has zero pages.
func Pages(total, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// Window slices items already loaded in memory to the page window.
func Window[T any](items []T, p Params) []T {
	skip := p.Skip()
	if skip >= len(items) {
		return []T{}
	}
	end := len(items)
	if p.Limit > 0 && skip+p.Limit < end {
		end = skip + p.Limit
	}
	return items[skip:end]
}

func positiveInt(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("must be >= 1, got %d", n)
	}
	return n, nil
}

// parseSort accepts "field" or "-field" (descending), comma separated.
func parseSort(raw string, allowed []string) ([]Order, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, field := range allowed {
		allowedSet[field] = struct{}{}
	}
	var orders []Order
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		desc := strings.HasPrefix(part, "-")
		field := strings.TrimPrefix(part, "-")
		if _, ok := allowedSet[field]; !ok {
			return nil, fmt.Errorf("%w: field %q not sortable", ErrInvalidSort, field)
		}
		orders = append(orders, Order{Field: field, Desc: desc})
	}
	return orders, nil
}
