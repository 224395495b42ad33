package remote

import (
	"fmt"
	"net/url"
	"strings"
)

// Filter operators understood by the query encoder.
const (
	OpEq    = "eq"
	OpILike = "ilike"
	OpIn    = "in"
	OpGte   = "gte"
	OpLte   = "lte"
)

// Filter is one column predicate.
type Filter struct {
	Column string
	Op     string
	Value  string
}

// In builds an in-list filter from ids.
func In(column string, ids []string) Filter {
	return Filter{Column: column, Op: OpIn, Value: "(" + strings.Join(ids, ",") + ")"}
}

// ILike builds a case-insensitive substring filter.
func ILike(column, needle string) Filter {
	return Filter{Column: column, Op: OpILike, Value: "*" + needle + "*"}
}

// Eq builds an equality filter.
func Eq(column, value string) Filter {
	return Filter{Column: column, Op: OpEq, Value: value}
}

// Query describes one Select call. Filters are ANDed; OrFilters are combined
// into a single OR group and ANDed with the rest.
type Query struct {
	Filters    []Filter
	OrFilters  []Filter
	OrderBy    string
	Descending bool
	Limit      int
	Offset     int
}

// Encode renders the query as URL parameters in the remote service's
// PostgREST-style syntax.
func (q Query) Encode() url.Values {
	v := url.Values{}
	for _, f := range q.Filters {
		v.Add(f.Column, f.Op+"."+f.Value)
	}
	if len(q.OrFilters) > 0 {
		parts := make([]string, 0, len(q.OrFilters))
		for _, f := range q.OrFilters {
			parts = append(parts, f.Column+"."+f.Op+"."+f.Value)
		}
		v.Set("or", "("+strings.Join(parts, ",")+")")
	}
	if q.OrderBy != "" {
		dir := "asc"
		if q.Descending {
			dir = "desc"
		}
		v.Set("order", q.OrderBy+"."+dir)
	}
	if q.Limit > 0 {
		v.Set("limit", fmt.Sprintf("%d", q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", fmt.Sprintf("%d", q.Offset))
	}
	return v
}
