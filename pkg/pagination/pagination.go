package pagination

import (
	"net/http"
	"net/url"
	"strconv"
)

// MaxPerPage caps the page size requested from the backend.
const MaxPerPage = 100

// Params holds pagination parameters.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"perPage"`
}

// DefaultParams returns sensible pagination defaults.
func DefaultParams() Params {
	return Params{
		Page:    1,
		PerPage: 20,
	}
}

// Normalize replaces out-of-range values with defaults.
func (p Params) Normalize() Params {
	d := DefaultParams()
	if p.Page < 1 {
		p.Page = d.Page
	}
	if p.PerPage < 1 || p.PerPage > MaxPerPage {
		p.PerPage = d.PerPage
	}
	return p
}

// Apply writes the parameters onto a backend query string.
func (p Params) Apply(q url.Values) {
	p = p.Normalize()
	q.Set("page", strconv.Itoa(p.Page))
	q.Set("pageSize", strconv.Itoa(p.PerPage))
}

// FromRequest extracts pagination parameters from an HTTP request.
func FromRequest(r *http.Request) Params {
	p := DefaultParams()

	if page := r.URL.Query().Get("page"); page != "" {
		if v, err := strconv.Atoi(page); err == nil && v > 0 {
			p.Page = v
		}
	}

	if perPage := r.URL.Query().Get("per_page"); perPage != "" {
		if v, err := strconv.Atoi(perPage); err == nil && v > 0 && v <= MaxPerPage {
			p.PerPage = v
		}
	}

	return p
}

// Result is a page of items as returned by the backend.
type Result[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"totalCount"`
	Page       int `json:"page"`
	PerPage    int `json:"pageSize"`
}

// TotalPages returns the number of pages for TotalCount.
func (r Result[T]) TotalPages() int {
	if r.PerPage <= 0 {
		return 0
	}
	pages := r.TotalCount / r.PerPage
	if r.TotalCount%r.PerPage > 0 {
		pages++
	}
	return pages
}

// HasNext reports whether a later page exists.
func (r Result[T]) HasNext() bool {
	return r.Page < r.TotalPages()
}

// HasPrev reports whether an earlier page exists.
func (r Result[T]) HasPrev() bool {
	return r.Page > 1
}
