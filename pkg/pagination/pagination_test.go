package pagination

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 20, p.PerPage)
}

func TestFromRequest_CustomValues(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/products?page=3&per_page=50", nil)
	p := FromRequest(req)

	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 50, p.PerPage)
}

func TestFromRequest_InvalidValuesFallBack(t *testing.T) {
	for _, q := range []string{"page=-1", "page=0", "page=abc&per_page=500", "per_page=0"} {
		req := httptest.NewRequest(http.MethodGet, "/api/products?"+q, nil)
		p := FromRequest(req)
		assert.Equal(t, DefaultParams(), p, q)
	}
}

func TestParams_Apply(t *testing.T) {
	q := url.Values{}
	Params{Page: 2, PerPage: 500}.Apply(q)

	assert.Equal(t, "2", q.Get("page"))
	assert.Equal(t, "20", q.Get("pageSize"))
}

func TestResult_Navigation(t *testing.T) {
	r := Result[string]{Items: []string{"a"}, TotalCount: 41, Page: 2, PerPage: 20}

	assert.Equal(t, 3, r.TotalPages())
	assert.True(t, r.HasNext())
	assert.True(t, r.HasPrev())

	last := Result[string]{TotalCount: 40, Page: 2, PerPage: 20}
	assert.False(t, last.HasNext())
	assert.Equal(t, 0, Result[string]{}.TotalPages())
}
