package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func paramsFor(query string) Params {
	return FromRequest(httptest.NewRequest(http.MethodGet, "/products"+query, nil))
}

func TestFromRequest_Defaults(t *testing.T) {
	p := paramsFor("")
	assert.Equal(t, Params{Page: 1, PerPage: 20, Offset: 0}, p)
}

func TestFromRequest_ExplicitValues(t *testing.T) {
	p := paramsFor("?page=3&per_page=50")
	assert.Equal(t, Params{Page: 3, PerPage: 50, Offset: 100}, p)
}

func TestFromRequest_BadValuesFallBack(t *testing.T) {
	cases := map[string]string{
		"negative page":    "?page=-1",
		"zero page":        "?page=0",
		"non-numeric page": "?page=abc",
		"zero per_page":    "?per_page=0",
		"over the cap":     "?per_page=200",
	}
	for name, query := range cases {
		t.Run(name, func(t *testing.T) {
			p := paramsFor(query)
			assert.Equal(t, 1, p.Page)
			assert.Equal(t, 20, p.PerPage)
		})
	}
}

func TestFromRequest_PerPageCapIsInclusive(t *testing.T) {
	p := paramsFor("?per_page=100")
	assert.Equal(t, 100, p.PerPage)
}

func TestFromRequest_Offset(t *testing.T) {
	cases := []struct {
		query  string
		offset int
	}{
		{"?page=1&per_page=10", 0},
		{"?page=2&per_page=10", 10},
		{"?page=3&per_page=25", 50},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.offset, paramsFor(tc.query).Offset, tc.query)
	}
}
