package handlers

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/clinicretail/internal/domain/filter"
)

func TestParseFilterRequest_ListEncodings(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantFields []string
		wantValues []string
		wantOK     bool
	}{
		{
			name:       "json arrays",
			query:      `s_f=["brand_id","description"]&s_v=[3,"blue"]`,
			wantFields: []string{"brand_id", "description"},
			wantValues: []string{"3", "blue"},
			wantOK:     true,
		},
		{
			name:       "bracketed repeats",
			query:      `s_f[]=brand.name&s_f[]=status&s_v[]=acme&s_v[]=active`,
			wantFields: []string{"brand.name", "status"},
			wantValues: []string{"acme", "active"},
			wantOK:     true,
		},
		{
			name:       "plain repeats",
			query:      `s_f=name&s_f=sku&s_v=frame&s_v=A1`,
			wantFields: []string{"name", "sku"},
			wantValues: []string{"frame", "A1"},
			wantOK:     true,
		},
		{
			name:       "single plain value",
			query:      `s_f=description&s_v=blue`,
			wantFields: []string{"description"},
			wantValues: []string{"blue"},
			wantOK:     true,
		},
		{
			name:   "absent",
			query:  ``,
			wantOK: true,
		},
		{
			name:   "malformed json drops both lists",
			query:  `s_f=["brand_id"]&s_v=[3`,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)

			req, ok := ParseFilterRequest(q)

			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantFields, req.Fields)
			assert.Equal(t, tt.wantValues, req.Values)
		})
	}
}

func TestParseFilterRequest_Scalars(t *testing.T) {
	q := url.Values{
		"s_o":      {"OR"},
		"sort":     {"name"},
		"page":     {"3"},
		"per_page": {"abc"},
		"brand_id": {" 4 "},
		"status":   {""},
		"colour":   {"red"},
		"with":     {"brand, material", "supplier"},
	}

	req, ok := ParseFilterRequest(q)

	require.True(t, ok)
	assert.Equal(t, filter.Or, req.Combinator)
	require.NotNil(t, req.Sort)
	assert.Equal(t, filter.Sort{Column: "name", Direction: filter.Asc}, *req.Sort)
	assert.Equal(t, 3, req.Page)
	assert.Equal(t, 0, req.PageSize)
	assert.Equal(t, map[string]interface{}{"brand_id": "4"}, req.DirectEquals)
	assert.Equal(t, []string{"brand", "material", "supplier"}, req.With)
}
