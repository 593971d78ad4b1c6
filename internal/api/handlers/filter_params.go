package handlers

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/zatekoja/clinicretail/internal/domain/filter"
)

// ParseFilterRequest reads the record filter vocabulary from query parameters:
//
//	s_f, s_v    JSON arrays (s_f=["brand_id","description"]), repeated s_f[]/s_v[]
//	            parameters, or a single plain value
//	s_o         "and" (default) or "or"
//	sort        "column,direction"
//	page, per_page
//	with        comma separated relations whose labels are attached
//
// plus the direct-equality columns (brand_id, status, ...). Malformed dynamic
// lists are dropped, never rejected.
func ParseFilterRequest(q url.Values) (filter.Request, bool) {
	req := filter.Request{
		Combinator:   filter.ParseCombinator(q.Get("s_o")),
		Sort:         filter.ParseSort(q.Get("sort")),
		Page:         atoi(q.Get("page")),
		PageSize:     atoi(q.Get("per_page")),
		DirectEquals: make(map[string]interface{}),
	}

	fields, fieldsOK := listParam(q, "s_f")
	values, valuesOK := listParam(q, "s_v")
	wellFormed := fieldsOK && valuesOK
	if wellFormed {
		req.Fields, req.Values = fields, values
	}

	for _, column := range filter.DirectEqualsColumns {
		if v := strings.TrimSpace(q.Get(column)); v != "" {
			req.DirectEquals[column] = v
		}
	}

	for _, raw := range append(q["with"], q["with[]"]...) {
		for _, rel := range strings.Split(raw, ",") {
			if rel = strings.TrimSpace(rel); rel != "" {
				req.With = append(req.With, rel)
			}
		}
	}
	return req, wellFormed
}

// listParam returns ok=false only when a JSON-encoded list fails to decode
func listParam(q url.Values, name string) ([]string, bool) {
	if items, ok := q[name+"[]"]; ok {
		return items, true
	}
	items := q[name]
	switch {
	case len(items) == 0:
		return nil, true
	case len(items) > 1:
		return items, true
	}

	raw := strings.TrimSpace(items[0])
	if !strings.HasPrefix(raw, "[") {
		return []string{items[0]}, true
	}
	decoded, err := filter.DecodeList(raw)
	if err != nil {
		return nil, false
	}
	return decoded, true
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
