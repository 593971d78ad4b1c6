// Package filter compiles the untyped record filter vocabulary (s_f, s_v, s_o,
// sort) into a predicate group that a relational accessor can apply.
package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Combinator joins dynamic filter clauses.
type Combinator string

const (
	And Combinator = "and"
	Or  Combinator = "or"
)

// ParseCombinator maps the s_o parameter onto a Combinator. Anything other
// than "or" (case-insensitive) is AND.
func ParseCombinator(raw string) Combinator {
	if strings.EqualFold(strings.TrimSpace(raw), string(Or)) {
		return Or
	}
	return And
}

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Sort orders a result set by a single column.
type Sort struct {
	Column    string
	Direction Direction
}

// ParseSort parses "column,direction". A missing or unknown direction is
// ascending; a blank column yields no sort.
func ParseSort(raw string) *Sort {
	column, direction, _ := strings.Cut(raw, ",")
	column = strings.TrimSpace(column)
	if column == "" {
		return nil
	}
	s := &Sort{Column: column, Direction: Asc}
	if strings.EqualFold(strings.TrimSpace(direction), string(Desc)) {
		s.Direction = Desc
	}
	return s
}

// DirectEqualsColumns are the parameters that always become column = value,
// ANDed outside the dynamic group
var DirectEqualsColumns = []string{
	"brand_id",
	"material_id",
	"class_id",
	"treatment_id",
	"type_id",
	"supplier_id",
	"status",
}

// Request is the caller-owned filter input for one record query.
type Request struct {
	Fields     []string
	Values     []string
	Combinator Combinator
	// DirectEquals bypasses Fields/Values and is always ANDed.
	DirectEquals map[string]interface{}
	Sort         *Sort
	Page         int
	PageSize     int
	// With lists relations whose labels are attached to each returned record.
	With []string
}

// DecodeList decodes a JSON-encoded array parameter such as `["brand_id","description"]`.
// Scalars inside the array are stringified so numeric values (`[3,"blue"]`)
// pair with fields the same way string values do.
func DecodeList(raw string) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()

	var items []interface{}
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("decode filter list: %w", err)
	}

	out := make([]string, len(items))
	for i, item := range items {
		switch v := item.(type) {
		case nil:
			out[i] = ""
		case string:
			out[i] = v
		case json.Number:
			out[i] = v.String()
		case bool:
			out[i] = fmt.Sprintf("%t", v)
		default:
			return nil, fmt.Errorf("decode filter list: element %d is not a scalar", i)
		}
	}
	return out, nil
}
