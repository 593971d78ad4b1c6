package filter

import (
	"fmt"
	"sort"
	"strings"
)

// Diagnostics describes a resolved query for logging. It is never used for
// control flow.
type Diagnostics struct {
	Entity      string
	Predicate   string
	BoundValues []string
}

// Describe renders g with ? placeholders and collects its bound literals.
// A nil group yields an empty description.
func Describe(g *Group) Diagnostics {
	var d Diagnostics
	if g == nil {
		return d
	}

	predicate, _ := Fold(g,
		func(n Node) (string, error) {
			switch v := n.(type) {
			case *Leaf:
				return d.leaf(v.Path, v.Operator, v.Value), nil
			case *RelationExists:
				return fmt.Sprintf("EXISTS(%s: %s)", v.Relation, d.leaf(v.Inner.Path, v.Inner.Operator, v.Inner.Value)), nil
			}
			return "", nil
		},
		func(parts ...string) string { return "(" + strings.Join(parts, " AND ") + ")" },
		func(parts ...string) string { return "(" + strings.Join(parts, " OR ") + ")" },
	)
	d.Predicate = predicate
	return d
}

// WithEquals appends direct-equality conditions in column order.
func (d Diagnostics) WithEquals(equals map[string]interface{}) Diagnostics {
	if len(equals) == 0 {
		return d
	}
	columns := make([]string, 0, len(equals))
	for column := range equals {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	parts := make([]string, 0, len(columns)+1)
	if d.Predicate != "" {
		parts = append(parts, d.Predicate)
	}
	for _, column := range columns {
		parts = append(parts, d.leaf(column, Exact, equals[column]))
	}
	d.Predicate = strings.Join(parts, " AND ")
	return d
}

// Bindings joins the bound values the way they would appear inlined.
func (d Diagnostics) Bindings() string {
	return strings.Join(d.BoundValues, ", ")
}

func (d *Diagnostics) leaf(path string, op Operator, value interface{}) string {
	if op == Exact {
		d.BoundValues = append(d.BoundValues, literal(value))
		return path + " = ?"
	}
	d.BoundValues = append(d.BoundValues, literal(fmt.Sprintf("%%%v%%", value)))
	return path + " ILIKE ?"
}

// literal leaves numbers bare and single-quotes everything else.
func literal(value interface{}) string {
	switch v := value.(type) {
	case int, int32, int64, uint, uint32, uint64, float32, float64:
		return fmt.Sprintf("%v", v)
	case string:
		if _, ok := parseNumber(v); ok {
			return strings.TrimSpace(v)
		}
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case nil:
		return "NULL"
	default:
		return "'" + strings.ReplaceAll(fmt.Sprintf("%v", v), "'", "''") + "'"
	}
}
