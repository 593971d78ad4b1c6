package filter

import "strings"

// RelationSeparator splits "relation.field" paths.
const RelationSeparator = "."

// FieldRef is a resolved field path.
type FieldRef struct {
	IsRelation bool
	Relation   string
	// InnerField is everything after the first separator. Deeper chains stay
	// literal; only one relation level is traversed.
	InnerField string
	// Column is set for direct columns.
	Column string
}

// ResolveRelation splits path on the first separator only.
func ResolveRelation(path string) FieldRef {
	relation, inner, found := strings.Cut(path, RelationSeparator)
	if !found {
		return FieldRef{Column: path}
	}
	return FieldRef{
		IsRelation: true,
		Relation:   relation,
		InnerField: inner,
	}
}
