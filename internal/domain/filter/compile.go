package filter

// Node is a compiled clause: a *Leaf or a *RelationExists.
type Node interface {
	isNode()
}

// Leaf is a condition on a direct column.
type Leaf struct {
	Path     string
	Operator Operator
	// Value is int64/float64 for Exact leaves and the raw string for Contains.
	Value interface{}
}

// RelationExists matches records with at least one related row satisfying Inner.
type RelationExists struct {
	Relation string
	Inner    Leaf
}

func (*Leaf) isNode()           {}
func (*RelationExists) isNode() {}

// Group is one combinator applied across all dynamic clauses. The first clause
// is the anchor; Tail holds the following clauses in request order.
//
// Evaluation shape:
//
//	AND:                a AND b AND c ...
//	OR, one tail item:  a OR b
//	OR, longer tail:    a AND (b OR c ...)
type Group struct {
	Combinator Combinator
	Anchor     Node
	Tail       []Node
}

// Clauses returns every clause in request order.
func (g *Group) Clauses() []Node {
	out := make([]Node, 0, len(g.Tail)+1)
	out = append(out, g.Anchor)
	return append(out, g.Tail...)
}

// Len is the number of clauses in the group.
func (g *Group) Len() int {
	return len(g.Tail) + 1
}

// Compile pairs fields and values positionally. It returns nil (no dynamic
// filter) when fields is empty or the two slices differ in length.
func Compile(fields, values []string, combinator Combinator) *Group {
	if len(fields) == 0 || len(fields) != len(values) {
		return nil
	}
	if combinator != Or {
		combinator = And
	}

	g := &Group{Combinator: combinator}
	for i := range fields {
		node := compileNode(fields[i], values[i])
		if i == 0 {
			g.Anchor = node
			continue
		}
		g.Tail = append(g.Tail, node)
	}
	return g
}

// CompileEncoded decodes JSON-encoded field and value arrays before compiling.
// Any decode failure yields nil rather than an error.
func CompileEncoded(fieldsJSON, valuesJSON string, combinator Combinator) *Group {
	fields, err := DecodeList(fieldsJSON)
	if err != nil {
		return nil
	}
	values, err := DecodeList(valuesJSON)
	if err != nil {
		return nil
	}
	return Compile(fields, values, combinator)
}

func compileNode(path, value string) Node {
	ref := ResolveRelation(path)
	if ref.IsRelation {
		// Relation leaves are always fuzzy, whatever the inner column is called.
		return &RelationExists{
			Relation: ref.Relation,
			Inner:    Leaf{Path: ref.InnerField, Operator: Contains, Value: value},
		}
	}

	op := SelectOperator(path, value)
	leaf := &Leaf{Path: ref.Column, Operator: op, Value: value}
	if op == Exact {
		leaf.Value = Scalar(value)
	}
	return leaf
}

// Fold evaluates g bottom-up: node maps each clause, and/or combine results
// following the group's evaluation shape.
func Fold[T any](g *Group, node func(Node) (T, error), and, or func(...T) T) (T, error) {
	var zero T

	anchor, err := node(g.Anchor)
	if err != nil {
		return zero, err
	}
	if len(g.Tail) == 0 {
		return anchor, nil
	}

	tail := make([]T, 0, len(g.Tail))
	for _, n := range g.Tail {
		v, err := node(n)
		if err != nil {
			return zero, err
		}
		tail = append(tail, v)
	}

	if g.Combinator == Or {
		if len(tail) == 1 {
			return or(anchor, tail[0]), nil
		}
		return and(anchor, or(tail...)), nil
	}
	return and(append([]T{anchor}, tail...)...), nil
}
