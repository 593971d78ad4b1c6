// Package facets loads facet option lists (brand, material, class, ...) for
// filter widgets. It debounces typed input, collapses duplicate requests,
// keeps a session cache and coerces whatever the API returns into options.
package facets

import "strings"

// Option is one selectable facet value
type Option struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

// Key identifies one facet search. Queries are compared trimmed and case-folded.
type Key struct {
	Facet string
	Query string
}

// NewKey builds the normalized key for a facet search
func NewKey(facet, query string) Key {
	return Key{Facet: facet, Query: strings.ToLower(strings.TrimSpace(query))}
}

func (k Key) String() string {
	return k.Facet + "?" + k.Query
}
