package repositories

import (
	"context"

	"github.com/zatekoja/clinicretail/internal/domain/entities"
	"github.com/zatekoja/clinicretail/internal/domain/filter"
)

// Condition is an accessor-specific predicate built from a compiled clause.
// Only the RecordQuery that produced it may consume it.
type Condition interface{}

// RecordAccessor opens filterable queries against the relational store
type RecordAccessor interface {
	// Query starts a query over the named entity
	Query(entity string) (RecordQuery, error)

	// LabelsByIDs returns id → label for the given ids of an entity
	LabelsByIDs(ctx context.Context, entity string, ids []int64) (map[int64]string, error)
}

// RecordQuery applies a predicate tree, equality filters, sort and pagination.
// Build errors are validation errors; Paginate errors are storage errors.
type RecordQuery interface {
	// Match builds a direct-column condition
	Match(leaf filter.Leaf) (Condition, error)

	// Exists builds a "related collection has a row matching inner" condition
	Exists(relation string, inner filter.Leaf) (Condition, error)

	// All and Any combine conditions with AND and OR
	All(conds ...Condition) Condition
	Any(conds ...Condition) Condition

	// ApplyGroup adds cond as one grouped WHERE condition
	ApplyGroup(cond Condition)

	// ApplyEquals adds an unconditional AND column = value
	ApplyEquals(column string, value interface{}) error

	// ApplySort orders by a single column
	ApplySort(sort filter.Sort) error

	// Paginate runs the count and page queries
	Paginate(ctx context.Context, page, perPage int) (*entities.RecordPage, error)
}
