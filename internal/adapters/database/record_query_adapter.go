package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/lib/pq"
	"github.com/zatekoja/clinicretail/internal/domain/entities"
	"github.com/zatekoja/clinicretail/internal/domain/filter"
	"github.com/zatekoja/clinicretail/internal/domain/repositories"
	"github.com/zatekoja/clinicretail/internal/infrastructure/clients/sqldb"
	apperrors "github.com/zatekoja/clinicretail/pkg/errors"
)

// RecordQueryAdapter implements RecordAccessor with goqu-built SQL
type RecordQueryAdapter struct {
	client  *sqldb.Client
	db      *goqu.Database
	catalog *entities.Catalog
}

// NewRecordQueryAdapter creates a new record query adapter
func NewRecordQueryAdapter(client *sqldb.Client, catalog *entities.Catalog) *RecordQueryAdapter {
	return &RecordQueryAdapter{
		client:  client,
		db:      goqu.New(client.Dialect(), client.DB()),
		catalog: catalog,
	}
}

var _ repositories.RecordAccessor = (*RecordQueryAdapter)(nil)

// Query starts a query over the named entity
func (a *RecordQueryAdapter) Query(entity string) (repositories.RecordQuery, error) {
	schema, ok := a.catalog.Entity(entity)
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("unknown entity %q", entity))
	}
	return &recordQuery{adapter: a, schema: schema}, nil
}

// LabelsByIDs returns id → label for the given ids of an entity
func (a *RecordQueryAdapter) LabelsByIDs(ctx context.Context, entity string, ids []int64) (map[int64]string, error) {
	schema, ok := a.catalog.Entity(entity)
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("unknown entity %q", entity))
	}
	labels := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return labels, nil
	}

	query, args, err := a.db.From(schema.Table).
		Select(goqu.C("id"), goqu.C(schema.LabelColumn)).
		Where(goqu.C("id").In(ids)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build label query", err)
	}

	rows, err := a.client.DB().QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, storageError(fmt.Sprintf("failed to load %s labels", entity), err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var label *string
		if err := rows.Scan(&id, &label); err != nil {
			return nil, storageError(fmt.Sprintf("failed to scan %s label", entity), err)
		}
		if label != nil {
			labels[id] = *label
		}
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(fmt.Sprintf("error iterating %s labels", entity), err)
	}
	return labels, nil
}

type recordQuery struct {
	adapter *RecordQueryAdapter
	schema  *entities.EntitySchema
	where   []exp.Expression
	order   []exp.OrderedExpression
}

func (q *recordQuery) column(name string) (exp.IdentifierExpression, error) {
	if !q.schema.HasColumn(name) {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown column %q on %s", name, q.schema.Name))
	}
	return goqu.T(q.schema.Table).Col(name), nil
}

// Match builds a direct-column condition
func (q *recordQuery) Match(leaf filter.Leaf) (repositories.Condition, error) {
	col, err := q.column(leaf.Path)
	if err != nil {
		return nil, err
	}
	return leafExpression(col, leaf), nil
}

// Exists builds an EXISTS sub-select over the related table
func (q *recordQuery) Exists(relation string, inner filter.Leaf) (repositories.Condition, error) {
	rel, ok := q.schema.Relation(relation)
	if !ok {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown relation %q on %s", relation, q.schema.Name))
	}
	related, ok := q.adapter.catalog.Entity(rel.Entity)
	if !ok {
		return nil, apperrors.NewInternalError(fmt.Sprintf("relation %s points at unregistered entity %s", relation, rel.Entity), nil)
	}
	if !related.HasColumn(inner.Path) {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown column %q on %s", inner.Path, related.Name))
	}

	// Aliased so self-referencing relations stay unambiguous.
	alias := "rel_" + rel.Name
	sub := q.adapter.db.From(goqu.T(related.Table).As(alias)).
		Select(goqu.L("1")).
		Where(
			goqu.T(alias).Col(rel.RemoteKey).Eq(goqu.T(q.schema.Table).Col(rel.LocalKey)),
			leafExpression(goqu.T(alias).Col(inner.Path), inner),
		)

	return goqu.L("EXISTS ?", sub), nil
}

func leafExpression(col exp.IdentifierExpression, leaf filter.Leaf) exp.Expression {
	if leaf.Operator == filter.Exact {
		return col.Eq(leaf.Value)
	}
	// Cast so numeric and date columns can be substring-matched too.
	return goqu.Cast(col, "TEXT").ILike(fmt.Sprintf("%%%v%%", leaf.Value))
}

// All combines conditions with AND
func (q *recordQuery) All(conds ...repositories.Condition) repositories.Condition {
	return goqu.And(expressions(conds)...)
}

// Any combines conditions with OR
func (q *recordQuery) Any(conds ...repositories.Condition) repositories.Condition {
	return goqu.Or(expressions(conds)...)
}

func expressions(conds []repositories.Condition) []exp.Expression {
	out := make([]exp.Expression, 0, len(conds))
	for _, c := range conds {
		if e, ok := c.(exp.Expression); ok {
			out = append(out, e)
		}
	}
	return out
}

// ApplyGroup adds cond as one grouped WHERE condition
func (q *recordQuery) ApplyGroup(cond repositories.Condition) {
	if e, ok := cond.(exp.Expression); ok {
		q.where = append(q.where, goqu.And(e))
	}
}

// ApplyEquals adds an unconditional AND column = value
func (q *recordQuery) ApplyEquals(column string, value interface{}) error {
	col, err := q.column(column)
	if err != nil {
		return err
	}
	q.where = append(q.where, col.Eq(value))
	return nil
}

// ApplySort orders by a single column
func (q *recordQuery) ApplySort(sort filter.Sort) error {
	col, err := q.column(sort.Column)
	if err != nil {
		return err
	}
	if sort.Direction == filter.Desc {
		q.order = append(q.order, col.Desc())
	} else {
		q.order = append(q.order, col.Asc())
	}
	return nil
}

// Paginate counts the full filtered set, then fetches one page of it
func (q *recordQuery) Paginate(ctx context.Context, page, perPage int) (*entities.RecordPage, error) {
	db := q.adapter.client.DB()
	base := q.adapter.db.From(q.schema.Table).Where(q.where...)

	countSQL, countArgs, err := base.Select(goqu.COUNT("*")).Prepared(true).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build count query", err)
	}

	var total int64
	if err := db.QueryRowxContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, storageError(fmt.Sprintf("failed to count %s", q.schema.Name), err)
	}

	columns := make([]interface{}, 0, len(q.schema.Columns))
	for _, c := range q.schema.Columns {
		columns = append(columns, goqu.T(q.schema.Table).Col(c))
	}

	pageSQL, pageArgs, err := base.Select(columns...).
		Order(q.order...).
		Limit(uint(perPage)).
		Offset(uint((page - 1) * perPage)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build page query", err)
	}

	rows, err := db.QueryxContext(ctx, pageSQL, pageArgs...)
	if err != nil {
		return nil, storageError(fmt.Sprintf("failed to query %s", q.schema.Name), err)
	}
	defer rows.Close()

	records := make([]entities.Record, 0, perPage)
	for rows.Next() {
		row := make(map[string]interface{}, len(q.schema.Columns))
		if err := rows.MapScan(row); err != nil {
			return nil, storageError(fmt.Sprintf("failed to scan %s", q.schema.Name), err)
		}
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
		records = append(records, entities.Record(row))
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(fmt.Sprintf("error iterating %s", q.schema.Name), err)
	}

	return entities.NewRecordPage(records, total, page, perPage), nil
}

func storageError(message string, err error) *apperrors.AppError {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		message = fmt.Sprintf("%s (sqlstate %s)", message, pqErr.Code)
	}
	return apperrors.NewStorageError(message, err)
}
