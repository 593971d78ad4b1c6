package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zatekoja/clinicretail/internal/domain/entities"
	"github.com/zatekoja/clinicretail/internal/domain/filter"
	"github.com/zatekoja/clinicretail/internal/domain/repositories"
	"github.com/zatekoja/clinicretail/internal/infrastructure/observability"
	"github.com/zatekoja/clinicretail/internal/query/loaders"
	apperrors "github.com/zatekoja/clinicretail/pkg/errors"
)

// DiagnosticsHook receives the resolved predicate of every executed query
type DiagnosticsHook func(ctx context.Context, d filter.Diagnostics)

// LogDiagnostics writes the resolved predicate to the request logger
func LogDiagnostics(ctx context.Context, d filter.Diagnostics) {
	observability.LoggerFromContext(ctx).Info().
		Str("entity", d.Entity).
		Str("predicate", d.Predicate).
		Str("bindings", d.Bindings()).
		Msg("filter_diagnostics")
}

// RecordQueryOptions tunes a RecordQueryService
type RecordQueryOptions struct {
	DefaultPageSize int
	MaxPageSize     int
	// Diagnostics is called before each query runs; nil disables it.
	Diagnostics DiagnosticsHook
	Metrics     *observability.Metrics
}

// RecordQueryService executes filtered, sorted and paginated record queries
type RecordQueryService struct {
	accessor        repositories.RecordAccessor
	catalog         *entities.Catalog
	defaultPageSize int
	maxPageSize     int
	diagnostics     DiagnosticsHook
	metrics         *observability.Metrics
	directEquals    map[string]struct{}
}

// NewRecordQueryService creates a new record query service
func NewRecordQueryService(
	accessor repositories.RecordAccessor,
	catalog *entities.Catalog,
	opts RecordQueryOptions,
) *RecordQueryService {
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = 15
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = 100
	}
	if opts.DefaultPageSize > opts.MaxPageSize {
		opts.DefaultPageSize = opts.MaxPageSize
	}

	allowed := make(map[string]struct{}, len(filter.DirectEqualsColumns))
	for _, c := range filter.DirectEqualsColumns {
		allowed[c] = struct{}{}
	}

	return &RecordQueryService{
		accessor:        accessor,
		catalog:         catalog,
		defaultPageSize: opts.DefaultPageSize,
		maxPageSize:     opts.MaxPageSize,
		diagnostics:     opts.Diagnostics,
		metrics:         opts.Metrics,
		directEquals:    allowed,
	}
}

// Execute runs req against entity and returns one page of matching records.
// Malformed dynamic filters (mismatched or undecodable field/value lists) are
// dropped, never rejected. Unknown columns are validation errors and accessor
// failures surface as storage errors without retry.
func (s *RecordQueryService) Execute(ctx context.Context, entity string, req filter.Request) (*entities.RecordPage, error) {
	ctx, span := observability.StartSpan(ctx, "RecordQueryService.Execute")
	defer span.End()
	observability.SetSpanAttributes(span,
		attribute.String("filter.entity", entity),
		attribute.Int("filter.clauses", len(req.Fields)),
	)

	start := time.Now()
	page, err := s.execute(ctx, entity, req)
	observability.RecordFilterQuery(ctx, s.metrics, entity, time.Since(start), err)
	observability.RecordError(span, err)
	return page, err
}

func (s *RecordQueryService) execute(ctx context.Context, entity string, req filter.Request) (*entities.RecordPage, error) {
	logger := observability.LoggerFromContext(ctx)

	schema, ok := s.catalog.Entity(entity)
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("unknown entity %q", entity))
	}
	with, err := s.labelRelations(schema, req.With)
	if err != nil {
		return nil, err
	}

	query, err := s.accessor.Query(entity)
	if err != nil {
		return nil, err
	}

	group := filter.Compile(req.Fields, req.Values, req.Combinator)
	if group == nil && len(req.Fields) != len(req.Values) {
		logger.Debug().
			Int("fields", len(req.Fields)).
			Int("values", len(req.Values)).
			Msg("Ignoring dynamic filter with mismatched field and value lists")
	}
	if group != nil {
		cond, err := filter.Fold(group, func(n filter.Node) (repositories.Condition, error) {
			switch v := n.(type) {
			case *filter.Leaf:
				return query.Match(*v)
			case *filter.RelationExists:
				return query.Exists(v.Relation, v.Inner)
			}
			return nil, apperrors.NewInternalError(fmt.Sprintf("unsupported filter node %T", n), nil)
		}, query.All, query.Any)
		if err != nil {
			return nil, err
		}
		query.ApplyGroup(cond)
	}

	equals := s.allowedEquals(req.DirectEquals)
	columns := make([]string, 0, len(equals))
	for column := range equals {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	for _, column := range columns {
		if err := query.ApplyEquals(column, equals[column]); err != nil {
			return nil, err
		}
	}

	if req.Sort != nil {
		if err := query.ApplySort(*req.Sort); err != nil {
			return nil, err
		}
	}

	page, perPage := s.pagination(req.Page, req.PageSize)

	if s.diagnostics != nil {
		d := filter.Describe(group).WithEquals(equals)
		d.Entity = entity
		s.diagnostics(ctx, d)
	}

	result, err := query.Paginate(ctx, page, perPage)
	if err != nil {
		return nil, storageError(entity, err)
	}

	if len(with) > 0 {
		s.attachLabels(ctx, result, with)
	}
	return result, nil
}

// allowedEquals drops direct parameters outside the allow-list and empty values
func (s *RecordQueryService) allowedEquals(params map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(params))
	for column, value := range params {
		if _, ok := s.directEquals[column]; !ok {
			continue
		}
		if str, ok := value.(string); ok {
			if str == "" {
				continue
			}
			value = filter.Scalar(str)
		}
		out[column] = value
	}
	return out
}

// pagination clamps page and page size to sane values
func (s *RecordQueryService) pagination(page, perPage int) (int, int) {
	if perPage <= 0 {
		perPage = s.defaultPageSize
	}
	if perPage > s.maxPageSize {
		perPage = s.maxPageSize
	}
	if page < 1 {
		page = 1
	}
	if maxPage := math.MaxInt32 / perPage; page > maxPage {
		page = maxPage
	}
	return page, perPage
}

func (s *RecordQueryService) labelRelations(schema *entities.EntitySchema, names []string) ([]entities.Relation, error) {
	relations := make([]entities.Relation, 0, len(names))
	for _, name := range names {
		rel, ok := schema.Relation(name)
		if !ok {
			return nil, apperrors.NewValidationError(fmt.Sprintf("unknown relation %q on %s", name, schema.Name))
		}
		if rel.RemoteKey != "id" {
			return nil, apperrors.NewValidationError(fmt.Sprintf("relation %q has no single label to attach", name))
		}
		relations = append(relations, rel)
	}
	return relations, nil
}

// attachLabels sets <relation>_label on each record. Label lookups are
// best-effort: failures are logged and the page is returned as is.
func (s *RecordQueryService) attachLabels(ctx context.Context, page *entities.RecordPage, relations []entities.Relation) {
	l := loaders.For(ctx)
	if l == nil {
		l = loaders.NewLoaders(s.accessor)
	}
	logger := observability.LoggerFromContext(ctx)

	for _, rel := range relations {
		ids := make([]int64, 0, len(page.Data))
		seen := make(map[int64]struct{}, len(page.Data))
		for _, record := range page.Data {
			id, ok := record.Int64(rel.LocalKey)
			if !ok {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}

		labels, err := l.LoadLabels(ctx, rel.Entity, ids)
		if err != nil {
			logger.Warn().Err(err).Str("relation", rel.Name).Msg("Failed to load relation labels")
		}
		for _, record := range page.Data {
			id, ok := record.Int64(rel.LocalKey)
			if !ok {
				continue
			}
			if label, ok := labels[id]; ok {
				record[rel.Name+"_label"] = label
			}
		}
	}
}

func storageError(entity string, err error) error {
	if _, ok := err.(*apperrors.AppError); ok {
		return err
	}
	return apperrors.NewStorageError(fmt.Sprintf("failed to query %s", entity), err)
}
