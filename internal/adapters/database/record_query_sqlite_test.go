package database_test

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/suite"
	"github.com/zatekoja/clinicretail/internal/adapters/database"
	"github.com/zatekoja/clinicretail/internal/domain/entities"
	"github.com/zatekoja/clinicretail/internal/domain/filter"
	"github.com/zatekoja/clinicretail/internal/infrastructure/clients/sqldb"
	"github.com/zatekoja/clinicretail/internal/query/services"
	apperrors "github.com/zatekoja/clinicretail/pkg/errors"
)

// RecordQuerySQLiteSuite runs record queries end to end against an in-memory database
type RecordQuerySQLiteSuite struct {
	suite.Suite
	client  *sqldb.Client
	service *services.RecordQueryService
}

func TestRecordQuerySQLiteSuite(t *testing.T) {
	suite.Run(t, new(RecordQuerySQLiteSuite))
}

func (s *RecordQuerySQLiteSuite) SetupTest() {
	db, err := sqlx.Open("sqlite3", ":memory:")
	s.Require().NoError(err)
	db.SetMaxOpenConns(1)

	s.client = sqldb.NewClientFromDB(db)
	ctx := context.Background()
	s.Require().NoError(database.EnsureSchema(ctx, s.client))
	s.Require().NoError(database.SeedDemoData(ctx, s.client))

	catalog := entities.DefaultCatalog()
	s.service = services.NewRecordQueryService(
		database.NewRecordQueryAdapter(s.client, catalog),
		catalog,
		services.RecordQueryOptions{Diagnostics: services.LogDiagnostics},
	)
}

func (s *RecordQuerySQLiteSuite) TearDownTest() {
	s.client.Close()
}

func (s *RecordQuerySQLiteSuite) execute(entity string, req filter.Request) *entities.RecordPage {
	if req.Sort == nil {
		req.Sort = &filter.Sort{Column: "id", Direction: filter.Asc}
	}
	page, err := s.service.Execute(context.Background(), entity, req)
	s.Require().NoError(err)
	return page
}

func ids(page *entities.RecordPage) []int64 {
	out := make([]int64, 0, len(page.Data))
	for _, r := range page.Data {
		id, _ := r.ID()
		out = append(out, id)
	}
	return out
}

func (s *RecordQuerySQLiteSuite) TestExactAndContainsCombined() {
	page := s.execute("products", filter.Request{
		Fields:     []string{"brand_id", "description"},
		Values:     []string{"3", "blue"},
		Combinator: filter.And,
	})

	s.Equal([]int64{1}, ids(page))
	s.Equal(int64(1), page.Total)
}

func (s *RecordQuerySQLiteSuite) TestRelationContains() {
	page := s.execute("products", filter.Request{
		Fields: []string{"brand.name"},
		Values: []string{"acme"},
	})

	s.Equal([]int64{1, 2}, ids(page))
}

func (s *RecordQuerySQLiteSuite) TestHasManyRelation() {
	page := s.execute("patients", filter.Request{
		Fields: []string{"prescriptions.notes"},
		Values: []string{"ASTIGMATISM"},
	})

	s.Equal([]int64{1}, ids(page))
}

func (s *RecordQuerySQLiteSuite) TestOrWithTwoClauses() {
	page := s.execute("products", filter.Request{
		Fields:     []string{"name", "sku"},
		Values:     []string{"rimless", "LN-001"},
		Combinator: filter.Or,
	})

	s.Equal([]int64{3, 5}, ids(page))
}

func (s *RecordQuerySQLiteSuite) TestOrWithThreeClausesAnchorsFirst() {
	// class_id = 1 AND (name ~ aviator OR name ~ lens)
	page := s.execute("products", filter.Request{
		Fields:     []string{"class_id", "name", "name"},
		Values:     []string{"1", "aviator", "lens"},
		Combinator: filter.Or,
	})

	s.Equal([]int64{1}, ids(page))
}

func (s *RecordQuerySQLiteSuite) TestMismatchedListsReturnEverything() {
	page := s.execute("products", filter.Request{
		Fields: []string{"brand_id", "description"},
		Values: []string{"3"},
	})

	s.Equal(int64(5), page.Total)
}

func (s *RecordQuerySQLiteSuite) TestDirectEqualsSortAndPagination() {
	req := filter.Request{
		DirectEquals: map[string]interface{}{"status": "active"},
		Sort:         &filter.Sort{Column: "price", Direction: filter.Desc},
		PageSize:     2,
	}

	first := s.execute("products", req)
	s.Equal([]int64{5, 1}, ids(first))
	s.Equal(int64(4), first.Total)
	s.Equal(2, first.LastPage)

	req.Page = 2
	second := s.execute("products", req)
	s.Equal([]int64{2, 3}, ids(second))
}

func (s *RecordQuerySQLiteSuite) TestWithAttachesLabels() {
	page := s.execute("products", filter.Request{
		DirectEquals: map[string]interface{}{"brand_id": "3"},
		With:         []string{"brand", "material"},
	})

	s.Require().Len(page.Data, 2)
	for _, r := range page.Data {
		s.Equal("Acme Co", r["brand_label"])
		s.Equal("Acetate", r["material_label"])
	}
}

func (s *RecordQuerySQLiteSuite) TestUnknownColumnIsValidationError() {
	_, err := s.service.Execute(context.Background(), "products", filter.Request{
		Fields: []string{"cost_price"},
		Values: []string{"10"},
	})

	s.True(apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func (s *RecordQuerySQLiteSuite) TestClosedDatabaseIsStorageError() {
	s.Require().NoError(s.client.Close())

	_, err := s.service.Execute(context.Background(), "products", filter.Request{})

	s.True(apperrors.IsType(err, apperrors.ErrorTypeStorage))
}
