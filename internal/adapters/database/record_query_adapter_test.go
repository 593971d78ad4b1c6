package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/clinicretail/internal/domain/entities"
	"github.com/zatekoja/clinicretail/internal/domain/filter"
	"github.com/zatekoja/clinicretail/internal/infrastructure/clients/sqldb"
	apperrors "github.com/zatekoja/clinicretail/pkg/errors"
)

func setupMockAdapter(t *testing.T) (*RecordQueryAdapter, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })

	client := sqldb.NewClientFromDB(sqlx.NewDb(mockDB, "postgres"))
	return NewRecordQueryAdapter(client, entities.DefaultCatalog()), mock
}

func productRow(id int64, brandID int64, description string) []driver.Value {
	return []driver.Value{
		id, "Frame", description, "SKU-1", brandID, nil, nil,
		nil, nil, nil, "active", 120.5, int64(4), "2024-01-01",
	}
}

func TestRecordQueryAdapter_Paginate_PostgresShape(t *testing.T) {
	// Arrange
	adapter, mock := setupMockAdapter(t)
	schema, _ := adapter.catalog.Entity("products")

	q, err := adapter.Query("products")
	require.NoError(t, err)

	exact, err := q.Match(filter.Leaf{Path: "brand_id", Operator: filter.Exact, Value: int64(3)})
	require.NoError(t, err)
	fuzzy, err := q.Match(filter.Leaf{Path: "description", Operator: filter.Contains, Value: "blue"})
	require.NoError(t, err)
	q.ApplyGroup(q.All(exact, fuzzy))

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "products" WHERE .*"products"\."brand_id" = \$1.*CAST\("products"\."description" AS TEXT\) ILIKE \$2`).
		WithArgs(int64(3), "%blue%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	rows := sqlmock.NewRows(schema.Columns).AddRow(productRow(1, 3, "blue frame")...)
	mock.ExpectQuery(`SELECT "products"\."id", .* FROM "products" WHERE .* LIMIT`).
		WillReturnRows(rows)

	// Act
	page, err := q.Paginate(context.Background(), 1, 15)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, 1, page.LastPage)
	require.Len(t, page.Data, 1)
	id, ok := page.Data[0].ID()
	assert.True(t, ok)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, "blue frame", page.Data[0]["description"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordQueryAdapter_Exists_RendersCorrelatedSubquery(t *testing.T) {
	adapter, mock := setupMockAdapter(t)

	q, err := adapter.Query("products")
	require.NoError(t, err)
	cond, err := q.Exists("brand", filter.Leaf{Path: "name", Operator: filter.Contains, Value: "Acme"})
	require.NoError(t, err)
	q.ApplyGroup(cond)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "products" WHERE .*EXISTS \(SELECT 1 FROM "brands" AS "rel_brand" WHERE .*"rel_brand"\."id" = "products"\."brand_id".*ILIKE \$1`).
		WithArgs("%Acme%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT .* FROM "products"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	page, err := q.Paginate(context.Background(), 1, 15)

	require.NoError(t, err)
	assert.Empty(t, page.Data)
	assert.Equal(t, 1, page.LastPage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordQueryAdapter_Validation(t *testing.T) {
	adapter, _ := setupMockAdapter(t)

	_, err := adapter.Query("spaceships")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))

	q, err := adapter.Query("products")
	require.NoError(t, err)

	_, err = q.Match(filter.Leaf{Path: "password", Operator: filter.Contains, Value: "x"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, err = q.Exists("warehouse", filter.Leaf{Path: "name", Operator: filter.Contains, Value: "x"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	// Nested paths land on the inner column and fail there.
	_, err = q.Exists("brand", filter.Leaf{Path: "country.name", Operator: filter.Contains, Value: "x"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	err = q.ApplyEquals("password", "x")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	err = q.ApplySort(filter.Sort{Column: "password; DROP TABLE products", Direction: filter.Asc})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestRecordQueryAdapter_Paginate_StorageError(t *testing.T) {
	adapter, mock := setupMockAdapter(t)

	q, err := adapter.Query("products")
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "products"`).
		WillReturnError(&pq.Error{Code: "57P01", Message: "terminating connection"})

	_, err = q.Paginate(context.Background(), 1, 15)

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeStorage))
	assert.Contains(t, err.Error(), "sqlstate 57P01")
	var pqErr *pq.Error
	assert.True(t, errors.As(err, &pqErr))
}

func TestRecordQueryAdapter_LabelsByIDs(t *testing.T) {
	adapter, mock := setupMockAdapter(t)

	mock.ExpectQuery(`SELECT "id", "name" FROM "brands" WHERE .*"id" IN \(\$1, \$2\)`).
		WithArgs(int64(3), int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(3), "Acme Co").
			AddRow(int64(5), nil))

	labels, err := adapter.LabelsByIDs(context.Background(), "brands", []int64{3, 5})

	require.NoError(t, err)
	assert.Equal(t, map[int64]string{3: "Acme Co"}, labels)
	assert.NoError(t, mock.ExpectationsWereMet())
}
