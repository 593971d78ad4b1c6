package database

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/zatekoja/clinicretail/internal/infrastructure/clients/sqldb"
	"github.com/zatekoja/clinicretail/internal/infrastructure/observability"
)

// Tables in dependency order; %[1]s is the dialect's primary key type.
var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS brands (id %[1]s, name TEXT NOT NULL, description TEXT, created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP)`,
	`CREATE TABLE IF NOT EXISTS materials (id %[1]s, name TEXT NOT NULL, description TEXT, created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP)`,
	`CREATE TABLE IF NOT EXISTS classes (id %[1]s, name TEXT NOT NULL, description TEXT, created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP)`,
	`CREATE TABLE IF NOT EXISTS treatments (id %[1]s, name TEXT NOT NULL, description TEXT, created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP)`,
	`CREATE TABLE IF NOT EXISTS types (id %[1]s, name TEXT NOT NULL, description TEXT, created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP)`,
	`CREATE TABLE IF NOT EXISTS suppliers (id %[1]s, name TEXT NOT NULL, contact_email TEXT, phone TEXT, created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP)`,
	`CREATE TABLE IF NOT EXISTS products (
		id %[1]s,
		name TEXT NOT NULL,
		description TEXT,
		sku TEXT,
		brand_id BIGINT REFERENCES brands(id),
		material_id BIGINT REFERENCES materials(id),
		class_id BIGINT REFERENCES classes(id),
		treatment_id BIGINT REFERENCES treatments(id),
		type_id BIGINT REFERENCES types(id),
		supplier_id BIGINT REFERENCES suppliers(id),
		status TEXT NOT NULL DEFAULT 'active',
		price NUMERIC(10,2),
		stock INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS patients (
		id %[1]s,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		document_number TEXT,
		phone TEXT,
		email TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS prescriptions (
		id %[1]s,
		patient_id BIGINT REFERENCES patients(id),
		product_id BIGINT REFERENCES products(id),
		right_sphere NUMERIC(5,2),
		left_sphere NUMERIC(5,2),
		notes TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		issued_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS sales (
		id %[1]s,
		patient_id BIGINT REFERENCES patients(id),
		product_id BIGINT REFERENCES products(id),
		quantity INTEGER NOT NULL DEFAULT 1,
		total NUMERIC(10,2),
		status TEXT NOT NULL DEFAULT 'paid',
		sold_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id %[1]s,
		supplier_id BIGINT REFERENCES suppliers(id),
		product_id BIGINT REFERENCES products(id),
		quantity INTEGER NOT NULL DEFAULT 1,
		status TEXT NOT NULL DEFAULT 'pending',
		ordered_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
}

// EnsureSchema creates the catalog tables if they do not exist yet
func EnsureSchema(ctx context.Context, client *sqldb.Client) error {
	primaryKey := "BIGSERIAL PRIMARY KEY"
	if client.Dialect() == "sqlite3" {
		primaryKey = "INTEGER PRIMARY KEY"
	}

	for _, ddl := range schemaDDL {
		if _, err := client.DB().ExecContext(ctx, fmt.Sprintf(ddl, primaryKey)); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

type seedTable struct {
	table string
	rows  []goqu.Record
}

func lookupRows(names ...string) []goqu.Record {
	rows := make([]goqu.Record, len(names))
	for i, name := range names {
		rows[i] = goqu.Record{"id": i + 1, "name": name}
	}
	return rows
}

// demoData is a small optical-retail catalog used for local development and tests
var demoData = []seedTable{
	{"brands", lookupRows("Ray Optics", "Lumen", "Acme Co", "Vistaline")},
	{"materials", lookupRows("Acetate", "Titanium", "Polycarbonate")},
	{"classes", lookupRows("Frames", "Lenses", "Contact lenses")},
	{"treatments", lookupRows("Anti-reflective", "Blue light", "Photochromic")},
	{"types", lookupRows("Single vision", "Progressive", "Bifocal")},
	{"suppliers", []goqu.Record{
		{"id": 1, "name": "Northwind Optical", "contact_email": "orders@northwind.example", "phone": "+1 555 0100"},
		{"id": 2, "name": "Contoso Lens Lab", "contact_email": "lab@contoso.example", "phone": "+1 555 0199"},
	}},
	{"products", []goqu.Record{
		{"id": 1, "name": "Aviator frame", "description": "Classic blue acetate frame", "sku": "FR-001", "brand_id": 3, "material_id": 1, "class_id": 1, "supplier_id": 1, "status": "active", "price": 120.00, "stock": 14},
		{"id": 2, "name": "Round frame", "description": "Tortoise shell frame", "sku": "FR-002", "brand_id": 3, "material_id": 1, "class_id": 1, "supplier_id": 1, "status": "active", "price": 95.50, "stock": 8},
		{"id": 3, "name": "Screen lens", "description": "Lens with blue light filter", "sku": "LN-001", "brand_id": 4, "material_id": 3, "class_id": 2, "treatment_id": 2, "type_id": 1, "supplier_id": 2, "status": "active", "price": 60.00, "stock": 40},
		{"id": 4, "name": "Progressive lens", "description": "Premium progressive lens", "sku": "LN-002", "brand_id": 2, "material_id": 3, "class_id": 2, "treatment_id": 1, "type_id": 2, "supplier_id": 2, "status": "inactive", "price": 210.00, "stock": 0},
		{"id": 5, "name": "Titanium rimless", "description": "Lightweight titanium frame", "sku": "FR-003", "brand_id": 1, "material_id": 2, "class_id": 1, "supplier_id": 1, "status": "active", "price": 180.00, "stock": 5},
	}},
	{"patients", []goqu.Record{
		{"id": 1, "first_name": "Ana", "last_name": "Torres", "document_number": "DOC-1001", "email": "ana@example.com", "status": "active"},
		{"id": 2, "first_name": "Luis", "last_name": "Gomez", "document_number": "DOC-1002", "email": "luis@example.com", "status": "active"},
		{"id": 3, "first_name": "Marta", "last_name": "Ruiz", "document_number": "DOC-1003", "status": "inactive"},
	}},
	{"prescriptions", []goqu.Record{
		{"id": 1, "patient_id": 1, "product_id": 3, "right_sphere": -1.25, "left_sphere": -1.50, "notes": "Mild astigmatism", "status": "active"},
		{"id": 2, "patient_id": 2, "product_id": 4, "right_sphere": 2.00, "left_sphere": 2.25, "notes": "Presbyopia follow-up", "status": "active"},
	}},
	{"sales", []goqu.Record{
		{"id": 1, "patient_id": 1, "product_id": 1, "quantity": 1, "total": 120.00, "status": "paid"},
		{"id": 2, "patient_id": 2, "product_id": 5, "quantity": 1, "total": 180.00, "status": "refunded"},
	}},
	{"orders", []goqu.Record{
		{"id": 1, "supplier_id": 2, "product_id": 4, "quantity": 10, "status": "pending"},
		{"id": 2, "supplier_id": 1, "product_id": 2, "quantity": 25, "status": "received"},
	}},
}

// SeedDemoData inserts the demo catalog. Tables that already hold rows are skipped.
func SeedDemoData(ctx context.Context, client *sqldb.Client) error {
	logger := observability.GetLogger()
	db := goqu.New(client.Dialect(), client.DB())

	for _, t := range demoData {
		var count int64
		if _, err := db.From(t.table).Select(goqu.COUNT("*")).ScanValContext(ctx, &count); err != nil {
			return fmt.Errorf("failed to inspect %s: %w", t.table, err)
		}
		if count > 0 {
			logger.Debug().Str("table", t.table).Int64("rows", count).Msg("Skipping seed for non-empty table")
			continue
		}

		rows := uniformRows(t.rows)
		if _, err := db.Insert(t.table).Rows(rows...).Executor().ExecContext(ctx); err != nil {
			return fmt.Errorf("failed to seed %s: %w", t.table, err)
		}
		logger.Info().Str("table", t.table).Int("rows", len(rows)).Msg("Seeded table")
	}
	return nil
}

// uniformRows pads every record to the union of columns so one multi-row
// INSERT can carry them all.
func uniformRows(records []goqu.Record) []interface{} {
	columns := make(map[string]struct{})
	for _, r := range records {
		for k := range r {
			columns[k] = struct{}{}
		}
	}

	rows := make([]interface{}, len(records))
	for i, r := range records {
		row := make(goqu.Record, len(columns))
		for k := range columns {
			row[k] = r[k]
		}
		rows[i] = row
	}
	return rows
}
