package entities

import "sort"

// Relation describes how a related table joins back to its owner.
// The join condition is related.RemoteKey = owner.LocalKey.
type Relation struct {
	Name      string
	Entity    string
	LocalKey  string
	RemoteKey string
}

// EntitySchema is the filterable surface of one table
type EntitySchema struct {
	Name        string
	Table       string
	Columns     []string
	LabelColumn string
	Relations   map[string]Relation

	columnSet map[string]struct{}
}

// HasColumn reports whether column is filterable on this entity
func (s *EntitySchema) HasColumn(column string) bool {
	_, ok := s.columnSet[column]
	return ok
}

// Relation looks up a relation by name
func (s *EntitySchema) Relation(name string) (Relation, bool) {
	rel, ok := s.Relations[name]
	return rel, ok
}

// Facet is a lookup entity exposed as an option list
type Facet struct {
	Name        string
	Entity      string
	SearchField string
}

// Catalog holds every filterable entity and facet
type Catalog struct {
	entities map[string]*EntitySchema
	facets   map[string]Facet
}

// NewCatalog indexes the given schemas and facets
func NewCatalog(schemas []EntitySchema, facets []Facet) *Catalog {
	c := &Catalog{
		entities: make(map[string]*EntitySchema, len(schemas)),
		facets:   make(map[string]Facet, len(facets)),
	}
	for i := range schemas {
		s := schemas[i]
		s.columnSet = make(map[string]struct{}, len(s.Columns))
		for _, col := range s.Columns {
			s.columnSet[col] = struct{}{}
		}
		c.entities[s.Name] = &s
	}
	for _, f := range facets {
		c.facets[f.Name] = f
	}
	return c
}

// Entity returns the schema registered under name
func (c *Catalog) Entity(name string) (*EntitySchema, bool) {
	s, ok := c.entities[name]
	return s, ok
}

// Facet returns the facet registered under name
func (c *Catalog) Facet(name string) (Facet, bool) {
	f, ok := c.facets[name]
	return f, ok
}

// FacetNames lists registered facets in name order
func (c *Catalog) FacetNames() []string {
	names := make([]string, 0, len(c.facets))
	for name := range c.facets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookup(name string) EntitySchema {
	return EntitySchema{
		Name:        name,
		Table:       name,
		Columns:     []string{"id", "name", "description", "created_at"},
		LabelColumn: "name",
	}
}

func belongsTo(name, entity string) Relation {
	return Relation{Name: name, Entity: entity, LocalKey: name + "_id", RemoteKey: "id"}
}

func hasMany(name, entity, foreignKey string) Relation {
	return Relation{Name: name, Entity: entity, LocalKey: "id", RemoteKey: foreignKey}
}

// DefaultCatalog is the clinic/retail schema served by the API
func DefaultCatalog() *Catalog {
	schemas := []EntitySchema{
		lookup("brands"),
		lookup("materials"),
		lookup("classes"),
		lookup("treatments"),
		lookup("types"),
		{
			Name:        "suppliers",
			Table:       "suppliers",
			Columns:     []string{"id", "name", "contact_email", "phone", "created_at"},
			LabelColumn: "name",
		},
		{
			Name:  "products",
			Table: "products",
			Columns: []string{
				"id", "name", "description", "sku", "brand_id", "material_id", "class_id",
				"treatment_id", "type_id", "supplier_id", "status", "price", "stock", "created_at",
			},
			LabelColumn: "name",
			Relations: map[string]Relation{
				"brand":     belongsTo("brand", "brands"),
				"material":  belongsTo("material", "materials"),
				"class":     belongsTo("class", "classes"),
				"treatment": belongsTo("treatment", "treatments"),
				"type":      belongsTo("type", "types"),
				"supplier":  belongsTo("supplier", "suppliers"),
			},
		},
		{
			Name:  "patients",
			Table: "patients",
			Columns: []string{
				"id", "first_name", "last_name", "document_number", "phone", "email", "status", "created_at",
			},
			LabelColumn: "last_name",
			Relations: map[string]Relation{
				"prescriptions": hasMany("prescriptions", "prescriptions", "patient_id"),
				"sales":         hasMany("sales", "sales", "patient_id"),
			},
		},
		{
			Name:  "prescriptions",
			Table: "prescriptions",
			Columns: []string{
				"id", "patient_id", "product_id", "right_sphere", "left_sphere", "notes", "status", "issued_at",
			},
			LabelColumn: "notes",
			Relations: map[string]Relation{
				"patient": belongsTo("patient", "patients"),
				"product": belongsTo("product", "products"),
			},
		},
		{
			Name:  "sales",
			Table: "sales",
			Columns: []string{
				"id", "patient_id", "product_id", "quantity", "total", "status", "sold_at",
			},
			LabelColumn: "status",
			Relations: map[string]Relation{
				"patient": belongsTo("patient", "patients"),
				"product": belongsTo("product", "products"),
			},
		},
		{
			Name:  "orders",
			Table: "orders",
			Columns: []string{
				"id", "supplier_id", "product_id", "quantity", "status", "ordered_at",
			},
			LabelColumn: "status",
			Relations: map[string]Relation{
				"supplier": belongsTo("supplier", "suppliers"),
				"product":  belongsTo("product", "products"),
			},
		},
	}

	facets := []Facet{
		{Name: "brand", Entity: "brands", SearchField: "name"},
		{Name: "material", Entity: "materials", SearchField: "name"},
		{Name: "class", Entity: "classes", SearchField: "name"},
		{Name: "treatment", Entity: "treatments", SearchField: "name"},
		{Name: "type", Entity: "types", SearchField: "name"},
		{Name: "supplier", Entity: "suppliers", SearchField: "name"},
	}

	return NewCatalog(schemas, facets)
}
