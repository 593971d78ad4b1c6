package entities

import "strconv"

// Record is one row of a filtered entity, keyed by column name
type Record map[string]interface{}

// ID returns the record's integer primary key, if it has one
func (r Record) ID() (int64, bool) {
	return r.Int64("id")
}

// Int64 reads an integer column, accepting the shapes SQL drivers scan into
func (r Record) Int64(column string) (int64, bool) {
	switch v := r[column].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case float64:
		return int64(v), v == float64(int64(v))
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		return id, err == nil
	case []byte:
		id, err := strconv.ParseInt(string(v), 10, 64)
		return id, err == nil
	}
	return 0, false
}

// RecordPage is one page of a filtered record search
type RecordPage struct {
	Data     []Record `json:"data"`
	Total    int64    `json:"total"`
	Page     int      `json:"page"`
	PerPage  int      `json:"per_page"`
	LastPage int      `json:"last_page"`
}

// NewRecordPage builds a page envelope, computing the last page from total
func NewRecordPage(data []Record, total int64, page, perPage int) *RecordPage {
	if data == nil {
		data = []Record{}
	}
	lastPage := 1
	if perPage > 0 && total > 0 {
		lastPage = int((total + int64(perPage) - 1) / int64(perPage))
	}
	return &RecordPage{
		Data:     data,
		Total:    total,
		Page:     page,
		PerPage:  perPage,
		LastPage: lastPage,
	}
}

// FacetOption is one selectable value of a facet widget
type FacetOption struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}
