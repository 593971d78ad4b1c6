package filter

import (
	"math"
	"strconv"
	"strings"
)

// Operator is the match behaviour of a single leaf.
type Operator string

const (
	// Exact is column = value.
	Exact Operator = "exact"
	// Contains is a case-insensitive substring match.
	Contains Operator = "contains"
)

// identifierSuffix marks foreign-key style columns.
const identifierSuffix = "_id"

// SelectOperator picks Exact only when the column part of path ends with
// "_id" and value is numeric. A numeric value on any other column is still
// Contains.
func SelectOperator(path, value string) Operator {
	if strings.HasSuffix(columnPart(path), identifierSuffix) && isNumeric(value) {
		return Exact
	}
	return Contains
}

func columnPart(path string) string {
	if i := strings.LastIndex(path, RelationSeparator); i >= 0 {
		return path[i+len(RelationSeparator):]
	}
	return path
}

func isNumeric(value string) bool {
	_, ok := parseNumber(value)
	return ok
}

// parseNumber returns value as int64 when integral, float64 otherwise.
func parseNumber(value string) (interface{}, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, false
	}
	if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return i, true
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	return f, true
}

// Scalar converts a raw request value to int64/float64 when numeric and
// leaves it as a string otherwise.
func Scalar(value string) interface{} {
	if n, ok := parseNumber(value); ok {
		return n
	}
	return value
}
