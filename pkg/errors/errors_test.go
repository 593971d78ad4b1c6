package errors

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_ErrorIncludesCause(t *testing.T) {
	err := NewStorageError("failed to list products", sql.ErrConnDone)

	assert.Equal(t, "STORAGE: failed to list products: sql: connection is already closed", err.Error())
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestAppError_ErrorWithoutCause(t *testing.T) {
	err := NewValidationError("unknown column")
	assert.Equal(t, "VALIDATION: unknown column", err.Error())
}

func TestTypeOf(t *testing.T) {
	wrapped := fmt.Errorf("execute: %w", NewTransportError("brands", sql.ErrConnDone))

	assert.Equal(t, ErrorTypeTransport, TypeOf(wrapped))
	assert.True(t, IsType(wrapped, ErrorTypeTransport))
	assert.False(t, IsType(wrapped, ErrorTypeStorage))
	assert.Equal(t, ErrorTypeInternal, TypeOf(sql.ErrNoRows))
}
