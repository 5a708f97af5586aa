package errors

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Wrapping(t *testing.T) {
	base := NewExternalError("overpass request failed", io.ErrUnexpectedEOF)
	wrapped := fmt.Errorf("search: %w", base)

	assert.True(t, Is(wrapped, ErrorTypeExternal))
	assert.False(t, Is(wrapped, ErrorTypeValidation))
	assert.Equal(t, ErrorTypeExternal, TypeOf(wrapped))
	assert.Equal(t, "overpass request failed", UserMessage(wrapped))
	assert.ErrorIs(t, wrapped, io.ErrUnexpectedEOF)
	assert.Equal(t, "EXTERNAL: overpass request failed: unexpected EOF", base.Error())
}

func TestTypeOf_PlainError(t *testing.T) {
	err := fmt.Errorf("boom")
	assert.Equal(t, ErrorTypeInternal, TypeOf(err))
	assert.Equal(t, "Something went wrong.", UserMessage(err))
}

func TestNewValidationError_NoCause(t *testing.T) {
	err := NewValidationError("Please enter valid latitude and longitude.")
	assert.Equal(t, "VALIDATION: Please enter valid latitude and longitude.", err.Error())
	assert.Nil(t, err.Unwrap())
}
