package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	err := MissingFieldError("FilterExecNode", "input")
	assert.Equal(t, `FilterExecNode: missing required field "input" (code XP002)`, err.Error())
	assert.Equal(t, "input", err.Field)

	err = MissingVariantError("physical plan type", `{"foo":1}`)
	assert.Contains(t, err.Error(), `DETAIL: {"foo":1}`)
}

func TestConstructionErrorUnwraps(t *testing.T) {
	cause := stderrors.New("schema mismatch")
	err := ConstructionError("HashJoinExecNode", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "HashJoinExecNode: failed to construct operator: schema mismatch")
	assert.True(t, IsError(err, ConstructionFailed))
}

func TestIsErrorThroughWrapping(t *testing.T) {
	inner := UnknownEnumError("HashAggregateExecNode", "AggregateMode", 7)
	wrapped := fmt.Errorf("translate: %w", inner)

	assert.True(t, IsError(wrapped, UnknownEnumValue))
	assert.False(t, IsError(wrapped, MissingVariant))
	assert.False(t, IsError(nil, UnknownEnumValue))
}

func TestGetError(t *testing.T) {
	assert.Nil(t, GetError(nil))

	coded := ColumnNotFoundError("a")
	assert.Same(t, coded, GetError(coded))

	plain := stderrors.New("boom")
	got := GetError(plain)
	require.NotNil(t, got)
	assert.Equal(t, InternalError, got.Code)
	assert.ErrorIs(t, got, plain)

	assert.Equal(t, UndefinedColumn, CodeOf(coded))
	assert.Equal(t, "", CodeOf(nil))
}
