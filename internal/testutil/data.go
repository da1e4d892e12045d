package testutil

import (
	"testing"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/memory"

	"github.com/dshills/QuantaDist/internal/sql/types"
)

// Field builds a schema field.
func Field(name string, dt arrow.DataType, nullable bool) arrow.Field {
	return arrow.Field{Name: name, Type: dt, Nullable: nullable}
}

// Schema builds a schema from fields.
func Schema(fields ...arrow.Field) *arrow.Schema {
	return arrow.NewSchema(fields, nil)
}

// Record builds a batch from column-major values. The batch is released when
// the test ends.
func Record(t *testing.T, schema *arrow.Schema, columns ...[]any) arrow.Record {
	t.Helper()

	rec, err := types.RecordFromColumns(memory.DefaultAllocator, schema, columns)
	if err != nil {
		t.Fatalf("failed to build record: %v", err)
	}
	t.Cleanup(rec.Release)
	return rec
}

// Rows flattens batches into row-major values.
func Rows(recs []arrow.Record) [][]any {
	var rows [][]any
	for _, rec := range recs {
		rows = append(rows, types.Rows(rec)...)
	}
	return rows
}

// Int64s converts ints into column values.
func Int64s(values ...int64) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// Strings converts strings into column values.
func Strings(values ...string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
