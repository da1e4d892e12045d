package types

import (
	"fmt"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/memory"
)

// TakeRecord builds a record from the rows of rec at indices, in that order.
func TakeRecord(mem memory.Allocator, rec arrow.Record, indices []int) (arrow.Record, error) {
	cols := make([]arrow.Array, rec.NumCols())
	defer releaseAll(cols)

	for c := range cols {
		col := rec.Column(c)
		b := array.NewBuilder(mem, col.DataType())
		b.Reserve(len(indices))
		for _, idx := range indices {
			if err := AppendValue(b, ValueAt(col, idx)); err != nil {
				b.Release()
				return nil, fmt.Errorf("column %s: %w", rec.ColumnName(c), err)
			}
		}
		cols[c] = b.NewArray()
		b.Release()
	}
	return array.NewRecord(rec.Schema(), cols, int64(len(indices))), nil
}

// FilterRecord keeps the rows of rec whose mask slot is valid and true.
func FilterRecord(mem memory.Allocator, rec arrow.Record, mask *array.Boolean) (arrow.Record, error) {
	if mask.Len() != int(rec.NumRows()) {
		return nil, fmt.Errorf("filter mask has %d rows, batch has %d", mask.Len(), rec.NumRows())
	}
	indices := make([]int, 0, mask.Len())
	for i := 0; i < mask.Len(); i++ {
		if mask.IsValid(i) && mask.Value(i) {
			indices = append(indices, i)
		}
	}
	if len(indices) == mask.Len() {
		rec.Retain()
		return rec, nil
	}
	return TakeRecord(mem, rec, indices)
}

// ConcatRecords concatenates recs, which must all share schema, into one record.
func ConcatRecords(mem memory.Allocator, schema *arrow.Schema, recs []arrow.Record) (arrow.Record, error) {
	if len(recs) == 0 {
		return EmptyRecord(mem, schema), nil
	}
	if len(recs) == 1 {
		recs[0].Retain()
		return recs[0], nil
	}

	cols := make([]arrow.Array, schema.NumFields())
	defer releaseAll(cols)

	var rows int64
	for _, r := range recs {
		rows += r.NumRows()
	}
	for c := range cols {
		parts := make([]arrow.Array, len(recs))
		for i, r := range recs {
			parts[i] = r.Column(c)
		}
		col, err := array.Concatenate(parts, mem)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", schema.Field(c).Name, err)
		}
		cols[c] = col
	}
	return array.NewRecord(schema, cols, rows), nil
}

// EmptyRecord returns a zero-row record of schema.
func EmptyRecord(mem memory.Allocator, schema *arrow.Schema) arrow.Record {
	return NullRecord(mem, schema, 0)
}

// NullRecord returns a record of schema with rows rows, every slot null.
func NullRecord(mem memory.Allocator, schema *arrow.Schema, rows int) arrow.Record {
	cols := make([]arrow.Array, schema.NumFields())
	defer releaseAll(cols)
	for i, f := range schema.Fields() {
		cols[i] = array.MakeArrayOfNull(mem, f.Type, rows)
	}
	return array.NewRecord(schema, cols, int64(rows))
}

// RecordFromColumns builds a record whose columns are the given value slices.
func RecordFromColumns(mem memory.Allocator, schema *arrow.Schema, columns [][]any) (arrow.Record, error) {
	if len(columns) != schema.NumFields() {
		return nil, fmt.Errorf("schema has %d fields, got %d columns", schema.NumFields(), len(columns))
	}
	cols := make([]arrow.Array, len(columns))
	defer releaseAll(cols)

	rows := -1
	for i, values := range columns {
		if rows >= 0 && len(values) != rows {
			return nil, fmt.Errorf("column %s has %d rows, expected %d", schema.Field(i).Name, len(values), rows)
		}
		rows = len(values)
		arr, err := BuildArray(mem, schema.Field(i).Type, values)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", schema.Field(i).Name, err)
		}
		cols[i] = arr
	}
	if rows < 0 {
		rows = 0
	}
	return array.NewRecord(schema, cols, int64(rows)), nil
}

// Rows returns the values of rec row by row.
func Rows(rec arrow.Record) [][]any {
	out := make([][]any, rec.NumRows())
	for r := range out {
		row := make([]any, rec.NumCols())
		for c := range row {
			row[c] = ValueAt(rec.Column(c), r)
		}
		out[r] = row
	}
	return out
}

func releaseAll(arrs []arrow.Array) {
	for _, a := range arrs {
		if a != nil {
			a.Release()
		}
	}
}
