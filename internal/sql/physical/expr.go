// Package physical holds executable expressions bound to an input schema,
// aggregate expressions and the planner that compiles logical expressions
// into them.
package physical

import (
	"fmt"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/memory"

	qerrors "github.com/dshills/QuantaDist/internal/errors"
	"github.com/dshills/QuantaDist/internal/sql/types"
)

var mem = memory.DefaultAllocator

// PhysicalExpr is an expression bound to an input schema. Evaluate returns an
// array with one slot per row of the batch; the caller releases it.
type PhysicalExpr interface {
	DataType(schema *arrow.Schema) (arrow.DataType, error)
	Nullable(schema *arrow.Schema) (bool, error)
	Evaluate(batch arrow.Record) (arrow.Array, error)
	String() string
}

// Column reads an input column by position.
type Column struct {
	Name  string
	Index int
}

// NewColumn resolves name against schema.
func NewColumn(name string, schema *arrow.Schema) (*Column, error) {
	indices := schema.FieldIndices(name)
	switch len(indices) {
	case 0:
		return nil, qerrors.ColumnNotFoundError(name)
	case 1:
		return &Column{Name: name, Index: indices[0]}, nil
	default:
		return nil, qerrors.Newf(qerrors.AmbiguousColumn, "column reference %q is ambiguous", name).
			WithColumn(name)
	}
}

func (c *Column) field(schema *arrow.Schema) (arrow.Field, error) {
	if c.Index < 0 || c.Index >= schema.NumFields() {
		return arrow.Field{}, qerrors.ColumnNotFoundError(c.Name)
	}
	return schema.Field(c.Index), nil
}

func (c *Column) DataType(schema *arrow.Schema) (arrow.DataType, error) {
	f, err := c.field(schema)
	if err != nil {
		return nil, err
	}
	return f.Type, nil
}

func (c *Column) Nullable(schema *arrow.Schema) (bool, error) {
	f, err := c.field(schema)
	if err != nil {
		return false, err
	}
	return f.Nullable, nil
}

func (c *Column) Evaluate(batch arrow.Record) (arrow.Array, error) {
	if c.Index >= int(batch.NumCols()) {
		return nil, fmt.Errorf("column %s at index %d out of range for batch with %d columns", c.Name, c.Index, batch.NumCols())
	}
	col := batch.Column(c.Index)
	col.Retain()
	return col, nil
}

func (c *Column) String() string { return c.Name }

// Literal evaluates to a constant.
type Literal struct {
	Type  arrow.DataType
	Value any
}

// NewLiteral returns a literal of dt.
func NewLiteral(dt arrow.DataType, value any) *Literal {
	return &Literal{Type: dt, Value: value}
}

func (l *Literal) DataType(*arrow.Schema) (arrow.DataType, error) { return l.Type, nil }

func (l *Literal) Nullable(*arrow.Schema) (bool, error) { return l.Value == nil, nil }

func (l *Literal) Evaluate(batch arrow.Record) (arrow.Array, error) {
	return types.RepeatValue(mem, l.Type, l.Value, int(batch.NumRows()))
}

func (l *Literal) String() string {
	if s, ok := l.Value.(string); ok {
		return fmt.Sprintf("'%s'", s)
	}
	return types.FormatValue(l.Value)
}

// evaluateAll evaluates exprs against batch, releasing partial results on error.
func evaluateAll(exprs []PhysicalExpr, batch arrow.Record) ([]arrow.Array, error) {
	out := make([]arrow.Array, 0, len(exprs))
	for _, e := range exprs {
		arr, err := e.Evaluate(batch)
		if err != nil {
			releaseArrays(out)
			return nil, err
		}
		out = append(out, arr)
	}
	return out, nil
}

// EvaluateAll evaluates exprs against batch. The caller releases the arrays.
func EvaluateAll(exprs []PhysicalExpr, batch arrow.Record) ([]arrow.Array, error) {
	return evaluateAll(exprs, batch)
}

func releaseArrays(arrs []arrow.Array) {
	for _, a := range arrs {
		if a != nil {
			a.Release()
		}
	}
}

// mapRows builds an array of type dt by applying fn to each row of the inputs.
func mapRows(dt arrow.DataType, rows int, inputs []arrow.Array, fn func(values []any) (any, error)) (arrow.Array, error) {
	b := array.NewBuilder(mem, dt)
	defer b.Release()
	b.Reserve(rows)

	values := make([]any, len(inputs))
	for r := 0; r < rows; r++ {
		for i, in := range inputs {
			values[i] = types.ValueAt(in, r)
		}
		v, err := fn(values)
		if err != nil {
			return nil, err
		}
		if err := types.AppendValue(b, v); err != nil {
			return nil, err
		}
	}
	return b.NewArray(), nil
}
