package physical

import (
	"fmt"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"

	qerrors "github.com/dshills/QuantaDist/internal/errors"
	"github.com/dshills/QuantaDist/internal/sql/types"
)

// NotExpr is boolean negation. NOT NULL is NULL.
type NotExpr struct {
	Expr PhysicalExpr
}

// NewNotExpr requires a boolean operand.
func NewNotExpr(e PhysicalExpr, schema *arrow.Schema) (*NotExpr, error) {
	dt, err := e.DataType(schema)
	if err != nil {
		return nil, err
	}
	if !isBoolish(dt) {
		return nil, qerrors.Newf(qerrors.DatatypeMismatch, "argument of NOT must be boolean, not %s", dt).
			WithDataType(dt.String())
	}
	return &NotExpr{Expr: e}, nil
}

func (n *NotExpr) DataType(*arrow.Schema) (arrow.DataType, error) {
	return arrow.FixedWidthTypes.Boolean, nil
}

func (n *NotExpr) Nullable(schema *arrow.Schema) (bool, error) { return n.Expr.Nullable(schema) }

func (n *NotExpr) Evaluate(batch arrow.Record) (arrow.Array, error) {
	in, err := n.Expr.Evaluate(batch)
	if err != nil {
		return nil, err
	}
	defer in.Release()
	return mapRows(arrow.FixedWidthTypes.Boolean, in.Len(), []arrow.Array{in}, func(v []any) (any, error) {
		if b, ok := v[0].(bool); ok {
			return !b, nil
		}
		return nil, nil
	})
}

func (n *NotExpr) String() string { return fmt.Sprintf("NOT %s", n.Expr) }

// IsNullExpr tests for null. The result is never null.
type IsNullExpr struct {
	Expr    PhysicalExpr
	Negated bool
}

func (n *IsNullExpr) DataType(*arrow.Schema) (arrow.DataType, error) {
	return arrow.FixedWidthTypes.Boolean, nil
}

func (n *IsNullExpr) Nullable(*arrow.Schema) (bool, error) { return false, nil }

func (n *IsNullExpr) Evaluate(batch arrow.Record) (arrow.Array, error) {
	in, err := n.Expr.Evaluate(batch)
	if err != nil {
		return nil, err
	}
	defer in.Release()

	b := array.NewBooleanBuilder(mem)
	defer b.Release()
	b.Reserve(in.Len())
	for i := 0; i < in.Len(); i++ {
		b.Append(in.IsNull(i) != n.Negated)
	}
	return b.NewArray(), nil
}

func (n *IsNullExpr) String() string {
	if n.Negated {
		return fmt.Sprintf("%s IS NOT NULL", n.Expr)
	}
	return fmt.Sprintf("%s IS NULL", n.Expr)
}

// NegativeExpr is arithmetic negation of a signed integer or float.
type NegativeExpr struct {
	Expr PhysicalExpr
}

// NewNegativeExpr requires a signed numeric operand.
func NewNegativeExpr(e PhysicalExpr, schema *arrow.Schema) (*NegativeExpr, error) {
	dt, err := e.DataType(schema)
	if err != nil {
		return nil, err
	}
	if !types.IsSignedInteger(dt) && !types.IsFloat(dt) && !types.IsNull(dt) {
		return nil, qerrors.Newf(qerrors.DatatypeMismatch, "cannot negate value of type %s", dt).
			WithDataType(dt.String())
	}
	return &NegativeExpr{Expr: e}, nil
}

func (n *NegativeExpr) DataType(schema *arrow.Schema) (arrow.DataType, error) {
	return n.Expr.DataType(schema)
}

func (n *NegativeExpr) Nullable(schema *arrow.Schema) (bool, error) { return n.Expr.Nullable(schema) }

func (n *NegativeExpr) Evaluate(batch arrow.Record) (arrow.Array, error) {
	in, err := n.Expr.Evaluate(batch)
	if err != nil {
		return nil, err
	}
	defer in.Release()
	return mapRows(in.DataType(), in.Len(), []arrow.Array{in}, func(v []any) (any, error) {
		switch x := v[0].(type) {
		case nil:
			return nil, nil
		case float32:
			return -x, nil
		case float64:
			return -x, nil
		}
		i, _ := types.AsInt64(v[0])
		return -i, nil
	})
}

func (n *NegativeExpr) String() string { return fmt.Sprintf("(- %s)", n.Expr) }

// CastExpr converts its operand to another type.
type CastExpr struct {
	Expr PhysicalExpr
	To   arrow.DataType
}

// NewCastExpr rejects casts that can never succeed.
func NewCastExpr(e PhysicalExpr, to arrow.DataType, schema *arrow.Schema) (*CastExpr, error) {
	from, err := e.DataType(schema)
	if err != nil {
		return nil, err
	}
	if !canCast(from, to) {
		return nil, qerrors.InvalidCastError(from.String(), to.String())
	}
	return &CastExpr{Expr: e, To: to}, nil
}

func canCast(from, to arrow.DataType) bool {
	switch {
	case arrow.TypeEqual(from, to), types.IsNull(from):
		return true
	case types.IsString(to):
		return true
	case types.IsString(from):
		return to.ID() == arrow.BOOL || to.ID() == arrow.BINARY || types.IsNumeric(to)
	case types.IsNumeric(from):
		return types.IsNumeric(to) || to.ID() == arrow.BOOL || to.ID() == arrow.DATE32 || to.ID() == arrow.DATE64
	case from.ID() == arrow.BOOL:
		return types.IsInteger(to)
	case from.ID() == arrow.DATE32 || from.ID() == arrow.DATE64:
		return types.IsInteger(to) || to.ID() == arrow.DATE32 || to.ID() == arrow.DATE64
	}
	return false
}

func (c *CastExpr) DataType(*arrow.Schema) (arrow.DataType, error) { return c.To, nil }

func (c *CastExpr) Nullable(schema *arrow.Schema) (bool, error) { return c.Expr.Nullable(schema) }

func (c *CastExpr) Evaluate(batch arrow.Record) (arrow.Array, error) {
	in, err := c.Expr.Evaluate(batch)
	if err != nil {
		return nil, err
	}
	defer in.Release()
	if arrow.TypeEqual(in.DataType(), c.To) {
		in.Retain()
		return in, nil
	}
	return mapRows(c.To, in.Len(), []arrow.Array{in}, func(v []any) (any, error) {
		return types.CastValue(v[0], c.To)
	})
}

func (c *CastExpr) String() string { return fmt.Sprintf("CAST(%s AS %s)", c.Expr, c.To) }
