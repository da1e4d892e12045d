package physical

import (
	"fmt"
	"math"

	"github.com/apache/arrow/go/v13/arrow"

	qerrors "github.com/dshills/QuantaDist/internal/errors"
	"github.com/dshills/QuantaDist/internal/sql/logical"
	"github.com/dshills/QuantaDist/internal/sql/types"
)

// BinaryExpr applies a comparison, arithmetic or logical operator.
type BinaryExpr struct {
	Left  PhysicalExpr
	Op    logical.Operator
	Right PhysicalExpr

	resultType arrow.DataType
}

// NewBinaryExpr type-checks the operands against schema.
func NewBinaryExpr(left PhysicalExpr, op logical.Operator, right PhysicalExpr, schema *arrow.Schema) (*BinaryExpr, error) {
	lt, err := left.DataType(schema)
	if err != nil {
		return nil, err
	}
	rt, err := right.DataType(schema)
	if err != nil {
		return nil, err
	}

	var result arrow.DataType
	switch {
	case op.IsComparison():
		if !types.Comparable(lt, rt) {
			return nil, qerrors.DataTypeMismatchError(op.String(), lt.String(), rt.String())
		}
		result = arrow.FixedWidthTypes.Boolean
	case op.IsArithmetic():
		dt, ok := types.ArithmeticResultType(lt, rt)
		if !ok {
			return nil, qerrors.DataTypeMismatchError(op.String(), lt.String(), rt.String())
		}
		result = dt
	case op.IsLogical():
		if !isBoolish(lt) || !isBoolish(rt) {
			return nil, qerrors.DataTypeMismatchError(op.String(), lt.String(), rt.String())
		}
		result = arrow.FixedWidthTypes.Boolean
	default:
		return nil, qerrors.FeatureNotSupportedError(fmt.Sprintf("operator %v", op))
	}

	return &BinaryExpr{Left: left, Op: op, Right: right, resultType: result}, nil
}

func isBoolish(dt arrow.DataType) bool {
	return dt.ID() == arrow.BOOL || types.IsNull(dt)
}

func (b *BinaryExpr) DataType(*arrow.Schema) (arrow.DataType, error) { return b.resultType, nil }

func (b *BinaryExpr) Nullable(schema *arrow.Schema) (bool, error) {
	ln, err := b.Left.Nullable(schema)
	if err != nil {
		return false, err
	}
	rn, err := b.Right.Nullable(schema)
	if err != nil {
		return false, err
	}
	// division can only fail, never yield null, so nullability follows the inputs
	return ln || rn, nil
}

func (b *BinaryExpr) Evaluate(batch arrow.Record) (arrow.Array, error) {
	inputs, err := evaluateAll([]PhysicalExpr{b.Left, b.Right}, batch)
	if err != nil {
		return nil, err
	}
	defer releaseArrays(inputs)

	var fn func(l, r any) (any, error)
	switch {
	case b.Op.IsComparison():
		fn = b.compare
	case b.Op.IsLogical():
		fn = b.logical
	case b.resultType.ID() == arrow.FLOAT64:
		fn = b.floatArith
	default:
		fn = b.intArith
	}

	return mapRows(b.resultType, int(batch.NumRows()), inputs, func(values []any) (any, error) {
		return fn(values[0], values[1])
	})
}

func (b *BinaryExpr) compare(l, r any) (any, error) {
	if l == nil || r == nil {
		return nil, nil
	}
	c, err := types.Compare(l, r)
	if err != nil {
		return nil, err
	}
	switch b.Op {
	case logical.OpEq:
		return c == 0, nil
	case logical.OpNotEq:
		return c != 0, nil
	case logical.OpLt:
		return c < 0, nil
	case logical.OpLtEq:
		return c <= 0, nil
	case logical.OpGt:
		return c > 0, nil
	default:
		return c >= 0, nil
	}
}

// logical implements three-valued AND/OR.
func (b *BinaryExpr) logical(l, r any) (any, error) {
	lb, lok := l.(bool)
	rb, rok := r.(bool)
	if b.Op == logical.OpAnd {
		if (lok && !lb) || (rok && !rb) {
			return false, nil
		}
		if !lok || !rok {
			return nil, nil
		}
		return true, nil
	}
	if (lok && lb) || (rok && rb) {
		return true, nil
	}
	if !lok || !rok {
		return nil, nil
	}
	return false, nil
}

func (b *BinaryExpr) intArith(l, r any) (any, error) {
	if l == nil || r == nil {
		return nil, nil
	}
	x, _ := types.AsInt64(l)
	y, _ := types.AsInt64(r)
	switch b.Op {
	case logical.OpPlus:
		return x + y, nil
	case logical.OpMinus:
		return x - y, nil
	case logical.OpMultiply:
		return x * y, nil
	case logical.OpDivide:
		if y == 0 {
			return nil, qerrors.DivisionByZeroError()
		}
		return x / y, nil
	default:
		if y == 0 {
			return nil, qerrors.DivisionByZeroError()
		}
		return x % y, nil
	}
}

func (b *BinaryExpr) floatArith(l, r any) (any, error) {
	if l == nil || r == nil {
		return nil, nil
	}
	x, _ := types.AsFloat64(l)
	y, _ := types.AsFloat64(r)
	switch b.Op {
	case logical.OpPlus:
		return x + y, nil
	case logical.OpMinus:
		return x - y, nil
	case logical.OpMultiply:
		return x * y, nil
	case logical.OpDivide:
		if y == 0 {
			return nil, qerrors.DivisionByZeroError()
		}
		return x / y, nil
	default:
		if y == 0 {
			return nil, qerrors.DivisionByZeroError()
		}
		return math.Mod(x, y), nil
	}
}

func (b *BinaryExpr) String() string {
	return fmt.Sprintf("%s %s %s", b.Left, b.Op, b.Right)
}
