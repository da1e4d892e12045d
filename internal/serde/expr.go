package serde

import (
	"fmt"

	"github.com/apache/arrow/go/v13/arrow"

	qerrors "github.com/dshills/QuantaDist/internal/errors"
	"github.com/dshills/QuantaDist/internal/serde/protobuf"
	"github.com/dshills/QuantaDist/internal/sql/logical"
)

// DecodeExpr converts a wire expression into a logical expression. It does
// not consult any schema; binding happens afterwards.
func DecodeExpr(e *protobuf.LogicalExprNode) (logical.Expr, error) {
	if e == nil || e.ExprType == nil {
		return nil, qerrors.MissingVariantError("expression variant", protobuf.Text(e)).
			WithNode("LogicalExprNode")
	}

	switch x := e.ExprType.(type) {
	case *protobuf.ColumnRef:
		if x.Name == "" {
			return nil, qerrors.MissingFieldError("ColumnRef", "name")
		}
		return &logical.Column{Name: x.Name}, nil

	case *protobuf.AliasNode:
		inner, err := requiredExpr("AliasNode", "expr", x.Expr)
		if err != nil {
			return nil, err
		}
		if x.Alias == "" {
			return nil, qerrors.MissingFieldError("AliasNode", "alias")
		}
		return &logical.Alias{Expr: inner, Name: x.Alias}, nil

	case *protobuf.ScalarValue:
		dt, v, err := DecodeScalarValue(x)
		if err != nil {
			return nil, err
		}
		return &logical.Literal{Type: dt, Value: v}, nil

	case *protobuf.BinaryExprNode:
		l, err := requiredExpr("BinaryExprNode", "l", x.L)
		if err != nil {
			return nil, err
		}
		r, err := requiredExpr("BinaryExprNode", "r", x.R)
		if err != nil {
			return nil, err
		}
		if x.Op == "" {
			return nil, qerrors.MissingFieldError("BinaryExprNode", "op")
		}
		op, ok := logical.ParseOperator(x.Op)
		if !ok {
			return nil, qerrors.UnsupportedVariantError("binary operator", x.Op).WithNode("BinaryExprNode")
		}
		return &logical.BinaryExpr{Left: l, Op: op, Right: r}, nil

	case *protobuf.AggregateExprNode:
		fun := logical.AggregateFunc(x.AggrFunction)
		if !fun.Valid() {
			return nil, qerrors.UnknownEnumError("AggregateExprNode", "AggregateFunction", int32(x.AggrFunction))
		}
		arg, err := requiredExpr("AggregateExprNode", "expr", x.Expr)
		if err != nil {
			return nil, err
		}
		return &logical.AggregateFunction{Fun: fun, Args: []logical.Expr{arg}, Distinct: x.Distinct}, nil

	case *protobuf.AggregateUDFExprNode:
		if x.FunName == "" {
			return nil, qerrors.MissingFieldError("AggregateUDFExprNode", "fun_name")
		}
		args, err := DecodeExprs(x.Args)
		if err != nil {
			return nil, err
		}
		return &logical.AggregateUDF{Name: x.FunName, Args: args}, nil

	case *protobuf.ScalarUDFExprNode:
		if x.FunName == "" {
			return nil, qerrors.MissingFieldError("ScalarUDFExprNode", "fun_name")
		}
		args, err := DecodeExprs(x.Args)
		if err != nil {
			return nil, err
		}
		return &logical.ScalarUDF{Name: x.FunName, Args: args}, nil

	case *protobuf.ScalarVariableNode:
		if len(x.Names) == 0 {
			return nil, qerrors.MissingFieldError("ScalarVariableNode", "names")
		}
		return &logical.ScalarVariable{Names: x.Names}, nil

	case *protobuf.IsNull:
		inner, err := requiredExpr("IsNull", "expr", x.Expr)
		if err != nil {
			return nil, err
		}
		return &logical.IsNull{Expr: inner}, nil

	case *protobuf.IsNotNull:
		inner, err := requiredExpr("IsNotNull", "expr", x.Expr)
		if err != nil {
			return nil, err
		}
		return &logical.IsNotNull{Expr: inner}, nil

	case *protobuf.Not:
		inner, err := requiredExpr("Not", "expr", x.Expr)
		if err != nil {
			return nil, err
		}
		return &logical.Not{Expr: inner}, nil

	case *protobuf.NegativeNode:
		inner, err := requiredExpr("NegativeNode", "expr", x.Expr)
		if err != nil {
			return nil, err
		}
		return &logical.Negative{Expr: inner}, nil

	case *protobuf.BetweenNode:
		inner, err := requiredExpr("BetweenNode", "expr", x.Expr)
		if err != nil {
			return nil, err
		}
		low, err := requiredExpr("BetweenNode", "low", x.Low)
		if err != nil {
			return nil, err
		}
		high, err := requiredExpr("BetweenNode", "high", x.High)
		if err != nil {
			return nil, err
		}
		return &logical.Between{Expr: inner, Negated: x.Negated, Low: low, High: high}, nil

	case *protobuf.CastNode:
		inner, err := requiredExpr("CastNode", "expr", x.Expr)
		if err != nil {
			return nil, err
		}
		if x.ArrowType == nil {
			return nil, qerrors.MissingFieldError("CastNode", "arrow_type")
		}
		to, err := DecodeScalarType("CastNode", x.ArrowType.ScalarType)
		if err != nil {
			return nil, err
		}
		return &logical.Cast{Expr: inner, To: to}, nil

	case *protobuf.SortExprNode:
		inner, err := requiredExpr("SortExprNode", "expr", x.Expr)
		if err != nil {
			return nil, err
		}
		return &logical.Sort{Expr: inner, Asc: x.Asc, NullsFirst: x.NullsFirst}, nil

	case *protobuf.CaseNode, *protobuf.InListNode, *protobuf.WildcardNode:
		return nil, qerrors.UnsupportedVariantError("expression", e.VariantName())
	}
	return nil, qerrors.UnsupportedVariantError("expression", fmt.Sprintf("%T", e.ExprType))
}

// DecodeExprs decodes a list of expressions, stopping at the first error.
func DecodeExprs(exprs []*protobuf.LogicalExprNode) ([]logical.Expr, error) {
	out := make([]logical.Expr, len(exprs))
	for i, e := range exprs {
		le, err := DecodeExpr(e)
		if err != nil {
			return nil, err
		}
		out[i] = le
	}
	return out, nil
}

func requiredExpr(node, field string, e *protobuf.LogicalExprNode) (logical.Expr, error) {
	if e == nil {
		return nil, qerrors.MissingFieldError(node, field)
	}
	return DecodeExpr(e)
}

// DecodeScalarValue returns the Arrow type and Go value of a literal. A
// typed NULL yields a nil value.
func DecodeScalarValue(s *protobuf.ScalarValue) (arrow.DataType, any, error) {
	switch v := s.Value.(type) {
	case protobuf.BoolValue:
		return arrow.FixedWidthTypes.Boolean, bool(v), nil
	case protobuf.Utf8Value:
		return arrow.BinaryTypes.String, string(v), nil
	case protobuf.LargeUtf8Value:
		return arrow.BinaryTypes.LargeString, string(v), nil
	case protobuf.Int8Value:
		return arrow.PrimitiveTypes.Int8, int8(v), nil
	case protobuf.Int16Value:
		return arrow.PrimitiveTypes.Int16, int16(v), nil
	case protobuf.Int32Value:
		return arrow.PrimitiveTypes.Int32, int32(v), nil
	case protobuf.Int64Value:
		return arrow.PrimitiveTypes.Int64, int64(v), nil
	case protobuf.Uint8Value:
		return arrow.PrimitiveTypes.Uint8, uint8(v), nil
	case protobuf.Uint16Value:
		return arrow.PrimitiveTypes.Uint16, uint16(v), nil
	case protobuf.Uint32Value:
		return arrow.PrimitiveTypes.Uint32, uint32(v), nil
	case protobuf.Uint64Value:
		return arrow.PrimitiveTypes.Uint64, uint64(v), nil
	case protobuf.Float32Value:
		return arrow.PrimitiveTypes.Float32, float32(v), nil
	case protobuf.Float64Value:
		return arrow.PrimitiveTypes.Float64, float64(v), nil
	case protobuf.Date32Value:
		return arrow.FixedWidthTypes.Date32, arrow.Date32(v), nil
	case protobuf.Date64Value:
		return arrow.FixedWidthTypes.Date64, arrow.Date64(v), nil
	case protobuf.BinaryValue:
		return arrow.BinaryTypes.Binary, []byte(v), nil
	case protobuf.NullValue:
		dt, err := DecodeScalarType("ScalarValue", protobuf.PrimitiveScalarType(v))
		if err != nil {
			return nil, nil, err
		}
		return dt, nil, nil
	case nil:
		return nil, nil, qerrors.MissingVariantError("scalar value variant", protobuf.Text(s)).
			WithNode("ScalarValue")
	}
	return nil, nil, qerrors.UnsupportedVariantError("scalar value", fmt.Sprintf("%T", s.Value))
}

// EncodeExpr converts a logical expression back to its wire form.
func EncodeExpr(e logical.Expr) (*protobuf.LogicalExprNode, error) {
	switch x := e.(type) {
	case *logical.Column:
		return protobuf.Column(x.Name), nil
	case *logical.Alias:
		inner, err := EncodeExpr(x.Expr)
		if err != nil {
			return nil, err
		}
		return protobuf.Expr(&protobuf.AliasNode{Expr: inner, Alias: x.Name}), nil
	case *logical.Literal:
		v, err := encodeScalarValue(x.Type, x.Value)
		if err != nil {
			return nil, err
		}
		return protobuf.Literal(v), nil
	case *logical.BinaryExpr:
		l, err := EncodeExpr(x.Left)
		if err != nil {
			return nil, err
		}
		r, err := EncodeExpr(x.Right)
		if err != nil {
			return nil, err
		}
		return protobuf.Expr(&protobuf.BinaryExprNode{L: l, Op: x.Op.WireName(), R: r}), nil
	case *logical.Sort:
		inner, err := EncodeExpr(x.Expr)
		if err != nil {
			return nil, err
		}
		return protobuf.Expr(&protobuf.SortExprNode{Expr: inner, Asc: x.Asc, NullsFirst: x.NullsFirst}), nil
	case *logical.AggregateFunction:
		if len(x.Args) != 1 {
			return nil, qerrors.Newf(qerrors.InvalidParameterValue, "%s takes one argument", x.Fun)
		}
		arg, err := EncodeExpr(x.Args[0])
		if err != nil {
			return nil, err
		}
		return protobuf.Expr(&protobuf.AggregateExprNode{
			AggrFunction: protobuf.AggregateFunction(x.Fun),
			Expr:         arg,
			Distinct:     x.Distinct,
		}), nil
	}
	return nil, qerrors.FeatureNotSupportedError(fmt.Sprintf("encoding %T", e))
}

func encodeScalarValue(dt arrow.DataType, v any) (protobuf.ScalarValueType, error) {
	if v == nil {
		t, err := EncodeScalarType(dt)
		if err != nil {
			return nil, err
		}
		return protobuf.NullValue(t), nil
	}
	switch x := v.(type) {
	case bool:
		return protobuf.BoolValue(x), nil
	case string:
		if dt.ID() == arrow.LARGE_STRING {
			return protobuf.LargeUtf8Value(x), nil
		}
		return protobuf.Utf8Value(x), nil
	case int8:
		return protobuf.Int8Value(x), nil
	case int16:
		return protobuf.Int16Value(x), nil
	case int32:
		return protobuf.Int32Value(x), nil
	case int64:
		return protobuf.Int64Value(x), nil
	case uint8:
		return protobuf.Uint8Value(x), nil
	case uint16:
		return protobuf.Uint16Value(x), nil
	case uint32:
		return protobuf.Uint32Value(x), nil
	case uint64:
		return protobuf.Uint64Value(x), nil
	case float32:
		return protobuf.Float32Value(x), nil
	case float64:
		return protobuf.Float64Value(x), nil
	case arrow.Date32:
		return protobuf.Date32Value(x), nil
	case arrow.Date64:
		return protobuf.Date64Value(x), nil
	case []byte:
		return protobuf.BinaryValue(x), nil
	}
	return nil, qerrors.FeatureNotSupportedError(fmt.Sprintf("literal of Go type %T", v))
}
