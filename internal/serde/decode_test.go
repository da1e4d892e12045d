package serde

import (
	"testing"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/dshills/QuantaDist/internal/errors"
	"github.com/dshills/QuantaDist/internal/serde/protobuf"
	"github.com/dshills/QuantaDist/internal/shuffle"
	"github.com/dshills/QuantaDist/internal/sql/logical"
)

func TestDecodeSchema(t *testing.T) {
	schema, err := DecodeSchema("EmptyExecNode", &protobuf.Schema{Columns: []*protobuf.Field{
		protobuf.NewField("id", protobuf.PrimitiveScalarType_INT32, false),
		protobuf.NewField("born", protobuf.PrimitiveScalarType_DATE32, true),
		protobuf.NewField("blob", protobuf.PrimitiveScalarType_BINARY, true),
	}})
	require.NoError(t, err)
	require.Equal(t, 3, schema.NumFields())
	assert.Equal(t, arrow.PrimitiveTypes.Int32, schema.Field(0).Type)
	assert.False(t, schema.Field(0).Nullable)
	assert.Equal(t, arrow.FixedWidthTypes.Date32, schema.Field(1).Type)
	assert.True(t, schema.Field(2).Nullable)

	encoded, err := EncodeSchema(schema)
	require.NoError(t, err)
	again, err := DecodeSchema("EmptyExecNode", encoded)
	require.NoError(t, err)
	assert.True(t, schema.Equal(again))
}

func TestDecodeSchemaErrors(t *testing.T) {
	_, err := DecodeSchema("EmptyExecNode", nil)
	assert.Equal(t, "schema", qerrors.GetError(err).Field)

	_, err = DecodeSchema("EmptyExecNode", &protobuf.Schema{Columns: []*protobuf.Field{{Name: "x"}}})
	qe := qerrors.GetError(err)
	assert.Equal(t, qerrors.MissingRequiredField, qe.Code)
	assert.Equal(t, "x", qe.Column)

	_, err = DecodeSchema("EmptyExecNode", &protobuf.Schema{Columns: []*protobuf.Field{
		protobuf.NewField("t", protobuf.PrimitiveScalarType_TIME_NANOSECOND, true),
	}})
	assert.True(t, qerrors.IsError(err, qerrors.UnsupportedVariant))

	_, err = DecodeSchema("EmptyExecNode", &protobuf.Schema{Columns: []*protobuf.Field{
		protobuf.NewField("x", protobuf.PrimitiveScalarType(42), true),
	}})
	qe = qerrors.GetError(err)
	assert.Equal(t, qerrors.UnknownEnumValue, qe.Code)
	assert.Equal(t, "x", qe.Column)

	_, err = EncodeScalarType(arrow.FixedWidthTypes.Timestamp_us)
	assert.True(t, qerrors.IsError(err, qerrors.FeatureNotSupported))
}

func TestDecodeExpr(t *testing.T) {
	tests := []struct {
		name string
		in   *protobuf.LogicalExprNode
		want logical.Expr
	}{
		{"column", protobuf.Column("a"), &logical.Column{Name: "a"}},
		{"alias", protobuf.Expr(&protobuf.AliasNode{Expr: protobuf.Column("a"), Alias: "b"}),
			&logical.Alias{Expr: &logical.Column{Name: "a"}, Name: "b"}},
		{"binary", protobuf.Expr(&protobuf.BinaryExprNode{
			L: protobuf.Column("a"), Op: "Plus", R: protobuf.Literal(protobuf.Int32Value(1)),
		}), &logical.BinaryExpr{
			Left: &logical.Column{Name: "a"}, Op: logical.OpPlus,
			Right: &logical.Literal{Type: arrow.PrimitiveTypes.Int32, Value: int32(1)},
		}},
		{"between", protobuf.Expr(&protobuf.BetweenNode{
			Expr: protobuf.Column("a"), Negated: true,
			Low: protobuf.Literal(protobuf.Int64Value(1)), High: protobuf.Literal(protobuf.Int64Value(9)),
		}), &logical.Between{
			Expr: &logical.Column{Name: "a"}, Negated: true,
			Low:  &logical.Literal{Type: arrow.PrimitiveTypes.Int64, Value: int64(1)},
			High: &logical.Literal{Type: arrow.PrimitiveTypes.Int64, Value: int64(9)},
		}},
		{"cast", protobuf.Expr(&protobuf.CastNode{
			Expr: protobuf.Column("a"), ArrowType: &protobuf.ArrowType{ScalarType: protobuf.PrimitiveScalarType_FLOAT64},
		}), &logical.Cast{Expr: &logical.Column{Name: "a"}, To: arrow.PrimitiveTypes.Float64}},
		{"typed null", protobuf.Literal(protobuf.NullValue(protobuf.PrimitiveScalarType_UTF8)),
			&logical.Literal{Type: arrow.BinaryTypes.String}},
		{"count", protobuf.Expr(&protobuf.AggregateExprNode{
			AggrFunction: protobuf.AggregateFunction_COUNT, Expr: protobuf.Column("a"),
		}), &logical.AggregateFunction{Fun: logical.AggCount, Args: []logical.Expr{&logical.Column{Name: "a"}}}},
		{"variable", protobuf.Expr(&protobuf.ScalarVariableNode{Names: []string{"@user"}}),
			&logical.ScalarVariable{Names: []string{"@user"}}},
		{"sort", protobuf.Expr(&protobuf.SortExprNode{Expr: protobuf.Column("a"), NullsFirst: true}),
			&logical.Sort{Expr: &logical.Column{Name: "a"}, NullsFirst: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeExpr(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want.String(), got.String())
			assert.IsType(t, tt.want, got)
		})
	}
}

func TestDecodeExprErrors(t *testing.T) {
	tests := []struct {
		name string
		in   *protobuf.LogicalExprNode
		code string
		node string
	}{
		{"no variant", &protobuf.LogicalExprNode{}, qerrors.MissingVariant, "LogicalExprNode"},
		{"empty column", protobuf.Column(""), qerrors.MissingRequiredField, "ColumnRef"},
		{"no operand", protobuf.Expr(&protobuf.BinaryExprNode{L: protobuf.Column("a"), Op: "Eq"}), qerrors.MissingRequiredField, "BinaryExprNode"},
		{"bad operator", protobuf.Expr(&protobuf.BinaryExprNode{
			L: protobuf.Column("a"), Op: "Like", R: protobuf.Column("b"),
		}), qerrors.UnsupportedVariant, "BinaryExprNode"},
		{"bad aggregate", protobuf.Expr(&protobuf.AggregateExprNode{
			AggrFunction: protobuf.AggregateFunction(11), Expr: protobuf.Column("a"),
		}), qerrors.UnknownEnumValue, "AggregateExprNode"},
		{"case", protobuf.Expr(&protobuf.CaseNode{}), qerrors.UnsupportedVariant, "case_"},
		{"wildcard", protobuf.Expr(&protobuf.WildcardNode{}), qerrors.UnsupportedVariant, "wildcard"},
		{"empty literal", protobuf.Expr(&protobuf.ScalarValue{}), qerrors.MissingVariant, "ScalarValue"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeExpr(tt.in)
			require.Error(t, err)
			qe := qerrors.GetError(err)
			assert.Equal(t, tt.code, qe.Code, err.Error())
			assert.Equal(t, tt.node, qe.Node)
		})
	}
}

func TestEncodeExprRoundTrip(t *testing.T) {
	exprs := []logical.Expr{
		&logical.Alias{Name: "total", Expr: &logical.BinaryExpr{
			Left:  &logical.Column{Name: "a"},
			Op:    logical.OpMultiply,
			Right: &logical.Literal{Type: arrow.PrimitiveTypes.Float64, Value: 1.5},
		}},
		&logical.Sort{Expr: &logical.Column{Name: "b"}, Asc: true},
		&logical.AggregateFunction{Fun: logical.AggMax, Args: []logical.Expr{&logical.Column{Name: "c"}}},
		&logical.Literal{Type: arrow.FixedWidthTypes.Date32, Value: arrow.Date32(18000)},
	}
	for _, e := range exprs {
		wire, err := EncodeExpr(e)
		require.NoError(t, err)
		back, err := DecodeExpr(wire)
		require.NoError(t, err)
		assert.Equal(t, e.String(), back.String())
	}

	_, err := EncodeExpr(&logical.Not{Expr: &logical.Column{Name: "a"}})
	assert.True(t, qerrors.IsError(err, qerrors.FeatureNotSupported))
}

func TestDecodePartitionLocation(t *testing.T) {
	loc, err := DecodePartitionLocation(&protobuf.PartitionLocation{
		PartitionId: &protobuf.PartitionId{JobId: "job", StageId: 2, PartitionId: 5},
		ExecutorMeta: []*protobuf.ExecutorMetadata{
			{Id: "b", Host: "10.0.0.2", Port: 50051},
			{Id: "a", Host: "10.0.0.1", Port: 50052},
		},
	})
	require.NoError(t, err)
	want := shuffle.PartitionLocation{
		PartitionID: shuffle.PartitionID{JobID: "job", StageID: 2, PartitionID: 5},
		Executors: []shuffle.ExecutorMeta{
			{ID: "b", Host: "10.0.0.2", Port: 50051},
			{ID: "a", Host: "10.0.0.1", Port: 50052},
		},
	}
	if diff := cmp.Diff(want, loc); diff != "" {
		t.Errorf("location mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodePartitionLocationErrors(t *testing.T) {
	pid := &protobuf.PartitionId{JobId: "job"}
	good := &protobuf.ExecutorMetadata{Id: "a", Host: "h", Port: 1}
	tests := []struct {
		name string
		in   *protobuf.PartitionLocation
		code string
	}{
		{"nil", nil, qerrors.MissingRequiredField},
		{"no partition id", &protobuf.PartitionLocation{ExecutorMeta: []*protobuf.ExecutorMetadata{good}}, qerrors.MissingRequiredField},
		{"no job", &protobuf.PartitionLocation{PartitionId: &protobuf.PartitionId{}, ExecutorMeta: []*protobuf.ExecutorMetadata{good}}, qerrors.MissingRequiredField},
		{"no executors", &protobuf.PartitionLocation{PartitionId: pid}, qerrors.MissingRequiredField},
		{"no executor id", &protobuf.PartitionLocation{PartitionId: pid, ExecutorMeta: []*protobuf.ExecutorMetadata{{Host: "h", Port: 1}}}, qerrors.MissingRequiredField},
		{"no host", &protobuf.PartitionLocation{PartitionId: pid, ExecutorMeta: []*protobuf.ExecutorMetadata{good, {Id: "b", Port: 1}}}, qerrors.InvalidPartition},
		{"port zero", &protobuf.PartitionLocation{PartitionId: pid, ExecutorMeta: []*protobuf.ExecutorMetadata{{Id: "b", Host: "h"}}}, qerrors.InvalidPartition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePartitionLocation(tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.code, qerrors.CodeOf(err))
		})
	}
}
