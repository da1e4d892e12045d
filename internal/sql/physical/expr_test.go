package physical

import (
	"testing"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/dshills/QuantaDist/internal/errors"
	"github.com/dshills/QuantaDist/internal/sql/logical"
	"github.com/dshills/QuantaDist/internal/sql/types"
)

var testSchema = arrow.NewSchema([]arrow.Field{
	{Name: "a", Type: arrow.PrimitiveTypes.Int32},
	{Name: "b", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "s", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "f", Type: arrow.FixedWidthTypes.Boolean, Nullable: true},
}, nil)

func testBatch(t *testing.T) arrow.Record {
	t.Helper()
	rec, err := types.RecordFromColumns(memory.NewGoAllocator(), testSchema, [][]any{
		{int32(1), int32(2), int32(3), int32(4)},
		{1.5, nil, 3.0, 0.5},
		{"x", "y", nil, "z"},
		{true, false, nil, true},
	})
	require.NoError(t, err)
	t.Cleanup(rec.Release)
	return rec
}

func col(name string) *logical.Column { return &logical.Column{Name: name} }

func i64(v int64) *logical.Literal {
	return &logical.Literal{Type: arrow.PrimitiveTypes.Int64, Value: v}
}

func evalValues(t *testing.T, e logical.Expr) []any {
	t.Helper()
	p, err := CreatePhysicalExpr(e, testSchema, NewExecutionContextState())
	require.NoError(t, err)
	arr, err := p.Evaluate(testBatch(t))
	require.NoError(t, err)
	defer arr.Release()
	out := make([]any, arr.Len())
	for i := range out {
		out[i] = types.ValueAt(arr, i)
	}
	return out
}

func TestColumnResolution(t *testing.T) {
	p, err := CreatePhysicalExpr(col("s"), testSchema, NewExecutionContextState())
	require.NoError(t, err)
	c, ok := p.(*Column)
	require.True(t, ok)
	assert.Equal(t, 2, c.Index)

	_, err = CreatePhysicalExpr(col("missing"), testSchema, NewExecutionContextState())
	assert.True(t, qerrors.IsError(err, qerrors.UndefinedColumn))

	dup := arrow.NewSchema([]arrow.Field{
		{Name: "a", Type: arrow.PrimitiveTypes.Int32},
		{Name: "a", Type: arrow.PrimitiveTypes.Int64},
	}, nil)
	_, err = NewColumn("a", dup)
	assert.True(t, qerrors.IsError(err, qerrors.AmbiguousColumn))
}

func TestBinaryExpressions(t *testing.T) {
	tests := []struct {
		name string
		expr logical.Expr
		want []any
	}{
		{
			name: "comparison",
			expr: &logical.BinaryExpr{Left: col("a"), Op: logical.OpGtEq, Right: i64(3)},
			want: []any{false, false, true, true},
		},
		{
			name: "comparison with null",
			expr: &logical.BinaryExpr{Left: col("b"), Op: logical.OpLt, Right: i64(2)},
			want: []any{true, nil, false, true},
		},
		{
			name: "integer arithmetic",
			expr: &logical.BinaryExpr{Left: col("a"), Op: logical.OpMultiply, Right: i64(10)},
			want: []any{int64(10), int64(20), int64(30), int64(40)},
		},
		{
			name: "float arithmetic",
			expr: &logical.BinaryExpr{Left: col("a"), Op: logical.OpPlus, Right: col("b")},
			want: []any{2.5, nil, 6.0, 4.5},
		},
		{
			name: "modulo",
			expr: &logical.BinaryExpr{Left: col("a"), Op: logical.OpModulo, Right: i64(2)},
			want: []any{int64(1), int64(0), int64(1), int64(0)},
		},
		{
			name: "three-valued and",
			expr: &logical.BinaryExpr{
				Left:  col("f"),
				Op:    logical.OpAnd,
				Right: &logical.Literal{Type: arrow.FixedWidthTypes.Boolean, Value: true},
			},
			want: []any{true, false, nil, true},
		},
		{
			name: "three-valued or",
			expr: &logical.BinaryExpr{
				Left:  col("f"),
				Op:    logical.OpOr,
				Right: &logical.Literal{Type: arrow.FixedWidthTypes.Boolean, Value: true},
			},
			want: []any{true, true, true, true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evalValues(t, tt.expr))
		})
	}
}

func TestBinaryTypeErrors(t *testing.T) {
	state := NewExecutionContextState()

	_, err := CreatePhysicalExpr(&logical.BinaryExpr{Left: col("s"), Op: logical.OpPlus, Right: i64(1)}, testSchema, state)
	assert.True(t, qerrors.IsError(err, qerrors.DatatypeMismatch))

	_, err = CreatePhysicalExpr(&logical.BinaryExpr{Left: col("a"), Op: logical.OpAnd, Right: col("f")}, testSchema, state)
	assert.True(t, qerrors.IsError(err, qerrors.DatatypeMismatch))

	p, err := CreatePhysicalExpr(&logical.BinaryExpr{Left: col("a"), Op: logical.OpDivide, Right: i64(0)}, testSchema, state)
	require.NoError(t, err)
	_, err = p.Evaluate(testBatch(t))
	assert.True(t, qerrors.IsError(err, qerrors.DivisionByZero))
}

func TestUnaryExpressions(t *testing.T) {
	assert.Equal(t, []any{false, true, nil, false}, evalValues(t, &logical.Not{Expr: col("f")}))
	assert.Equal(t, []any{false, false, true, false}, evalValues(t, &logical.IsNull{Expr: col("s")}))
	assert.Equal(t, []any{true, false, true, true}, evalValues(t, &logical.IsNotNull{Expr: col("b")}))
	assert.Equal(t, []any{int32(-1), int32(-2), int32(-3), int32(-4)}, evalValues(t, &logical.Negative{Expr: col("a")}))
	assert.Equal(t, []any{"1", "2", "3", "4"}, evalValues(t, &logical.Cast{Expr: col("a"), To: arrow.BinaryTypes.String}))
	assert.Equal(t, []any{int64(1), nil, int64(3), int64(0)}, evalValues(t, &logical.Cast{Expr: col("b"), To: arrow.PrimitiveTypes.Int64}))

	_, err := CreatePhysicalExpr(&logical.Negative{Expr: col("s")}, testSchema, NewExecutionContextState())
	assert.True(t, qerrors.IsError(err, qerrors.DatatypeMismatch))

	_, err = CreatePhysicalExpr(&logical.Cast{Expr: col("f"), To: arrow.FixedWidthTypes.Date32}, testSchema, NewExecutionContextState())
	assert.True(t, qerrors.IsError(err, qerrors.CannotCoerce))
}

func TestBetween(t *testing.T) {
	between := &logical.Between{Expr: col("a"), Low: i64(2), High: i64(3)}
	assert.Equal(t, []any{false, true, true, false}, evalValues(t, between))

	between.Negated = true
	assert.Equal(t, []any{true, false, false, true}, evalValues(t, between))
}

func TestScalarFunctionsAndVariables(t *testing.T) {
	state := NewExecutionContextState()
	state.RegisterScalarFunction(UpperFunction)
	state.RegisterVariable(VarSystem, MapVarProvider{"@@version": "1.0"})

	p, err := CreatePhysicalExpr(&logical.ScalarUDF{Name: "upper", Args: []logical.Expr{col("s")}}, testSchema, state)
	require.NoError(t, err)
	arr, err := p.Evaluate(testBatch(t))
	require.NoError(t, err)
	defer arr.Release()
	assert.Equal(t, "X", types.ValueAt(arr, 0))
	assert.Nil(t, types.ValueAt(arr, 2))

	_, err = CreatePhysicalExpr(&logical.ScalarUDF{Name: "lower", Args: []logical.Expr{col("s")}}, testSchema, state)
	assert.True(t, qerrors.IsError(err, qerrors.UndefinedFunction))

	_, err = CreatePhysicalExpr(&logical.ScalarUDF{Name: "upper", Args: []logical.Expr{col("a")}}, testSchema, state)
	assert.True(t, qerrors.IsError(err, qerrors.DatatypeMismatch))

	v, err := CreatePhysicalExpr(&logical.ScalarVariable{Names: []string{"@@version"}}, testSchema, state)
	require.NoError(t, err)
	lit, ok := v.(*Literal)
	require.True(t, ok)
	assert.Equal(t, "1.0", lit.Value)

	_, err = CreatePhysicalExpr(&logical.ScalarVariable{Names: []string{"@name"}}, testSchema, state)
	assert.True(t, qerrors.IsError(err, qerrors.UndefinedObject))
}

func TestRejectedExpressions(t *testing.T) {
	state := NewExecutionContextState()
	sum := &logical.AggregateFunction{Fun: logical.AggSum, Args: []logical.Expr{col("a")}}
	_, err := CreatePhysicalExpr(sum, testSchema, state)
	assert.True(t, qerrors.IsError(err, qerrors.InvalidPlan))

	_, err = CreatePhysicalExpr(&logical.Sort{Expr: col("a"), Asc: true}, testSchema, state)
	assert.True(t, qerrors.IsError(err, qerrors.InvalidPlan))
}

func TestCreateSortExpr(t *testing.T) {
	s, err := CreateSortExpr(&logical.Sort{Expr: col("b"), Asc: false, NullsFirst: true}, testSchema, NewExecutionContextState())
	require.NoError(t, err)
	assert.True(t, s.Options.Descending)
	assert.True(t, s.Options.NullsFirst)
	assert.Equal(t, "b DESC NULLS FIRST", s.String())
}

func TestStateCloneIsolation(t *testing.T) {
	base := NewExecutionContextState()
	clone := base.Clone()
	clone.RegisterScalarFunction(UpperFunction)
	assert.Empty(t, base.ScalarFunctions)
	assert.Len(t, clone.ScalarFunctions, 1)
	assert.Equal(t, DefaultBatchSize, clone.Config.BatchSize)
}
