package logical

import (
	"testing"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/stretchr/testify/assert"
)

func TestExprString(t *testing.T) {
	sum := &AggregateFunction{Fun: AggSum, Args: []Expr{&Column{Name: "b"}}}
	assert.Equal(t, "SUM(b)", sum.String())

	pred := &BinaryExpr{
		Left:  &Column{Name: "a"},
		Op:    OpGtEq,
		Right: &Literal{Type: arrow.PrimitiveTypes.Int64, Value: int64(10)},
	}
	assert.Equal(t, "a >= 10", pred.String())

	lit := &Literal{Type: arrow.BinaryTypes.String, Value: "it's"}
	assert.Equal(t, "'it''s'", lit.String())

	sort := &Sort{Expr: &Column{Name: "a"}, Asc: false, NullsFirst: true}
	assert.Equal(t, "a DESC NULLS FIRST", sort.String())

	count := &AggregateFunction{Fun: AggCount, Args: []Expr{&Column{Name: "x"}}, Distinct: true}
	assert.Equal(t, "COUNT(DISTINCT x)", count.String())
}

func TestName(t *testing.T) {
	assert.Equal(t, "a", Name(&Column{Name: "a"}))
	assert.Equal(t, "total", Name(&Alias{Expr: &Column{Name: "a"}, Name: "total"}))
	assert.Equal(t, "NOT flag", Name(&Not{Expr: &Column{Name: "flag"}}))
}

func TestParseOperator(t *testing.T) {
	for name := range operatorNames {
		op, ok := ParseOperator(name)
		assert.True(t, ok)
		assert.Equal(t, name, op.WireName())
	}
	_, ok := ParseOperator("Like")
	assert.False(t, ok)

	assert.True(t, OpLt.IsComparison())
	assert.True(t, OpModulo.IsArithmetic())
	assert.True(t, OpOr.IsLogical())
	assert.False(t, AggregateFunc(9).Valid())
}
