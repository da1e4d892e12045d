// Package logical defines schema-free expressions decoded from plans. They are
// compiled into physical expressions against a concrete input schema by the
// physical planner.
package logical

import (
	"fmt"
	"strings"

	"github.com/apache/arrow/go/v13/arrow"

	"github.com/dshills/QuantaDist/internal/sql/types"
)

// Expr represents an expression in a plan.
type Expr interface {
	// String returns a string representation.
	String() string
	expr()
}

// Column references an input column by name.
type Column struct {
	Name string
}

func (c *Column) String() string { return c.Name }

// Literal is a constant of a given Arrow type. A nil Value is SQL NULL.
type Literal struct {
	Type  arrow.DataType
	Value any
}

func (l *Literal) String() string {
	switch v := l.Value.(type) {
	case nil:
		return "NULL"
	case string:
		return fmt.Sprintf("'%s'", strings.ReplaceAll(v, "'", "''"))
	default:
		return types.FormatValue(v)
	}
}

// BinaryExpr represents a binary operation.
type BinaryExpr struct {
	Left  Expr
	Op    Operator
	Right Expr
}

func (b *BinaryExpr) String() string {
	return fmt.Sprintf("%s %s %s", b.Left, b.Op, b.Right)
}

// Not negates a boolean expression.
type Not struct {
	Expr Expr
}

func (n *Not) String() string { return fmt.Sprintf("NOT %s", n.Expr) }

// IsNull tests an expression for NULL.
type IsNull struct {
	Expr Expr
}

func (n *IsNull) String() string { return fmt.Sprintf("%s IS NULL", n.Expr) }

// IsNotNull tests an expression for non-NULL.
type IsNotNull struct {
	Expr Expr
}

func (n *IsNotNull) String() string { return fmt.Sprintf("%s IS NOT NULL", n.Expr) }

// Negative is arithmetic negation.
type Negative struct {
	Expr Expr
}

func (n *Negative) String() string { return fmt.Sprintf("(- %s)", n.Expr) }

// Between is expr [NOT] BETWEEN low AND high.
type Between struct {
	Expr    Expr
	Negated bool
	Low     Expr
	High    Expr
}

func (b *Between) String() string {
	if b.Negated {
		return fmt.Sprintf("%s NOT BETWEEN %s AND %s", b.Expr, b.Low, b.High)
	}
	return fmt.Sprintf("%s BETWEEN %s AND %s", b.Expr, b.Low, b.High)
}

// Cast converts an expression to another type.
type Cast struct {
	Expr Expr
	To   arrow.DataType
}

func (c *Cast) String() string { return fmt.Sprintf("CAST(%s AS %s)", c.Expr, c.To) }

// Alias names an expression.
type Alias struct {
	Expr Expr
	Name string
}

func (a *Alias) String() string { return fmt.Sprintf("%s AS %s", a.Expr, a.Name) }

// AggregateFunction calls a built-in aggregate.
type AggregateFunction struct {
	Fun      AggregateFunc
	Args     []Expr
	Distinct bool
}

func (a *AggregateFunction) String() string {
	return callString(a.Fun.String(), a.Distinct, a.Args)
}

// AggregateUDF calls a registered aggregate function.
type AggregateUDF struct {
	Name string
	Args []Expr
}

func (a *AggregateUDF) String() string { return callString(a.Name, false, a.Args) }

// ScalarUDF calls a registered scalar function.
type ScalarUDF struct {
	Name string
	Args []Expr
}

func (s *ScalarUDF) String() string { return callString(s.Name, false, s.Args) }

// ScalarVariable is a @user or @@system variable.
type ScalarVariable struct {
	Names []string
}

func (s *ScalarVariable) String() string { return strings.Join(s.Names, ".") }

// Sort is a sort descriptor; only valid as a sort key.
type Sort struct {
	Expr       Expr
	Asc        bool
	NullsFirst bool
}

func (s *Sort) String() string {
	dir := "DESC"
	if s.Asc {
		dir = "ASC"
	}
	nulls := "NULLS LAST"
	if s.NullsFirst {
		nulls = "NULLS FIRST"
	}
	return fmt.Sprintf("%s %s %s", s.Expr, dir, nulls)
}

func (*Column) expr()            {}
func (*Literal) expr()           {}
func (*BinaryExpr) expr()        {}
func (*Not) expr()               {}
func (*IsNull) expr()            {}
func (*IsNotNull) expr()         {}
func (*Negative) expr()          {}
func (*Between) expr()           {}
func (*Cast) expr()              {}
func (*Alias) expr()             {}
func (*AggregateFunction) expr() {}
func (*AggregateUDF) expr()      {}
func (*ScalarUDF) expr()         {}
func (*ScalarVariable) expr()    {}
func (*Sort) expr()              {}

// Name returns the output column name an expression produces when it is
// projected without an explicit name.
func Name(e Expr) string {
	switch x := e.(type) {
	case *Alias:
		return x.Name
	case *Column:
		return x.Name
	default:
		return e.String()
	}
}

func callString(name string, distinct bool, args []Expr) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	if distinct {
		return fmt.Sprintf("%s(DISTINCT %s)", name, strings.Join(parts, ", "))
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(parts, ", "))
}
