package protobuf

import "encoding/json"

// LogicalExprNode is the envelope of one expression.
type LogicalExprNode struct {
	ExprType ExprType

	raw json.RawMessage
}

// ExprType is implemented by every expression variant.
type ExprType interface {
	exprVariant() string
}

// ColumnRef references an input column by name.
type ColumnRef struct {
	Name string `json:"name,omitempty"`
}

// AliasNode names an expression.
type AliasNode struct {
	Expr  *LogicalExprNode `json:"expr,omitempty"`
	Alias string           `json:"alias,omitempty"`
}

// BinaryExprNode applies an operator such as "Eq" or "Plus".
type BinaryExprNode struct {
	L  *LogicalExprNode `json:"l,omitempty"`
	R  *LogicalExprNode `json:"r,omitempty"`
	Op string           `json:"op,omitempty"`
}

// AggregateExprNode calls a built-in aggregate.
type AggregateExprNode struct {
	AggrFunction AggregateFunction `json:"aggr_function,omitempty"`
	Expr         *LogicalExprNode  `json:"expr,omitempty"`
	Distinct     bool              `json:"distinct,omitempty"`
}

// AggregateUDFExprNode calls a registered aggregate function.
type AggregateUDFExprNode struct {
	FunName string             `json:"fun_name,omitempty"`
	Args    []*LogicalExprNode `json:"args,omitempty"`
}

// ScalarUDFExprNode calls a registered scalar function.
type ScalarUDFExprNode struct {
	FunName string             `json:"fun_name,omitempty"`
	Args    []*LogicalExprNode `json:"args,omitempty"`
}

// ScalarVariableNode reads a @user or @@system variable.
type ScalarVariableNode struct {
	Names []string `json:"names,omitempty"`
}

type IsNull struct {
	Expr *LogicalExprNode `json:"expr,omitempty"`
}

type IsNotNull struct {
	Expr *LogicalExprNode `json:"expr,omitempty"`
}

type Not struct {
	Expr *LogicalExprNode `json:"expr,omitempty"`
}

type NegativeNode struct {
	Expr *LogicalExprNode `json:"expr,omitempty"`
}

// BetweenNode is expr [NOT] BETWEEN low AND high.
type BetweenNode struct {
	Expr    *LogicalExprNode `json:"expr,omitempty"`
	Negated bool             `json:"negated,omitempty"`
	Low     *LogicalExprNode `json:"low,omitempty"`
	High    *LogicalExprNode `json:"high,omitempty"`
}

// CastNode converts an expression to another type.
type CastNode struct {
	Expr      *LogicalExprNode `json:"expr,omitempty"`
	ArrowType *ArrowType       `json:"arrow_type,omitempty"`
}

// SortExprNode is a sort key.
type SortExprNode struct {
	Expr       *LogicalExprNode `json:"expr,omitempty"`
	Asc        bool             `json:"asc,omitempty"`
	NullsFirst bool             `json:"nulls_first,omitempty"`
}

// CaseNode is a CASE expression. Executors do not support it.
type CaseNode struct {
	Expr         *LogicalExprNode `json:"expr,omitempty"`
	WhenThenExpr []*WhenThen      `json:"when_then_expr,omitempty"`
	ElseExpr     *LogicalExprNode `json:"else_expr,omitempty"`
}

type WhenThen struct {
	WhenExpr *LogicalExprNode `json:"when_expr,omitempty"`
	ThenExpr *LogicalExprNode `json:"then_expr,omitempty"`
}

// InListNode is expr [NOT] IN (list). Executors do not support it.
type InListNode struct {
	Expr    *LogicalExprNode   `json:"expr,omitempty"`
	List    []*LogicalExprNode `json:"list,omitempty"`
	Negated bool               `json:"negated,omitempty"`
}

// WildcardNode is a bare *. Executors do not support it.
type WildcardNode struct{}

func (*ColumnRef) exprVariant() string            { return "column" }
func (*AliasNode) exprVariant() string            { return "alias" }
func (*ScalarValue) exprVariant() string          { return "literal" }
func (*BinaryExprNode) exprVariant() string       { return "binary_expr" }
func (*AggregateExprNode) exprVariant() string    { return "aggregate_expr" }
func (*AggregateUDFExprNode) exprVariant() string { return "aggregate_udf_expr" }
func (*ScalarUDFExprNode) exprVariant() string    { return "scalar_udf_expr" }
func (*ScalarVariableNode) exprVariant() string   { return "scalar_variable" }
func (*IsNull) exprVariant() string               { return "is_null_expr" }
func (*IsNotNull) exprVariant() string            { return "is_not_null_expr" }
func (*Not) exprVariant() string                  { return "not_expr" }
func (*NegativeNode) exprVariant() string         { return "negative" }
func (*BetweenNode) exprVariant() string          { return "between" }
func (*CastNode) exprVariant() string             { return "cast" }
func (*SortExprNode) exprVariant() string         { return "sort" }
func (*CaseNode) exprVariant() string             { return "case_" }
func (*InListNode) exprVariant() string           { return "in_list" }
func (*WildcardNode) exprVariant() string         { return "wildcard" }

var exprVariants = map[string]func() ExprType{
	"column":             func() ExprType { return &ColumnRef{} },
	"alias":              func() ExprType { return &AliasNode{} },
	"literal":            func() ExprType { return &ScalarValue{} },
	"binary_expr":        func() ExprType { return &BinaryExprNode{} },
	"aggregate_expr":     func() ExprType { return &AggregateExprNode{} },
	"aggregate_udf_expr": func() ExprType { return &AggregateUDFExprNode{} },
	"scalar_udf_expr":    func() ExprType { return &ScalarUDFExprNode{} },
	"scalar_variable":    func() ExprType { return &ScalarVariableNode{} },
	"is_null_expr":       func() ExprType { return &IsNull{} },
	"is_not_null_expr":   func() ExprType { return &IsNotNull{} },
	"not_expr":           func() ExprType { return &Not{} },
	"negative":           func() ExprType { return &NegativeNode{} },
	"between":            func() ExprType { return &BetweenNode{} },
	"cast":               func() ExprType { return &CastNode{} },
	"sort":               func() ExprType { return &SortExprNode{} },
	"case_":              func() ExprType { return &CaseNode{} },
	"in_list":            func() ExprType { return &InListNode{} },
	"wildcard":           func() ExprType { return &WildcardNode{} },
}

// VariantName returns the wire name of the expression's variant, or "" when unset.
func (n *LogicalExprNode) VariantName() string {
	if n == nil || n.ExprType == nil {
		return ""
	}
	return n.ExprType.exprVariant()
}

// Column is shorthand for a column reference expression.
func Column(name string) *LogicalExprNode {
	return &LogicalExprNode{ExprType: &ColumnRef{Name: name}}
}

// Expr wraps a variant in an envelope.
func Expr(v ExprType) *LogicalExprNode {
	return &LogicalExprNode{ExprType: v}
}

// Plan wraps a variant in an envelope.
func Plan(v PhysicalPlanType) *PhysicalPlanNode {
	return &PhysicalPlanNode{PhysicalPlanType: v}
}
