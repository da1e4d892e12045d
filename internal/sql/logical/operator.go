package logical

// Operator represents a binary operator.
type Operator int

const (
	// Comparison operators
	OpEq Operator = iota
	OpNotEq
	OpLt
	OpLtEq
	OpGt
	OpGtEq

	// Arithmetic operators
	OpPlus
	OpMinus
	OpMultiply
	OpDivide
	OpModulo

	// Logical operators
	OpAnd
	OpOr
)

var operatorSymbols = map[Operator]string{
	OpEq:       "=",
	OpNotEq:    "!=",
	OpLt:       "<",
	OpLtEq:     "<=",
	OpGt:       ">",
	OpGtEq:     ">=",
	OpPlus:     "+",
	OpMinus:    "-",
	OpMultiply: "*",
	OpDivide:   "/",
	OpModulo:   "%",
	OpAnd:      "AND",
	OpOr:       "OR",
}

// wire names as sent by the scheduler
var operatorNames = map[string]Operator{
	"Eq":       OpEq,
	"NotEq":    OpNotEq,
	"Lt":       OpLt,
	"LtEq":     OpLtEq,
	"Gt":       OpGt,
	"GtEq":     OpGtEq,
	"Plus":     OpPlus,
	"Minus":    OpMinus,
	"Multiply": OpMultiply,
	"Divide":   OpDivide,
	"Modulus":  OpModulo,
	"And":      OpAnd,
	"Or":       OpOr,
}

func (o Operator) String() string {
	if s, ok := operatorSymbols[o]; ok {
		return s
	}
	return "?"
}

// ParseOperator maps a wire operator name to an Operator.
func ParseOperator(name string) (Operator, bool) {
	op, ok := operatorNames[name]
	return op, ok
}

// WireName returns the wire name of the operator.
func (o Operator) WireName() string {
	for name, op := range operatorNames {
		if op == o {
			return name
		}
	}
	return ""
}

// IsComparison reports whether the operator yields a boolean from two comparable operands.
func (o Operator) IsComparison() bool {
	return o >= OpEq && o <= OpGtEq
}

// IsArithmetic reports whether the operator is numeric arithmetic.
func (o Operator) IsArithmetic() bool {
	return o >= OpPlus && o <= OpModulo
}

// IsLogical reports whether the operator is AND or OR.
func (o Operator) IsLogical() bool {
	return o == OpAnd || o == OpOr
}

// AggregateFunc identifies a built-in aggregate function.
type AggregateFunc int32

// Codes match the scheduler's AggregateFunction enumeration.
const (
	AggMin AggregateFunc = iota
	AggMax
	AggSum
	AggAvg
	AggCount
)

func (f AggregateFunc) String() string {
	switch f {
	case AggMin:
		return "MIN"
	case AggMax:
		return "MAX"
	case AggSum:
		return "SUM"
	case AggAvg:
		return "AVG"
	case AggCount:
		return "COUNT"
	}
	return "UNKNOWN"
}

// Valid reports whether f is a known aggregate code.
func (f AggregateFunc) Valid() bool {
	return f >= AggMin && f <= AggCount
}
