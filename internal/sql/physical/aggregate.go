package physical

import (
	"fmt"

	"github.com/apache/arrow/go/v13/arrow"

	qerrors "github.com/dshills/QuantaDist/internal/errors"
	"github.com/dshills/QuantaDist/internal/sql/logical"
	"github.com/dshills/QuantaDist/internal/sql/types"
)

// AggregateMode is the stage of a two-phase aggregation.
type AggregateMode int32

const (
	// AggregatePartial folds raw input rows into per-partition states.
	AggregatePartial AggregateMode = iota
	// AggregateFinal merges partial states and produces final values.
	AggregateFinal
)

func (m AggregateMode) String() string {
	switch m {
	case AggregatePartial:
		return "Partial"
	case AggregateFinal:
		return "Final"
	}
	return fmt.Sprintf("AggregateMode(%d)", int32(m))
}

// Valid reports whether m is a known mode.
func (m AggregateMode) Valid() bool {
	return m == AggregatePartial || m == AggregateFinal
}

// Accumulator folds the rows of one group.
type Accumulator interface {
	// Update folds one input row; values line up with Expressions() in
	// partial mode.
	Update(values []any) error
	// Merge folds one row of another accumulator's state.
	Merge(states []any) error
	// State returns the intermediate state, one value per state field.
	State() ([]any, error)
	// Evaluate returns the final value.
	Evaluate() (any, error)
}

// AggregateExpr is an aggregate bound to an input schema for one mode.
type AggregateExpr interface {
	Name() string
	Mode() AggregateMode
	// Field is the final output field.
	Field() arrow.Field
	// StateFields are the columns a partial stage emits for this aggregate.
	StateFields() []arrow.Field
	// Expressions are evaluated per input batch: raw arguments in partial
	// mode, state columns in final mode.
	Expressions() []PhysicalExpr
	CreateAccumulator() Accumulator
}

func stateFieldName(aggName, state string) string {
	return fmt.Sprintf("%s[%s]", aggName, state)
}

// BuiltinAggregate is one of MIN, MAX, SUM, AVG, COUNT.
type BuiltinAggregate struct {
	Fun        logical.AggregateFunc
	name       string
	mode       AggregateMode
	args       []PhysicalExpr
	inputType  arrow.DataType
	resultType arrow.DataType
}

// NewBuiltinAggregate validates the argument type for fun. In final mode
// inputType is the type of the first state column.
func NewBuiltinAggregate(fun logical.AggregateFunc, name string, mode AggregateMode, args []PhysicalExpr, inputType arrow.DataType) (*BuiltinAggregate, error) {
	a := &BuiltinAggregate{Fun: fun, name: name, mode: mode, args: args, inputType: inputType}
	switch fun {
	case logical.AggSum:
		if !types.IsNumeric(inputType) && !types.IsNull(inputType) {
			return nil, qerrors.Newf(qerrors.DatatypeMismatch, "SUM does not support type %s", inputType).
				WithDataType(inputType.String())
		}
		a.resultType = arrow.PrimitiveTypes.Int64
		if types.IsFloat(inputType) {
			a.resultType = arrow.PrimitiveTypes.Float64
		}
	case logical.AggAvg:
		if mode == AggregatePartial && !types.IsNumeric(inputType) && !types.IsNull(inputType) {
			return nil, qerrors.Newf(qerrors.DatatypeMismatch, "AVG does not support type %s", inputType).
				WithDataType(inputType.String())
		}
		a.resultType = arrow.PrimitiveTypes.Float64
	case logical.AggCount:
		a.resultType = arrow.PrimitiveTypes.Int64
	case logical.AggMin, logical.AggMax:
		a.resultType = inputType
	default:
		return nil, qerrors.UnknownEnumError("AggregateExpr", "AggregateFunction", int32(fun))
	}
	return a, nil
}

func (a *BuiltinAggregate) Name() string                { return a.name }
func (a *BuiltinAggregate) Mode() AggregateMode         { return a.mode }
func (a *BuiltinAggregate) Expressions() []PhysicalExpr { return a.args }

func (a *BuiltinAggregate) Field() arrow.Field {
	return arrow.Field{Name: a.name, Type: a.resultType, Nullable: a.Fun != logical.AggCount}
}

func (a *BuiltinAggregate) StateFields() []arrow.Field {
	switch a.Fun {
	case logical.AggCount:
		return []arrow.Field{{Name: stateFieldName(a.name, "count"), Type: arrow.PrimitiveTypes.Int64}}
	case logical.AggAvg:
		return []arrow.Field{
			{Name: stateFieldName(a.name, "count"), Type: arrow.PrimitiveTypes.Int64},
			{Name: stateFieldName(a.name, "sum"), Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		}
	case logical.AggSum:
		return []arrow.Field{{Name: stateFieldName(a.name, "sum"), Type: a.resultType, Nullable: true}}
	case logical.AggMin:
		return []arrow.Field{{Name: stateFieldName(a.name, "min"), Type: a.resultType, Nullable: true}}
	default:
		return []arrow.Field{{Name: stateFieldName(a.name, "max"), Type: a.resultType, Nullable: true}}
	}
}

// NumStates returns the number of state columns fun uses.
func NumStates(fun logical.AggregateFunc) int {
	if fun == logical.AggAvg {
		return 2
	}
	return 1
}

func (a *BuiltinAggregate) CreateAccumulator() Accumulator {
	switch a.Fun {
	case logical.AggSum:
		return &sumAccumulator{float: a.resultType.ID() == arrow.FLOAT64}
	case logical.AggAvg:
		return &avgAccumulator{}
	case logical.AggCount:
		return &countAccumulator{}
	case logical.AggMin:
		return &minMaxAccumulator{}
	default:
		return &minMaxAccumulator{max: true}
	}
}

func (a *BuiltinAggregate) String() string {
	return fmt.Sprintf("%s AS %s", a.Fun, a.name)
}

type sumAccumulator struct {
	float bool
	seen  bool
	isum  int64
	fsum  float64
}

func (s *sumAccumulator) add(v any) {
	if v == nil {
		return
	}
	s.seen = true
	if s.float {
		f, _ := types.AsFloat64(v)
		s.fsum += f
		return
	}
	i, _ := types.AsInt64(v)
	s.isum += i
}

func (s *sumAccumulator) Update(values []any) error { s.add(values[0]); return nil }
func (s *sumAccumulator) Merge(states []any) error  { s.add(states[0]); return nil }

func (s *sumAccumulator) Evaluate() (any, error) {
	switch {
	case !s.seen:
		return nil, nil
	case s.float:
		return s.fsum, nil
	default:
		return s.isum, nil
	}
}

func (s *sumAccumulator) State() ([]any, error) {
	v, err := s.Evaluate()
	return []any{v}, err
}

type countAccumulator struct {
	n int64
}

func (c *countAccumulator) Update(values []any) error {
	for _, v := range values {
		if v == nil {
			return nil
		}
	}
	c.n++
	return nil
}

func (c *countAccumulator) Merge(states []any) error {
	n, _ := types.AsInt64(states[0])
	c.n += n
	return nil
}

func (c *countAccumulator) State() ([]any, error)  { return []any{c.n}, nil }
func (c *countAccumulator) Evaluate() (any, error) { return c.n, nil }

type minMaxAccumulator struct {
	max bool
	v   any
}

func (m *minMaxAccumulator) Update(values []any) error {
	v := values[0]
	if v == nil {
		return nil
	}
	if m.v == nil {
		m.v = v
		return nil
	}
	c, err := types.Compare(v, m.v)
	if err != nil {
		return err
	}
	if (m.max && c > 0) || (!m.max && c < 0) {
		m.v = v
	}
	return nil
}

func (m *minMaxAccumulator) Merge(states []any) error { return m.Update(states) }
func (m *minMaxAccumulator) State() ([]any, error)    { return []any{m.v}, nil }
func (m *minMaxAccumulator) Evaluate() (any, error)   { return m.v, nil }

type avgAccumulator struct {
	count int64
	sum   float64
}

func (a *avgAccumulator) Update(values []any) error {
	if values[0] == nil {
		return nil
	}
	f, _ := types.AsFloat64(values[0])
	a.count++
	a.sum += f
	return nil
}

func (a *avgAccumulator) Merge(states []any) error {
	n, _ := types.AsInt64(states[0])
	a.count += n
	if states[1] != nil {
		f, _ := types.AsFloat64(states[1])
		a.sum += f
	}
	return nil
}

func (a *avgAccumulator) State() ([]any, error) {
	if a.count == 0 {
		return []any{int64(0), nil}, nil
	}
	return []any{a.count, a.sum}, nil
}

func (a *avgAccumulator) Evaluate() (any, error) {
	if a.count == 0 {
		return nil, nil
	}
	return a.sum / float64(a.count), nil
}

// UDFAggregate calls a registered aggregate function.
type UDFAggregate struct {
	Fun  *AggregateUDF
	name string
	mode AggregateMode
	args []PhysicalExpr
}

// NewUDFAggregate checks the argument count in partial mode.
func NewUDFAggregate(fun *AggregateUDF, name string, mode AggregateMode, args []PhysicalExpr) (*UDFAggregate, error) {
	if mode == AggregatePartial && fun.NumArgs >= 0 && len(args) != fun.NumArgs {
		return nil, qerrors.Newf(qerrors.UndefinedFunction, "aggregate %s expects %d arguments, got %d",
			fun.Name, fun.NumArgs, len(args))
	}
	return &UDFAggregate{Fun: fun, name: name, mode: mode, args: args}, nil
}

func (u *UDFAggregate) Name() string                   { return u.name }
func (u *UDFAggregate) Mode() AggregateMode            { return u.mode }
func (u *UDFAggregate) Expressions() []PhysicalExpr    { return u.args }
func (u *UDFAggregate) CreateAccumulator() Accumulator { return u.Fun.NewAccumulator() }

func (u *UDFAggregate) Field() arrow.Field {
	return arrow.Field{Name: u.name, Type: u.Fun.ReturnType, Nullable: true}
}

func (u *UDFAggregate) StateFields() []arrow.Field {
	fields := make([]arrow.Field, len(u.Fun.StateTypes))
	for i, dt := range u.Fun.StateTypes {
		fields[i] = arrow.Field{Name: stateFieldName(u.name, fmt.Sprint(i)), Type: dt, Nullable: true}
	}
	return fields
}

func (u *UDFAggregate) String() string {
	return fmt.Sprintf("%s AS %s", u.Fun.Name, u.name)
}
